package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xaenox/topic-reader/internal/discord"
	"github.com/xaenox/topic-reader/internal/pipeline"
	"github.com/xaenox/topic-reader/internal/storage"
	"github.com/xaenox/topic-reader/internal/summarizer"
	"github.com/xaenox/topic-reader/pkg/config"
	"go.uber.org/zap"
)

type localStore interface {
	storage.LocalStore
	storage.PromptStore
}

// app holds the components shared by all commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	local   localStore
	remote  *storage.PostgresStorage
	writer  *storage.DualWriter
	discord *discord.Client
	service *pipeline.Service
}

func newApp(cmd *cobra.Command) (*app, error) {
	envFile, _ := cmd.Root().PersistentFlags().GetString("env-file")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger, err := newLogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err), zap.String("path", configPath))
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	// Initialize storage
	if cfg.Storage.UseInMemory {
		logger.Info("Using in-memory local storage")
		a.local = storage.NewMemoryStorage()
	} else {
		logger.Info("Using SQLite local storage", zap.String("path", cfg.Storage.LocalPath))
		a.local = storage.NewSQLiteStorage(cfg.Storage.LocalPath, logger)
	}

	var remote storage.SummaryStore
	if cfg.Database.Enabled {
		pg, err := storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			logger.Warn("PostgreSQL unavailable, summaries will be saved locally only", zap.Error(err))
		} else {
			logger.Info("Using PostgreSQL remote storage", zap.String("host", cfg.Database.Host))
			a.remote = pg
			remote = pg
		}
	}
	a.writer = storage.NewDualWriter(a.local, remote, logger)

	a.discord = discord.NewClient(cfg.Discord.Token, logger)
	fetcher := discord.NewFetcher(a.discord, cfg.Discord.PageSize, logger)

	generator := summarizer.NewGenerator(summarizer.Options{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
	}, a.local, logger)

	a.service = pipeline.NewService(a.discord, fetcher, generator, a.writer, logger)
	return a, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (a *app) Close() {
	if err := a.local.Close(); err != nil {
		a.logger.Warn("Failed to close local storage", zap.Error(err))
	}
	if a.remote != nil {
		if err := a.remote.Close(); err != nil {
			a.logger.Warn("Failed to close remote storage", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
