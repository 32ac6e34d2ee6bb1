// Package pipeline wires thread retrieval, summary generation and dual-write
// persistence into the operations exposed by the CLI, HTTP API and bot.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/topic-reader/internal/apperrors"
	"github.com/xaenox/topic-reader/internal/models"
	"github.com/xaenox/topic-reader/internal/storage"
	"github.com/xaenox/topic-reader/internal/threadurl"
	"go.uber.org/zap"
)

// ErrDeclined is returned when the confirm callback refuses generation.
var ErrDeclined = errors.New("summary generation was cancelled")

type Directory interface {
	ListChannels(ctx context.Context, guildID string) ([]models.Channel, error)
	ListThreads(ctx context.Context, channelID string) ([]models.Thread, error)
	GetThread(ctx context.Context, threadID string) (*models.Thread, error)
	GetChannel(ctx context.Context, channelID string) (*models.Channel, error)
}

type MessageFetcher interface {
	Fetch(ctx context.Context, threadID string) ([]models.Message, error)
}

type SummaryGenerator interface {
	Generate(ctx context.Context, messages []models.Message, threadID, channelID, channelName, threadName string) (*models.Summary, error)
}

type SummaryWriter interface {
	Save(ctx context.Context, summary *models.Summary) (storage.SaveResult, error)
	GetSummaryByThreadID(ctx context.Context, threadID string) (*models.Summary, error)
}

// Preview describes a fetched thread before anything is sent for generation.
type Preview struct {
	ThreadID     string
	ThreadName   string
	ChannelName  string
	MessageCount int
}

// ConfirmFunc is asked once per run, after messages are fetched. A nil
// ConfirmFunc always proceeds.
type ConfirmFunc func(ctx context.Context, preview Preview) (bool, error)

type Request struct {
	ThreadID    string
	ChannelID   string
	ChannelName string
	ThreadName  string
	// Force regenerates even when the thread already has a summary.
	Force bool
}

type Result struct {
	Summary *models.Summary
	Save    storage.SaveResult
	// Existing is set when Summary was loaded instead of generated. Save then
	// carries only the summary ID.
	Existing bool
}

type Service struct {
	directory Directory
	fetcher   MessageFetcher
	generator SummaryGenerator
	writer    SummaryWriter
	logger    *zap.Logger
}

func NewService(directory Directory, fetcher MessageFetcher, generator SummaryGenerator, writer SummaryWriter, logger *zap.Logger) *Service {
	return &Service{
		directory: directory,
		fetcher:   fetcher,
		generator: generator,
		writer:    writer,
		logger:    logger,
	}
}

func (s *Service) ListChannels(ctx context.Context, guildID string) ([]models.Channel, error) {
	return s.directory.ListChannels(ctx, guildID)
}

func (s *Service) ListThreads(ctx context.Context, channelID string) ([]models.Thread, error) {
	return s.directory.ListThreads(ctx, channelID)
}

// GetMessages returns the full history of a thread, oldest first.
func (s *Service) GetMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	return s.fetcher.Fetch(ctx, threadID)
}

func (s *Service) GenerateSummary(ctx context.Context, messages []models.Message, threadID, channelID, channelName, threadName string) (*models.Summary, error) {
	return s.generator.Generate(ctx, messages, threadID, channelID, channelName, threadName)
}

func (s *Service) SaveSummary(ctx context.Context, summary *models.Summary) (storage.SaveResult, error) {
	return s.writer.Save(ctx, summary)
}

// GetSummaryByThread returns the current summary of a thread, or
// storage.ErrNotFound.
func (s *Service) GetSummaryByThread(ctx context.Context, threadID string) (*models.Summary, error) {
	return s.writer.GetSummaryByThreadID(ctx, threadID)
}

// Summarize runs the whole pipeline for one thread. A thread that already has
// a summary is returned as-is unless req.Force is set.
func (s *Service) Summarize(ctx context.Context, req Request, confirm ConfirmFunc) (*Result, error) {
	if req.ThreadID == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "❌ No thread selected. Pass a thread ID or a Discord thread link.")
	}

	if !req.Force {
		existing, err := s.writer.GetSummaryByThreadID(ctx, req.ThreadID)
		switch {
		case err == nil:
			s.logger.Info("Thread already summarized",
				zap.String("thread_id", req.ThreadID),
				zap.String("summary_id", existing.ID))
			return &Result{
				Summary:  existing,
				Save:     storage.SaveResult{FinalID: existing.ID},
				Existing: true,
			}, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}

	if err := s.resolveNames(ctx, &req); err != nil {
		return nil, err
	}

	messages, err := s.fetcher.Fetch(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidInput,
			fmt.Sprintf("❌ Thread %s has no messages to summarize.", req.ThreadID))
	}

	if confirm != nil {
		ok, err := confirm(ctx, Preview{
			ThreadID:     req.ThreadID,
			ThreadName:   req.ThreadName,
			ChannelName:  req.ChannelName,
			MessageCount: len(messages),
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Info("Summary generation declined", zap.String("thread_id", req.ThreadID))
			return nil, ErrDeclined
		}
	}

	summary, err := s.generator.Generate(ctx, messages, req.ThreadID, req.ChannelID, req.ChannelName, req.ThreadName)
	if err != nil {
		return nil, err
	}

	saved, err := s.writer.Save(ctx, summary)
	if err != nil {
		return nil, err
	}
	summary.ID = saved.FinalID

	s.logger.Info("Summarized thread",
		zap.String("thread_id", req.ThreadID),
		zap.String("summary_id", saved.FinalID),
		zap.Bool("backend_saved", saved.BackendSaved),
		zap.Int("messages", len(messages)))
	return &Result{Summary: summary, Save: saved}, nil
}

// SummarizeURL summarizes the thread a Discord link points at. For links with
// three ID segments the second ID is tried first and the third is used only
// when the second is not a thread.
func (s *Service) SummarizeURL(ctx context.Context, raw string, confirm ConfirmFunc) (*Result, error) {
	target, ok := threadurl.Extract(raw)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidInput,
			"❌ That is not a Discord thread link. Copy it from the thread with \"Copy Link\"; "+
				"it looks like https://discord.com/channels/<server>/<thread>.")
	}

	var lastErr error
	for _, candidate := range target.Candidates() {
		result, err := s.Summarize(ctx, Request{ThreadID: candidate}, confirm)
		if err == nil {
			return result, nil
		}
		if !apperrors.Is(err, apperrors.KindThreadNotFound) {
			return nil, err
		}
		s.logger.Debug("Link candidate is not a thread",
			zap.String("candidate", candidate),
			zap.Error(err))
		lastErr = err
	}
	return nil, lastErr
}

// resolveNames fills in missing channel and thread metadata. Only a missing
// thread is fatal; other lookup failures leave the names empty.
func (s *Service) resolveNames(ctx context.Context, req *Request) error {
	if req.ThreadName == "" || req.ChannelID == "" {
		thread, err := s.directory.GetThread(ctx, req.ThreadID)
		switch {
		case apperrors.Is(err, apperrors.KindThreadNotFound):
			return err
		case err != nil:
			s.logger.Warn("Failed to look up thread",
				zap.Error(err),
				zap.String("thread_id", req.ThreadID))
		default:
			if req.ThreadName == "" {
				req.ThreadName = thread.Name
			}
			if req.ChannelID == "" {
				req.ChannelID = thread.ChannelID
			}
		}
	}

	if req.ChannelName == "" && req.ChannelID != "" {
		channel, err := s.directory.GetChannel(ctx, req.ChannelID)
		if err != nil {
			s.logger.Warn("Failed to look up channel",
				zap.Error(err),
				zap.String("channel_id", req.ChannelID))
			return nil
		}
		req.ChannelName = channel.Name
	}
	return nil
}
