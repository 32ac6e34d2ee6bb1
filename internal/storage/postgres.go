package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/xaenox/topic-reader/internal/models"
	"go.uber.org/zap"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStorage is the shared remote store. It assigns its own UUIDs to
// saved summaries.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations/postgres.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

const pgSummaryColumns = `id, title, summary, keywords, category, thread_id, channel_id,
	channel_name, thread_name, attachments, created_at`

func (s *PostgresStorage) SaveSummary(ctx context.Context, summary *models.Summary) (string, error) {
	keywords := summary.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	_, attachments, err := encodeLists(summary)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO summaries (` + pgSummaryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	var id string
	err = s.db.QueryRowContext(ctx, query,
		uuid.New().String(),
		summary.Title,
		summary.Summary,
		pq.Array(keywords),
		summary.Category,
		summary.ThreadID,
		summary.ChannelID,
		nullString(summary.ChannelName),
		nullString(summary.ThreadName),
		attachments,
		summary.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("error creating summary: %w", err)
	}
	return id, nil
}

func (s *PostgresStorage) GetSummary(ctx context.Context, id string) (*models.Summary, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx, `SELECT `+pgSummaryColumns+` FROM summaries WHERE id = $1`, id)
}

func (s *PostgresStorage) GetSummaryByThreadID(ctx context.Context, threadID string) (*models.Summary, error) {
	return s.queryOne(ctx, `
		SELECT `+pgSummaryColumns+`
		FROM summaries
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, threadID)
}

func (s *PostgresStorage) ListSummaries(ctx context.Context) ([]*models.Summary, error) {
	return s.queryMany(ctx, `SELECT `+pgSummaryColumns+` FROM summaries ORDER BY created_at DESC`)
}

func (s *PostgresStorage) ListSummariesByChannel(ctx context.Context, channelID string) ([]*models.Summary, error) {
	return s.queryMany(ctx, `
		SELECT `+pgSummaryColumns+`
		FROM summaries
		WHERE channel_id = $1
		ORDER BY created_at DESC`, channelID)
}

func (s *PostgresStorage) ListSummariesByCategory(ctx context.Context, category string) ([]*models.Summary, error) {
	return s.queryMany(ctx, `
		SELECT `+pgSummaryColumns+`
		FROM summaries
		WHERE category = $1
		ORDER BY created_at DESC`, category)
}

func (s *PostgresStorage) SearchSummaries(ctx context.Context, query string) ([]*models.Summary, error) {
	return s.queryMany(ctx, `
		SELECT `+pgSummaryColumns+`
		FROM summaries
		WHERE title ILIKE $1 OR summary ILIKE $1 OR $2 = ANY(keywords)
		ORDER BY created_at DESC`, "%"+query+"%", query)
}

func (s *PostgresStorage) DeleteSummary(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM summaries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error deleting summary: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetPrompt(ctx context.Context, key string) (*models.Prompt, error) {
	var p models.Prompt
	err := s.db.QueryRowContext(ctx,
		`SELECT id, key, prompt, created_at, updated_at FROM prompts WHERE key = $1`, key,
	).Scan(&p.ID, &p.Key, &p.Prompt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting prompt: %w", err)
	}
	return &p, nil
}

func (s *PostgresStorage) SavePrompt(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error) {
	key := prompt.Key
	if key == "" {
		key = models.DefaultPromptKey
	}

	query := `
		INSERT INTO prompts (id, key, prompt)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET prompt = EXCLUDED.prompt, updated_at = NOW()
		RETURNING id, key, prompt, created_at, updated_at`

	var p models.Prompt
	err := s.db.QueryRowContext(ctx, query, uuid.New().String(), key, prompt.Prompt).
		Scan(&p.ID, &p.Key, &p.Prompt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error saving prompt: %w", err)
	}
	return &p, nil
}

func (s *PostgresStorage) DeletePrompt(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE key = $1`, key); err != nil {
		return fmt.Errorf("error deleting prompt: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) queryOne(ctx context.Context, query string, args ...any) (*models.Summary, error) {
	summaries, err := s.queryMany(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, ErrNotFound
	}
	return summaries[0], nil
}

func (s *PostgresStorage) queryMany(ctx context.Context, query string, args ...any) ([]*models.Summary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]*models.Summary, 0)
	for rows.Next() {
		var (
			sum                     models.Summary
			channelName, threadName sql.NullString
			attachments             []byte
		)
		err := rows.Scan(
			&sum.ID,
			&sum.Title,
			&sum.Summary,
			pq.Array(&sum.Keywords),
			&sum.Category,
			&sum.ThreadID,
			&sum.ChannelID,
			&channelName,
			&threadName,
			&attachments,
			&sum.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning summary: %w", err)
		}
		keywords := sum.Keywords
		if err := decodeLists(&sum, nil, attachments); err != nil {
			return nil, err
		}
		if keywords != nil {
			sum.Keywords = keywords
		}
		sum.ChannelName = channelName.String
		sum.ThreadName = threadName.String
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	return summaries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
