package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xaenox/topic-reader/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const summaryColumns = `id, title, summary, keywords, category, thread_id, channel_id,
	channel_name, thread_name, attachments, created_at`

// SQLiteStorage is the local summary store. The database is opened on first
// use and the connection is kept for the life of the process.
type SQLiteStorage struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStorage(path string, logger *zap.Logger) *SQLiteStorage {
	if path == "" {
		path = "./data/topic-reader.db"
	}
	return &SQLiteStorage{path: path, logger: logger}
}

// Open opens the database and applies the schema. Calling it again is a no-op.
func (s *SQLiteStorage) Open() error {
	_, err := s.conn()
	return err
}

func (s *SQLiteStorage) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", s.path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	schema, err := migrations.ReadFile("migrations/sqlite.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error reading migrations file: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Debug("Opened local database", zap.String("path", s.path))
	s.db = db
	return s.db, nil
}

func (s *SQLiteStorage) SaveSummary(ctx context.Context, summary *models.Summary) (string, error) {
	if summary.ID == "" {
		return "", fmt.Errorf("summary id is required")
	}
	db, err := s.conn()
	if err != nil {
		return "", err
	}

	keywords, attachments, err := encodeLists(summary)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO summaries (` + summaryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			keywords = excluded.keywords,
			category = excluded.category,
			thread_id = excluded.thread_id,
			channel_id = excluded.channel_id,
			channel_name = excluded.channel_name,
			thread_name = excluded.thread_name,
			attachments = excluded.attachments,
			created_at = excluded.created_at`

	_, err = db.ExecContext(ctx, query,
		summary.ID,
		summary.Title,
		summary.Summary,
		keywords,
		summary.Category,
		summary.ThreadID,
		summary.ChannelID,
		summary.ChannelName,
		summary.ThreadName,
		attachments,
		summary.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("error saving summary: %w", err)
	}
	return summary.ID, nil
}

func (s *SQLiteStorage) GetSummary(ctx context.Context, id string) (*models.Summary, error) {
	return s.queryOne(ctx, `SELECT `+summaryColumns+` FROM summaries WHERE id = ?`, id)
}

func (s *SQLiteStorage) GetSummaryByThreadID(ctx context.Context, threadID string) (*models.Summary, error) {
	return s.queryOne(ctx, `
		SELECT `+summaryColumns+` FROM summaries
		WHERE thread_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, threadID)
}

func (s *SQLiteStorage) ListSummaries(ctx context.Context) ([]*models.Summary, error) {
	return s.queryMany(ctx, `SELECT `+summaryColumns+` FROM summaries ORDER BY created_at DESC, id DESC`)
}

func (s *SQLiteStorage) ListSummariesByChannel(ctx context.Context, channelID string) ([]*models.Summary, error) {
	return s.queryMany(ctx, `
		SELECT `+summaryColumns+` FROM summaries
		WHERE channel_id = ?
		ORDER BY created_at DESC, id DESC`, channelID)
}

func (s *SQLiteStorage) ListSummariesByCategory(ctx context.Context, category string) ([]*models.Summary, error) {
	return s.queryMany(ctx, `
		SELECT `+summaryColumns+` FROM summaries
		WHERE category = ?
		ORDER BY created_at DESC, id DESC`, category)
}

func (s *SQLiteStorage) SearchSummaries(ctx context.Context, query string) ([]*models.Summary, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.queryMany(ctx, `
		SELECT `+summaryColumns+` FROM summaries
		WHERE LOWER(title) LIKE ? ESCAPE '\'
		   OR LOWER(summary) LIKE ? ESCAPE '\'
		   OR LOWER(keywords) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC`, pattern, pattern, pattern)
}

func (s *SQLiteStorage) DeleteSummary(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM summaries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error deleting summary: %w", err)
	}
	return nil
}

// RekeySummary moves the record stored under oldID to newID, replacing any
// record already stored under newID.
func (s *SQLiteStorage) RekeySummary(ctx context.Context, oldID, newID string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE id = ?`, newID); err != nil {
		return fmt.Errorf("error clearing target id: %w", err)
	}
	result, err := tx.ExecContext(ctx, `UPDATE summaries SET id = ? WHERE id = ?`, newID, oldID)
	if err != nil {
		return fmt.Errorf("error re-keying summary: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStorage) GetPrompt(ctx context.Context, key string) (*models.Prompt, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var (
		p                models.Prompt
		created, updated int64
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, key, prompt, created_at, updated_at FROM prompts WHERE key = ?`, key,
	).Scan(&p.ID, &p.Key, &p.Prompt, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting prompt: %w", err)
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}

func (s *SQLiteStorage) SavePrompt(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	key := prompt.Key
	if key == "" {
		key = models.DefaultPromptKey
	}
	now := time.Now().UnixNano()

	_, err = db.ExecContext(ctx, `
		INSERT INTO prompts (key, id, prompt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			prompt = excluded.prompt,
			updated_at = excluded.updated_at`,
		key, key, prompt.Prompt, now, now)
	if err != nil {
		return nil, fmt.Errorf("error saving prompt: %w", err)
	}
	return s.GetPrompt(ctx, key)
}

func (s *SQLiteStorage) DeletePrompt(ctx context.Context, key string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM prompts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("error deleting prompt: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStorage) queryOne(ctx context.Context, query string, args ...any) (*models.Summary, error) {
	summaries, err := s.queryMany(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, ErrNotFound
	}
	return summaries[0], nil
}

func (s *SQLiteStorage) queryMany(ctx context.Context, query string, args ...any) ([]*models.Summary, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]*models.Summary, 0)
	for rows.Next() {
		var (
			sum                   models.Summary
			keywords, attachments string
			created               int64
		)
		err := rows.Scan(
			&sum.ID,
			&sum.Title,
			&sum.Summary,
			&keywords,
			&sum.Category,
			&sum.ThreadID,
			&sum.ChannelID,
			&sum.ChannelName,
			&sum.ThreadName,
			&attachments,
			&created,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning summary: %w", err)
		}
		if err := decodeLists(&sum, []byte(keywords), []byte(attachments)); err != nil {
			return nil, err
		}
		sum.CreatedAt = time.Unix(0, created).UTC()
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	return summaries, nil
}

func encodeLists(summary *models.Summary) (keywords, attachments string, err error) {
	kw := summary.Keywords
	if kw == nil {
		kw = []string{}
	}
	att := summary.Attachments
	if att == nil {
		att = []models.Attachment{}
	}

	kwJSON, err := json.Marshal(kw)
	if err != nil {
		return "", "", fmt.Errorf("error encoding keywords: %w", err)
	}
	attJSON, err := json.Marshal(att)
	if err != nil {
		return "", "", fmt.Errorf("error encoding attachments: %w", err)
	}
	return string(kwJSON), string(attJSON), nil
}

func decodeLists(sum *models.Summary, keywords, attachments []byte) error {
	sum.Keywords = []string{}
	sum.Attachments = []models.Attachment{}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &sum.Keywords); err != nil {
			return fmt.Errorf("error decoding keywords: %w", err)
		}
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &sum.Attachments); err != nil {
			return fmt.Errorf("error decoding attachments: %w", err)
		}
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
