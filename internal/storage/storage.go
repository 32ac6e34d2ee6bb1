package storage

import (
	"context"
	"errors"

	"github.com/xaenox/topic-reader/internal/models"
)

var ErrNotFound = errors.New("not found")

// SummaryStore persists summaries. Listings are ordered newest first.
type SummaryStore interface {
	// SaveSummary stores the summary and returns the ID it is stored under.
	SaveSummary(ctx context.Context, summary *models.Summary) (string, error)
	GetSummary(ctx context.Context, id string) (*models.Summary, error)
	// GetSummaryByThreadID returns the most recent summary of a thread.
	GetSummaryByThreadID(ctx context.Context, threadID string) (*models.Summary, error)
	ListSummaries(ctx context.Context) ([]*models.Summary, error)
	ListSummariesByChannel(ctx context.Context, channelID string) ([]*models.Summary, error)
	ListSummariesByCategory(ctx context.Context, category string) ([]*models.Summary, error)
	SearchSummaries(ctx context.Context, query string) ([]*models.Summary, error)
	DeleteSummary(ctx context.Context, id string) error
	Close() error
}

// LocalStore is a summary store keyed by caller-chosen IDs. SaveSummary
// replaces any record with the same ID.
type LocalStore interface {
	SummaryStore
	RekeySummary(ctx context.Context, oldID, newID string) error
}

type PromptStore interface {
	GetPrompt(ctx context.Context, key string) (*models.Prompt, error)
	// SavePrompt inserts or updates the prompt with the same key.
	SavePrompt(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error)
	DeletePrompt(ctx context.Context, key string) error
}
