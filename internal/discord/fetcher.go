package discord

import (
	"context"
	"iter"
	"slices"

	"github.com/xaenox/topic-reader/internal/metrics"
	"github.com/xaenox/topic-reader/internal/models"
	"go.uber.org/zap"
)

// MaxPageSize is the largest page Discord returns for a message history request.
const MaxPageSize = 100

// PageSource returns up to limit messages of a thread, newest first, that are
// older than the message with ID before. An empty before means the newest page.
type PageSource interface {
	FetchPage(ctx context.Context, threadID, before string, limit int) ([]models.Message, error)
}

// Fetcher retrieves the complete history of a thread.
type Fetcher struct {
	source   PageSource
	pageSize int
	logger   *zap.Logger
}

func NewFetcher(source PageSource, pageSize int, logger *zap.Logger) *Fetcher {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Fetcher{
		source:   source,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Pages yields the thread's pages newest first. The sequence stops after a
// short page, an empty page, or the first error.
func (f *Fetcher) Pages(ctx context.Context, threadID string) iter.Seq2[[]models.Message, error] {
	return func(yield func([]models.Message, error) bool) {
		before := ""
		for {
			page, err := f.source.FetchPage(ctx, threadID, before, f.pageSize)
			metrics.PagesFetched.Inc()
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) == 0 {
				return
			}
			if !yield(page, nil) {
				return
			}
			if len(page) < f.pageSize {
				return
			}
			before = page[len(page)-1].ID
		}
	}
}

// Fetch returns every message of the thread, oldest first.
func (f *Fetcher) Fetch(ctx context.Context, threadID string) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	pages := 0
	for page, err := range f.Pages(ctx, threadID) {
		if err != nil {
			f.logger.Error("Failed to fetch message page",
				zap.Error(err),
				zap.String("thread_id", threadID),
				zap.Int("page", pages))
			return nil, err
		}
		pages++
		messages = append(messages, page...)
	}

	slices.Reverse(messages)

	f.logger.Debug("Fetched thread history",
		zap.String("thread_id", threadID),
		zap.Int("pages", pages),
		zap.Int("messages", len(messages)))
	return messages, nil
}
