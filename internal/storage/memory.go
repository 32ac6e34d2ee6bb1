package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/topic-reader/internal/models"
)

type MemoryStorage struct {
	mu        sync.RWMutex
	summaries map[string]*models.Summary
	prompts   map[string]*models.Prompt
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		summaries: make(map[string]*models.Summary),
		prompts:   make(map[string]*models.Prompt),
	}
}

// Summary methods
func (s *MemoryStorage) SaveSummary(ctx context.Context, summary *models.Summary) (string, error) {
	if summary.ID == "" {
		return "", fmt.Errorf("summary id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[summary.ID] = cloneSummary(summary)
	return summary.ID, nil
}

func (s *MemoryStorage) GetSummary(ctx context.Context, id string) (*models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if summary, exists := s.summaries[id]; exists {
		return cloneSummary(summary), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetSummaryByThreadID(ctx context.Context, threadID string) (*models.Summary, error) {
	matches := s.filter(func(sum *models.Summary) bool { return sum.ThreadID == threadID })
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}

func (s *MemoryStorage) ListSummaries(ctx context.Context) ([]*models.Summary, error) {
	return s.filter(func(*models.Summary) bool { return true }), nil
}

func (s *MemoryStorage) ListSummariesByChannel(ctx context.Context, channelID string) ([]*models.Summary, error) {
	return s.filter(func(sum *models.Summary) bool { return sum.ChannelID == channelID }), nil
}

func (s *MemoryStorage) ListSummariesByCategory(ctx context.Context, category string) ([]*models.Summary, error) {
	return s.filter(func(sum *models.Summary) bool { return sum.Category == category }), nil
}

func (s *MemoryStorage) SearchSummaries(ctx context.Context, query string) ([]*models.Summary, error) {
	q := strings.ToLower(query)
	return s.filter(func(sum *models.Summary) bool {
		if strings.Contains(strings.ToLower(sum.Title), q) || strings.Contains(strings.ToLower(sum.Summary), q) {
			return true
		}
		for _, kw := range sum.Keywords {
			if strings.Contains(strings.ToLower(kw), q) {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStorage) DeleteSummary(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.summaries, id)
	return nil
}

func (s *MemoryStorage) RekeySummary(ctx context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, exists := s.summaries[oldID]
	if !exists {
		return ErrNotFound
	}
	delete(s.summaries, oldID)
	summary.ID = newID
	s.summaries[newID] = summary
	return nil
}

// filter returns copies of the matching summaries, newest first.
func (s *MemoryStorage) filter(keep func(*models.Summary) bool) []*models.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Summary, 0)
	for _, summary := range s.summaries {
		if keep(summary) {
			result = append(result, cloneSummary(summary))
		}
	}
	sortNewestFirst(result)
	return result
}

// Prompt methods
func (s *MemoryStorage) GetPrompt(ctx context.Context, key string) (*models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, exists := s.prompts[key]; exists {
		cp := *p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) SavePrompt(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	saved := *prompt
	if saved.Key == "" {
		saved.Key = models.DefaultPromptKey
	}
	if existing, exists := s.prompts[saved.Key]; exists {
		saved.ID = existing.ID
		saved.CreatedAt = existing.CreatedAt
	} else {
		saved.ID = saved.Key
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now
	s.prompts[saved.Key] = &saved

	cp := saved
	return &cp, nil
}

func (s *MemoryStorage) DeletePrompt(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.prompts, key)
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func cloneSummary(summary *models.Summary) *models.Summary {
	cp := *summary
	cp.Keywords = append([]string(nil), summary.Keywords...)
	cp.Attachments = append([]models.Attachment(nil), summary.Attachments...)
	if cp.Keywords == nil {
		cp.Keywords = []string{}
	}
	if cp.Attachments == nil {
		cp.Attachments = []models.Attachment{}
	}
	return &cp
}

func sortNewestFirst(summaries []*models.Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID > summaries[j].ID
	})
}
