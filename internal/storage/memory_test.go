package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/topic-reader/internal/models"
)

func TestMemoryStorageQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	a := sampleSummary()
	a.ID = "a"
	b := sampleSummary()
	b.ID, b.ThreadID = "b", "333"
	b.Title, b.Summary = "Release notes", "Version 2 is out"
	b.Keywords = []string{"Release"}
	b.Category = models.CategoryAnnouncement
	b.CreatedAt = a.CreatedAt.Add(time.Hour)
	for _, sum := range []*models.Summary{a, b} {
		_, err := s.SaveSummary(ctx, sum)
		require.NoError(t, err)
	}

	all, err := s.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)

	found, err := s.SearchSummaries(ctx, "release")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].ID)

	byCategory, err := s.ListSummariesByCategory(ctx, models.CategoryBugReport)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "a", byCategory[0].ID)

	// returned records are copies
	found[0].Keywords[0] = "mutated"
	again, err := s.GetSummary(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"Release"}, again.Keywords)
}

func TestMemoryStoragePromptUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	_, err := s.GetPrompt(ctx, models.DefaultPromptKey)
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.SavePrompt(ctx, &models.Prompt{Prompt: "v1"})
	require.NoError(t, err)
	second, err := s.SavePrompt(ctx, &models.Prompt{Key: models.DefaultPromptKey, Prompt: "v2"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	got, err := s.GetPrompt(ctx, models.DefaultPromptKey)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Prompt)
}
