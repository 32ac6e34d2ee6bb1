package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/topic-reader/internal/models"
	"go.uber.org/zap"
)

func newMockPostgres(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresStorage{db: db, logger: zap.NewNop()}, mock
}

func summaryRow(id string, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "summary", "keywords", "category", "thread_id", "channel_id",
		"channel_name", "thread_name", "attachments", "created_at",
	}).AddRow(
		id, "Crash on startup", "The service crashes.", "{crash,config}", "Bug Report", "111", "222",
		"support", nil, []byte(`[{"id":"a1","filename":"trace.txt","url":"https://cdn/trace.txt"}]`), createdAt,
	)
}

func TestPostgresSaveSummaryAssignsUUID(t *testing.T) {
	s, mock := newMockPostgres(t)
	remoteID := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO summaries")).
		WithArgs(sqlmock.AnyArg(), "Crash on startup", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"Bug Report", "111", "222", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(remoteID))

	id, err := s.SaveSummary(context.Background(), sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, remoteID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveSummaryError(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO summaries")).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := s.SaveSummary(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestPostgresGetSummaryByThreadID(t *testing.T) {
	s, mock := newMockPostgres(t)
	id := uuid.NewString()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE thread_id = $1")).
		WithArgs("111").
		WillReturnRows(summaryRow(id, created))

	got, err := s.GetSummaryByThreadID(context.Background(), "111")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []string{"crash", "config"}, got.Keywords)
	assert.Equal(t, "support", got.ChannelName)
	assert.Empty(t, got.ThreadName)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "trace.txt", got.Attachments[0].Filename)
	assert.Equal(t, created, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSummaryNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)
	id := uuid.NewString()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetSummary(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)

	// local-style ids never reach the database
	_, err = s.GetSummary(context.Background(), "111-1700000000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearchSummaries(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta("title ILIKE $1 OR summary ILIKE $1 OR $2 = ANY(keywords)")).
		WithArgs("%crash%", "crash").
		WillReturnRows(summaryRow(uuid.NewString(), time.Now()))

	found, err := s.SearchSummaries(context.Background(), "crash")
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPrompts(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM prompts WHERE key = $1")).
		WithArgs("default").
		WillReturnError(sql.ErrNoRows)
	_, err := s.GetPrompt(context.Background(), "default")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (key) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "default", "hello {{messagesText}}").
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "prompt", "created_at", "updated_at"}).
			AddRow("p1", "default", "hello {{messagesText}}", now, now))
	saved, err := s.SavePrompt(context.Background(), &models.Prompt{Prompt: "hello {{messagesText}}"})
	require.NoError(t, err)
	assert.Equal(t, "p1", saved.ID)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM prompts")).
		WithArgs("default").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeletePrompt(context.Background(), "default"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
