package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/topic-reader/internal/apperrors"
	"github.com/xaenox/topic-reader/internal/models"
	"github.com/xaenox/topic-reader/internal/storage"
	"go.uber.org/zap/zaptest"
)

const testKey = "sk-test-0123456789abcdefghij"

func testMessages() []models.Message {
	return []models.Message{
		{ID: "1", Content: "it crashes", Author: models.Author{Username: "alice"}},
		{
			ID:          "2",
			Content:     "log attached",
			Author:      models.Author{Username: "bob"},
			Attachments: []models.Attachment{{ID: "a1", Filename: "log.txt", URL: "https://cdn/log.txt"}},
		},
	}
}

// newTestServer serves /v1/chat/completions with the given status and body and
// records the last request it received.
func newTestServer(t *testing.T, status int, body string, got *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(content string) string {
	resp := openai.ChatCompletionResponse{
		ID:     "chatcmpl-1",
		Object: "chat.completion",
		Model:  openai.GPT4o,
		Choices: []openai.ChatCompletionChoice{{
			Index:   0,
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestGenerator(t *testing.T, srv *httptest.Server, prompts PromptSource) *Generator {
	g := NewGenerator(Options{APIKey: testKey, BaseURL: srv.URL + "/v1", Temperature: 0.7}, prompts, zaptest.NewLogger(t))
	g.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerateBuildsSummary(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := newTestServer(t, http.StatusOK,
		completion(`{"title":"Crash","summary":"App crashes.","keywords":["crash"],"category":"Bug Report"}`), &req)
	g := newTestGenerator(t, srv, nil)

	summary, err := g.Generate(context.Background(), testMessages(), "111", "222", "support", "crash thread")
	require.NoError(t, err)

	assert.Equal(t, "Crash", summary.Title)
	assert.Equal(t, "App crashes.", summary.Summary)
	assert.Equal(t, []string{"crash"}, summary.Keywords)
	assert.Equal(t, models.CategoryBugReport, summary.Category)
	assert.Equal(t, "111", summary.ThreadID)
	assert.Equal(t, "222", summary.ChannelID)
	assert.Equal(t, "support", summary.ChannelName)
	assert.Equal(t, "crash thread", summary.ThreadName)
	assert.Empty(t, summary.ID)
	require.Len(t, summary.Attachments, 1)
	assert.Equal(t, "log.txt", summary.Attachments[0].Filename)

	assert.Equal(t, openai.GPT4o, req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, systemPrompt, req.Messages[0].Content)
	assert.Contains(t, req.Messages[1].Content, "[alice]: it crashes\n\n[bob]: log attached\n[Attachments: log.txt]")
	assert.Contains(t, req.Messages[1].Content, "support")
}

func TestGenerateDefaultsMissingOptionalFields(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, completion(`{"title":"T","summary":"S"}`), nil)
	g := newTestGenerator(t, srv, nil)

	summary, err := g.Generate(context.Background(), testMessages(), "111", "222", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{}, summary.Keywords)
	assert.Equal(t, models.CategoryOther, summary.Category)
}

func TestGenerateKeepsUnknownCategory(t *testing.T) {
	srv := newTestServer(t, http.StatusOK,
		completion(`{"title":"T","summary":"S","keywords":null,"category":"Banana"}`), nil)
	g := newTestGenerator(t, srv, nil)

	summary, err := g.Generate(context.Background(), testMessages(), "111", "222", "support", "t")
	require.NoError(t, err)
	assert.Equal(t, "Banana", summary.Category)
	assert.Equal(t, []string{}, summary.Keywords)
}

func TestGenerateUsesStoredPrompt(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := newTestServer(t, http.StatusOK, completion(`{"title":"T","summary":"S"}`), &req)

	prompts := storage.NewMemoryStorage()
	_, err := prompts.SavePrompt(context.Background(), &models.Prompt{Prompt: "Channel={{channelName}} Thread={{threadName}}"})
	require.NoError(t, err)

	g := newTestGenerator(t, srv, prompts)
	_, err = g.Generate(context.Background(), testMessages(), "111", "222", "", "bugs")
	require.NoError(t, err)
	assert.Equal(t, "Channel=Unknown Thread=bugs", req.Messages[1].Content)
}

type brokenPrompts struct{}

func (brokenPrompts) GetPrompt(context.Context, string) (*models.Prompt, error) {
	return nil, errors.New("database is locked")
}

func TestGenerateFallsBackToDefaultPrompt(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := newTestServer(t, http.StatusOK, completion(`{"title":"T","summary":"S"}`), &req)
	g := newTestGenerator(t, srv, brokenPrompts{})

	_, err := g.Generate(context.Background(), testMessages(), "111", "222", "support", "t")
	require.NoError(t, err)
	assert.Contains(t, req.Messages[1].Content, "[alice]: it crashes")
	assert.NotContains(t, req.Messages[1].Content, "{{messagesText}}")
}

func TestGenerateRejectsBadAPIKeyWithoutCallingAPI(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	for _, key := range []string{"", "   ", "pk-0123456789abcdefghijk", "sk-short"} {
		g := NewGenerator(Options{APIKey: key, BaseURL: srv.URL + "/v1"}, nil, zaptest.NewLogger(t))
		_, err := g.Generate(context.Background(), testMessages(), "111", "222", "c", "t")
		require.Error(t, err, "key %q", key)
		assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err), "key %q", key)
	}
	assert.False(t, called)
}

func TestGenerateMapsAPIErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind apperrors.Kind
		wantText string
	}{
		{
			name:     "invalid key code",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantKind: apperrors.KindUpstreamAuthInvalid,
			wantText: "Invalid OpenAI API Key",
		},
		{
			name:     "quota",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantKind: apperrors.KindUpstreamRateLimited,
			wantText: "Quota Exceeded",
		},
		{
			name:     "model unavailable",
			status:   http.StatusNotFound,
			body:     `{"error":{"message":"The model gpt-4o does not exist or you do not have access to it.","type":"invalid_request_error","code":"model_not_found"}}`,
			wantKind: apperrors.KindUpstreamModelUnavailable,
			wantText: "The model gpt-4o does not exist",
		},
		{
			name:     "other api error",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"context length exceeded","type":"invalid_request_error"}}`,
			wantKind: apperrors.KindUpstream,
			wantText: "OpenAI API Error: context length exceeded",
		},
		{
			name:     "unparseable error body",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			wantKind: apperrors.KindUpstream,
			wantText: "502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			g := newTestGenerator(t, srv, nil)

			_, err := g.Generate(context.Background(), testMessages(), "111", "222", "c", "t")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestGenerateMalformedResponse(t *testing.T) {
	for name, content := range map[string]string{
		"not json":        "Here is your summary!",
		"missing title":   `{"summary":"S"}`,
		"missing summary": `{"title":"T"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, completion(content), nil)
			g := newTestGenerator(t, srv, nil)

			_, err := g.Generate(context.Background(), testMessages(), "111", "222", "c", "t")
			require.Error(t, err)
			assert.Equal(t, apperrors.KindMalformedResponse, apperrors.KindOf(err))
		})
	}
}

func TestGenerateNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewGenerator(Options{APIKey: testKey, BaseURL: url + "/v1"}, nil, zaptest.NewLogger(t))
	_, err := g.Generate(context.Background(), testMessages(), "111", "222", "c", "t")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNetwork, apperrors.KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "❌"))
}
