// Package summarizer turns a thread's messages into a structured Summary
// using the OpenAI chat completions API.
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/topic-reader/internal/apperrors"
	"github.com/xaenox/topic-reader/internal/metrics"
	"github.com/xaenox/topic-reader/internal/models"
	"github.com/xaenox/topic-reader/internal/prompt"
	"github.com/xaenox/topic-reader/internal/storage"
	"go.uber.org/zap"
)

const systemPrompt = "You are a helpful assistant that analyzes Discord conversations and creates structured summaries. Always respond with valid JSON."

const (
	apiKeyPrefix    = "sk-"
	apiKeyMinLength = 20
)

// ChatCompleter is satisfied by *openai.Client.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PromptSource provides the stored prompt template, if any.
type PromptSource interface {
	GetPrompt(ctx context.Context, key string) (*models.Prompt, error)
}

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// gptResponse is the JSON object the model is asked to return. Pointers tell
// a missing field from an empty one.
type gptResponse struct {
	Title    *string  `json:"title"`
	Summary  *string  `json:"summary"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
}

type Generator struct {
	client  ChatCompleter
	prompts PromptSource
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
}

// NewGenerator builds a Generator backed by the OpenAI API. prompts may be nil.
func NewGenerator(opts Options, prompts PromptSource, logger *zap.Logger) *Generator {
	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return NewGeneratorWithClient(openai.NewClientWithConfig(cfg), opts, prompts, logger)
}

func NewGeneratorWithClient(client ChatCompleter, opts Options, prompts PromptSource, logger *zap.Logger) *Generator {
	if opts.Model == "" {
		opts.Model = openai.GPT4o
	}
	return &Generator{
		client:  client,
		prompts: prompts,
		opts:    opts,
		now:     time.Now,
		logger:  logger,
	}
}

// Generate summarizes messages, which must be in chronological order.
func (g *Generator) Generate(ctx context.Context, messages []models.Message, threadID, channelID, channelName, threadName string) (*models.Summary, error) {
	if err := checkAPIKey(g.opts.APIKey); err != nil {
		metrics.GenerationErrors.WithLabelValues(apperrors.KindOf(err).String()).Inc()
		return nil, err
	}

	template := g.loadTemplate(ctx)
	content := prompt.Render(template, channelName, threadName, messages)

	req := openai.ChatCompletionRequest{
		Model: g.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: content,
			},
		},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: float32(g.opts.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		mapped := classifyAPIError(err)
		metrics.GenerationErrors.WithLabelValues(apperrors.KindOf(mapped).String()).Inc()
		g.logger.Error("Failed to get GPT response",
			zap.Error(err),
			zap.String("thread_id", threadID),
			zap.Stringer("kind", apperrors.KindOf(mapped)))
		return nil, mapped
	}

	parsed, err := parseResponse(resp)
	if err != nil {
		metrics.GenerationErrors.WithLabelValues(apperrors.KindMalformedResponse.String()).Inc()
		g.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("thread_id", threadID))
		return nil, err
	}

	summary := &models.Summary{
		Title:       *parsed.Title,
		Summary:     *parsed.Summary,
		Keywords:    parsed.Keywords,
		Category:    parsed.Category,
		ThreadID:    threadID,
		ChannelID:   channelID,
		ChannelName: channelName,
		ThreadName:  threadName,
		Attachments: models.AllAttachments(messages),
		CreatedAt:   g.now(),
	}
	if summary.Keywords == nil {
		summary.Keywords = []string{}
	}
	if summary.Category == "" {
		summary.Category = models.CategoryOther
	}
	if !models.IsKnownCategory(summary.Category) {
		g.logger.Warn("Model returned an unknown category",
			zap.String("category", summary.Category),
			zap.String("thread_id", threadID))
	}

	metrics.SummariesGenerated.WithLabelValues(summary.Category).Inc()
	g.logger.Info("Generated summary",
		zap.String("thread_id", threadID),
		zap.Int("messages", len(messages)),
		zap.String("category", summary.Category))
	return summary, nil
}

func (g *Generator) loadTemplate(ctx context.Context) string {
	if g.prompts == nil {
		return prompt.DefaultTemplate
	}

	p, err := g.prompts.GetPrompt(ctx, models.DefaultPromptKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		g.logger.Debug("Using default prompt (no saved prompt found)")
		return prompt.DefaultTemplate
	case err != nil:
		g.logger.Warn("Failed to load saved prompt, using default", zap.Error(err))
		return prompt.DefaultTemplate
	case p == nil || strings.TrimSpace(p.Prompt) == "":
		return prompt.DefaultTemplate
	}
	return p.Prompt
}

func checkAPIKey(apiKey string) error {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return apperrors.New(apperrors.KindConfiguration, apiKeyMissingMessage)
	}
	if !strings.HasPrefix(key, apiKeyPrefix) || len(key) < apiKeyMinLength {
		return apperrors.New(apperrors.KindConfiguration, apiKeyFormatMessage)
	}
	return nil
}

func parseResponse(resp openai.ChatCompletionResponse) (*gptResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.KindMalformedResponse, malformedMessage("the response contained no choices"))
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed gptResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.KindMalformedResponse, err, malformedMessage("the response was not valid JSON"))
	}
	if parsed.Title == nil || parsed.Summary == nil {
		return nil, apperrors.New(apperrors.KindMalformedResponse, malformedMessage("the response is missing \"title\" or \"summary\""))
	}
	return &parsed, nil
}

func malformedMessage(reason string) string {
	return fmt.Sprintf("❌ Unexpected Summary Format!\n\nThe AI service returned a summary the app could not read: %s.\n"+
		"Try generating the summary again. If you use a custom prompt, make sure it still asks for a JSON object "+
		"with \"title\", \"summary\", \"keywords\" and \"category\".", reason)
}
