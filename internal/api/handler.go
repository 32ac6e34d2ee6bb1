package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xaenox/topic-reader/internal/apperrors"
	"github.com/xaenox/topic-reader/internal/models"
	"github.com/xaenox/topic-reader/internal/pipeline"
	"github.com/xaenox/topic-reader/internal/storage"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// Pipeline is the subset of pipeline.Service used by the handlers.
type Pipeline interface {
	ListChannels(ctx context.Context, guildID string) ([]models.Channel, error)
	ListThreads(ctx context.Context, channelID string) ([]models.Thread, error)
	GetMessages(ctx context.Context, threadID string) ([]models.Message, error)
	Summarize(ctx context.Context, req pipeline.Request, confirm pipeline.ConfirmFunc) (*pipeline.Result, error)
	SaveSummary(ctx context.Context, summary *models.Summary) (storage.SaveResult, error)
	GetSummaryByThread(ctx context.Context, threadID string) (*models.Summary, error)
}

type SummaryReader interface {
	GetSummary(ctx context.Context, id string) (*models.Summary, error)
	ListSummaries(ctx context.Context) ([]*models.Summary, error)
	ListSummariesByChannel(ctx context.Context, channelID string) ([]*models.Summary, error)
	ListSummariesByCategory(ctx context.Context, category string) ([]*models.Summary, error)
	SearchSummaries(ctx context.Context, query string) ([]*models.Summary, error)
}

type SummaryDeleter interface {
	Delete(ctx context.Context, id string) error
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	pipeline  Pipeline
	summaries SummaryReader
	deleter   SummaryDeleter
	prompts   storage.PromptStore
	logger    *zap.Logger
}

func NewHandler(p Pipeline, summaries SummaryReader, deleter SummaryDeleter, prompts storage.PromptStore, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline:  p,
		summaries: summaries,
		deleter:   deleter,
		prompts:   prompts,
		logger:    logger,
	}
}

// savedSummary is a summary together with the outcome of saving it.
// BackendSaved is omitted for summaries that were not written by this request.
type savedSummary struct {
	*models.Summary
	BackendSaved *bool  `json:"backendSaved,omitempty"`
	SaveError    string `json:"saveError,omitempty"`
	Existing     bool   `json:"existing,omitempty"`
}

type summarizeRequest struct {
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	ThreadName  string `json:"threadName"`
	Force       bool   `json:"force"`
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// fail maps err to a status code and writes its user-facing message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	message := err.Error()
	if errors.Is(err, storage.ErrNotFound) {
		message = fallback
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(fallback,
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.Stringer("kind", apperrors.KindOf(err)))
	}
	h.Error(w, status, message)
}

func statusFor(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidInput:
		return http.StatusBadRequest
	case apperrors.KindThreadNotFound:
		return http.StatusNotFound
	case apperrors.KindAccessDenied:
		return http.StatusForbidden
	case apperrors.KindUpstreamRateLimited:
		return http.StatusTooManyRequests
	case apperrors.KindConfiguration:
		return http.StatusServiceUnavailable
	case apperrors.KindNetwork, apperrors.KindUpstream, apperrors.KindUpstreamAuthInvalid,
		apperrors.KindUpstreamModelUnavailable, apperrors.KindMalformedResponse, apperrors.KindRemoteStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.pipeline.ListChannels(r.Context(), r.URL.Query().Get("guildId"))
	if err != nil {
		h.fail(w, r, err, "Failed to fetch channels")
		return
	}
	h.JSON(w, http.StatusOK, channels)
}

func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.pipeline.ListThreads(r.Context(), chi.URLParam(r, "channelID"))
	if err != nil {
		h.fail(w, r, err, "Failed to fetch threads")
		return
	}
	h.JSON(w, http.StatusOK, threads)
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.pipeline.GetMessages(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		h.fail(w, r, err, "Failed to fetch messages")
		return
	}
	h.JSON(w, http.StatusOK, messages)
}

// SummarizeThread runs the pipeline for one thread. The body is optional.
func (h *Handler) SummarizeThread(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			h.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	result, err := h.pipeline.Summarize(r.Context(), pipeline.Request{
		ThreadID:    chi.URLParam(r, "threadID"),
		ChannelID:   req.ChannelID,
		ChannelName: req.ChannelName,
		ThreadName:  req.ThreadName,
		Force:       req.Force,
	}, nil)
	if err != nil {
		h.fail(w, r, err, "Failed to generate summary")
		return
	}

	if result.Existing {
		h.JSON(w, http.StatusOK, savedSummary{Summary: result.Summary, Existing: true})
		return
	}
	backendSaved := result.Save.BackendSaved
	h.JSON(w, http.StatusCreated, savedSummary{
		Summary:      result.Summary,
		BackendSaved: &backendSaved,
		SaveError:    result.Save.Error,
	})
}

func (h *Handler) SaveSummary(w http.ResponseWriter, r *http.Request) {
	var summary models.Summary
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&summary); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(summary.ThreadID) == "" || strings.TrimSpace(summary.Title) == "" {
		h.Error(w, http.StatusBadRequest, "threadId and title are required")
		return
	}
	if summary.Keywords == nil {
		summary.Keywords = []string{}
	}
	if summary.Attachments == nil {
		summary.Attachments = []models.Attachment{}
	}
	if summary.Category == "" {
		summary.Category = models.CategoryOther
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now()
	}

	result, err := h.pipeline.SaveSummary(r.Context(), &summary)
	if err != nil {
		h.fail(w, r, err, "Failed to save summary")
		return
	}
	summary.ID = result.FinalID

	h.JSON(w, http.StatusCreated, savedSummary{
		Summary:      &summary,
		BackendSaved: &result.BackendSaved,
		SaveError:    result.Error,
	})
}

func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.summaries.ListSummaries(r.Context())
	h.writeList(w, r, summaries, err)
}

func (h *Handler) ListSummariesByChannel(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.summaries.ListSummariesByChannel(r.Context(), chi.URLParam(r, "channelID"))
	h.writeList(w, r, summaries, err)
}

func (h *Handler) ListSummariesByCategory(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.summaries.ListSummariesByCategory(r.Context(), chi.URLParam(r, "category"))
	h.writeList(w, r, summaries, err)
}

func (h *Handler) SearchSummaries(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(chi.URLParam(r, "query"))
	if query == "" {
		h.Error(w, http.StatusBadRequest, "Search query is required")
		return
	}
	summaries, err := h.summaries.SearchSummaries(r.Context(), query)
	h.writeList(w, r, summaries, err)
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, summaries []*models.Summary, err error) {
	if err != nil {
		h.fail(w, r, err, "Failed to fetch summaries")
		return
	}
	if summaries == nil {
		summaries = []*models.Summary{}
	}
	h.JSON(w, http.StatusOK, summaries)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summaries.GetSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Summary not found")
		return
	}
	h.JSON(w, http.StatusOK, summary)
}

func (h *Handler) GetSummaryByThread(w http.ResponseWriter, r *http.Request) {
	summary, err := h.pipeline.GetSummaryByThread(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		h.fail(w, r, err, "Summary not found")
		return
	}
	h.JSON(w, http.StatusOK, summary)
}

func (h *Handler) DeleteSummary(w http.ResponseWriter, r *http.Request) {
	if err := h.deleter.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "Failed to delete summary")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func promptKey(r *http.Request) string {
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	return models.DefaultPromptKey
}

func (h *Handler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.prompts.GetPrompt(r.Context(), promptKey(r))
	if err != nil {
		h.fail(w, r, err, "Prompt not found")
		return
	}
	h.JSON(w, http.StatusOK, p)
}

func (h *Handler) SavePrompt(w http.ResponseWriter, r *http.Request) {
	var p models.Prompt
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&p); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(p.Prompt) == "" {
		h.Error(w, http.StatusBadRequest, "Prompt content is required")
		return
	}
	if p.Key == "" {
		p.Key = models.DefaultPromptKey
	}

	saved, err := h.prompts.SavePrompt(r.Context(), &p)
	if err != nil {
		h.fail(w, r, err, "Failed to save prompt")
		return
	}
	h.JSON(w, http.StatusOK, saved)
}

func (h *Handler) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.prompts.DeletePrompt(r.Context(), promptKey(r)); err != nil {
		h.fail(w, r, err, "Failed to delete prompt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
