package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/topic-reader/internal/apperrors"
	"github.com/xaenox/topic-reader/internal/metrics"
	"github.com/xaenox/topic-reader/internal/models"
	"go.uber.org/zap"
)

// SaveResult reports where a summary ended up. Error is set when the remote
// tier was not written, or when the local copy could not follow the remote ID.
type SaveResult struct {
	FinalID      string `json:"id"`
	BackendSaved bool   `json:"backendSaved"`
	Error        string `json:"error,omitempty"`
}

// DualWriter saves summaries locally, then once to the remote tier.
// remote may be nil, in which case every save is local only.
type DualWriter struct {
	local  LocalStore
	remote SummaryStore
	now    func() time.Time
	logger *zap.Logger
}

func NewDualWriter(local LocalStore, remote SummaryStore, logger *zap.Logger) *DualWriter {
	return &DualWriter{
		local:  local,
		remote: remote,
		now:    time.Now,
		logger: logger,
	}
}

func (w *DualWriter) HasRemote() bool {
	return w.remote != nil
}

// Save writes summary to the local store and then to the remote store. Only a
// local failure is returned as an error.
func (w *DualWriter) Save(ctx context.Context, summary *models.Summary) (SaveResult, error) {
	record := cloneSummary(summary)
	if record.ID == "" {
		record.ID = fmt.Sprintf("%s-%d", record.ThreadID, w.now().UnixMilli())
	}

	localID, err := w.local.SaveSummary(ctx, record)
	if err != nil {
		w.logger.Error("Failed to save summary locally",
			zap.Error(err),
			zap.String("summary_id", record.ID),
			zap.String("thread_id", record.ThreadID))
		return SaveResult{}, apperrors.Wrap(apperrors.KindLocalStore, err,
			fmt.Sprintf("❌ Failed to save summary: %v\n\nCheck that the local database path is writable.", err))
	}
	metrics.SummariesSaved.WithLabelValues("local").Inc()

	if w.remote == nil {
		return SaveResult{
			FinalID: localID,
			Error:   "remote storage is not configured",
		}, nil
	}

	remoteID, err := w.remote.SaveSummary(ctx, record)
	if err != nil {
		metrics.RemoteSaveFailures.Inc()
		w.logger.Warn("Failed to save summary to remote storage, saved locally only",
			zap.Error(err),
			zap.Stringer("kind", apperrors.KindRemoteStore),
			zap.String("summary_id", localID),
			zap.String("thread_id", record.ThreadID))
		return SaveResult{
			FinalID: localID,
			Error:   err.Error(),
		}, nil
	}
	metrics.SummariesSaved.WithLabelValues("remote").Inc()

	if remoteID == "" || remoteID == localID {
		return SaveResult{FinalID: localID, BackendSaved: true}, nil
	}

	if err := w.local.RekeySummary(ctx, localID, remoteID); err != nil {
		w.logger.Warn("Failed to re-key local summary to remote id",
			zap.Error(err),
			zap.String("local_id", localID),
			zap.String("remote_id", remoteID))
		return SaveResult{
			FinalID:      localID,
			BackendSaved: true,
			Error:        fmt.Sprintf("saved remotely as %s but the local copy kept id %s: %v", remoteID, localID, err),
		}, nil
	}

	return SaveResult{FinalID: remoteID, BackendSaved: true}, nil
}

// GetSummaryByThreadID returns the current summary of a thread, looking in
// the local store first. Remote lookup failures are treated as not found.
func (w *DualWriter) GetSummaryByThreadID(ctx context.Context, threadID string) (*models.Summary, error) {
	summary, err := w.local.GetSummaryByThreadID(ctx, threadID)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.KindLocalStore, err, fmt.Sprintf("Failed to read local summaries: %v", err))
	}
	if w.remote == nil {
		return nil, ErrNotFound
	}

	summary, err = w.remote.GetSummaryByThreadID(ctx, threadID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			w.logger.Warn("Failed to look up summary in remote storage",
				zap.Error(err),
				zap.String("thread_id", threadID))
		}
		return nil, ErrNotFound
	}
	return summary, nil
}

// Local returns the local tier, which serves all reads.
func (w *DualWriter) Local() LocalStore {
	return w.local
}

// Delete removes a summary from both tiers.
func (w *DualWriter) Delete(ctx context.Context, id string) error {
	if err := w.local.DeleteSummary(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.KindLocalStore, err, fmt.Sprintf("Failed to delete summary: %v", err))
	}
	if w.remote != nil {
		if err := w.remote.DeleteSummary(ctx, id); err != nil {
			w.logger.Warn("Failed to delete summary from remote storage",
				zap.Error(err),
				zap.String("summary_id", id))
		}
	}
	return nil
}
