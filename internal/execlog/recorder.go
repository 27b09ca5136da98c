// Package execlog writes pipeline execution logs. Logging is
// best-effort: a failed insert must never abort the run it describes.
package execlog

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Past-Tang/x/internal/models"
)

// ActionMetrics counts recorded actions. Satisfied by the metrics
// collector.
type ActionMetrics interface {
	RecordAction(actionType, result string)
}

// Recorder persists execution logs.
type Recorder struct {
	repo    models.ExecutionLogRepository
	metrics ActionMetrics
	logger  *slog.Logger
}

// NewRecorder constructs a Recorder. metrics may be nil.
func NewRecorder(repo models.ExecutionLogRepository, metrics ActionMetrics, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, metrics: metrics, logger: logger}
}

// Record assigns the log an id and inserts it. Errors are logged and
// swallowed.
func (r *Recorder) Record(ctx context.Context, entry *models.ExecutionLog) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if r.metrics != nil {
		r.metrics.RecordAction(string(entry.LogType), string(entry.Result))
	}
	if err := r.repo.Insert(ctx, entry); err != nil {
		r.logger.Error("failed to write execution log",
			"log_type", entry.LogType,
			"result", entry.Result,
			"error", err)
	}
}
