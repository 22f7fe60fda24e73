package farm

import (
	"context"
	"log/slog"

	"natronfarm/internal/jobs"
	"natronfarm/internal/logging"
)

// ProgressStore persists task progress.
type ProgressStore interface {
	UpdateTaskProgress(ctx context.Context, jobID string, taskID int, progress float64, message string) error
}

// ProgressFunc observes status updates, e.g. to draw a terminal progress line.
type ProgressFunc func(task *jobs.Task, status string, progress float64)

// storeReporter implements render.Reporter by writing every update to the
// job store. Progress logs are sampled so long frame ranges stay readable.
type storeReporter struct {
	ctx      context.Context
	store    ProgressStore
	task     *jobs.Task
	logger   *slog.Logger
	sampler  *logging.ProgressSampler
	observer ProgressFunc

	status   string
	progress float64
}

func newStoreReporter(ctx context.Context, store ProgressStore, task *jobs.Task, logger *slog.Logger, observer ProgressFunc) *storeReporter {
	return &storeReporter{
		ctx:      ctx,
		store:    store,
		task:     task,
		logger:   logger,
		sampler:  logging.NewProgressSampler(10),
		observer: observer,
	}
}

func (r *storeReporter) SetStatus(message string) {
	r.status = message
	r.flush()
}

func (r *storeReporter) SetProgress(percent float64) {
	if percent < r.progress {
		// The renderer restarted its range; log the new pass from the start.
		r.sampler.Reset()
	}
	r.progress = percent
	r.flush()
	if r.sampler.ShouldLog(percent, "render", r.status) {
		r.logger.Info("task progress",
			logging.Float64("progress", percent),
			logging.String("status", r.status),
		)
	}
}

func (r *storeReporter) flush() {
	r.task.Progress = r.progress
	r.task.StatusMessage = r.status
	if r.observer != nil {
		r.observer(r.task, r.status, r.progress)
	}
	if r.store == nil {
		return
	}
	if err := r.store.UpdateTaskProgress(r.ctx, r.task.JobID, r.task.ID, r.progress, r.status); err != nil {
		logging.WarnWithContext(r.logger, "failed to persist task progress", "progress_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the job database at paths.data_dir"),
			logging.String(logging.FieldImpact, "task status shown by jobs show may lag"),
		)
	}
}
