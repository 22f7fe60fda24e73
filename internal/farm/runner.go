package farm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"natronfarm/internal/config"
	"natronfarm/internal/jobs"
	"natronfarm/internal/logging"
	"natronfarm/internal/pathmap"
	"natronfarm/internal/render"
	"natronfarm/internal/services"
)

// TaskStore is the subset of jobs.Store the runner needs.
type TaskStore interface {
	ProgressStore
	ListTasks(ctx context.Context, jobID string) ([]*jobs.Task, error)
	MarkTaskRunning(ctx context.Context, jobID string, taskID int) error
	FinishTask(ctx context.Context, jobID string, taskID int, status jobs.TaskStatus, exitCode *int, failure string) error
}

// Result is the outcome of one task run.
type Result struct {
	TaskID   int
	Status   jobs.TaskStatus
	ExitCode *int
	Err      error
	Duration time.Duration
}

// Runner executes render tasks on this machine.
type Runner struct {
	cfg      *config.Config
	store    TaskStore
	exec     Executor
	locator  render.Locator
	mapper   render.PathMapper
	base     *slog.Logger
	logger   *slog.Logger
	goos     string
	observer ProgressFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLocator overrides the executable strategy from the config.
func WithLocator(locator render.Locator) Option {
	return func(r *Runner) { r.locator = locator }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.base = logger }
}

// WithGOOS overrides the platform used for path normalization and build lookup.
func WithGOOS(goos string) Option {
	return func(r *Runner) { r.goos = goos }
}

// WithProgress registers an observer for status updates.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) { r.observer = fn }
}

// NewRunner constructs a Runner for cfg backed by store.
func NewRunner(cfg *config.Config, store TaskStore, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		store:  store,
		exec:   CommandExecutor{},
		mapper: pathmap.FromConfig(cfg),
		goos:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.base, "farm")
	return r
}

// RunPending runs every task of job that has not finished yet, in order, on
// slot thread. It stops early when ctx ends.
func (r *Runner) RunPending(ctx context.Context, job *jobs.Job, thread int) ([]Result, error) {
	tasks, err := r.store.ListTasks(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var results []Result
	for _, task := range tasks {
		if task.Status.IsTerminal() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := r.Run(ctx, job, task, thread)
		if err != nil && result.Status == "" {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Run drives one task through a render session. Task failures are persisted
// and reported in Result.Err; the returned error is reserved for problems
// that prevented the task from being attempted, such as a busy slot.
func (r *Runner) Run(ctx context.Context, job *jobs.Job, task *jobs.Task, thread int) (Result, error) {
	started := time.Now()
	ctx = services.WithRequestID(ctx, uuid.NewString())
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithTaskID(ctx, task.ID)
	ctx = services.WithThread(ctx, thread)
	logger := logging.WithContext(ctx, r.logger)

	slot, err := AcquireSlot(r.cfg.Paths.TempDir, thread)
	if err != nil {
		return Result{TaskID: task.ID}, err
	}
	defer func() {
		if err := slot.Release(); err != nil {
			logging.WarnWithContext(logger, "failed to release render slot", "slot_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "slot temp directory may need manual cleanup"),
			)
		}
	}()

	if err := r.store.MarkTaskRunning(ctx, job.ID, task.ID); err != nil {
		return Result{TaskID: task.ID}, fmt.Errorf("mark task running: %w", err)
	}
	task.Status = jobs.TaskStatusRunning
	logger.Info("task started",
		logging.String("frames", task.FrameRange()),
		logging.String("slot_dir", slot.Dir),
	)

	persistCtx := context.WithoutCancel(ctx)
	reporter := newStoreReporter(persistCtx, r.store, task, logger, r.observer)
	session, err := render.NewSession(ctx, job, task, render.Options{
		Config:   r.cfg,
		Locator:  r.locator,
		Mapper:   r.mapper,
		TempDirs: slot,
		Reporter: reporter,
		Logger:   r.base,
		GOOS:     r.goos,
		Thread:   thread,
	})
	if err != nil {
		return r.finish(persistCtx, logger, task, started, nil, err), nil
	}

	exitCode, ran := r.drive(ctx, session)

	if err := session.PostRender(ctx); err != nil {
		logger.Debug("post render skipped", logging.Error(err))
	}
	var taskErr error
	if ran {
		taskErr = session.CheckExitCode(exitCode)
	} else {
		taskErr = session.Failure()
	}

	var codePtr *int
	if ran {
		codePtr = &exitCode
	}
	return r.finish(persistCtx, logger, task, started, codePtr, taskErr), nil
}

// drive runs the session up to process exit. ran reports whether the
// renderer process started and exited on its own.
func (r *Runner) drive(ctx context.Context, session *render.Session) (int, bool) {
	if err := session.Initialize(ctx); err != nil {
		return -1, false
	}
	executable, err := session.ResolveExecutable(ctx)
	if err != nil {
		return -1, false
	}
	args, err := session.BuildArguments(ctx)
	if err != nil {
		return -1, false
	}
	if _, err := session.PreRender(ctx); err != nil {
		return -1, false
	}
	if err := session.MarkRunning(); err != nil {
		return -1, false
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	code, err := r.exec.Run(runCtx, executable, args, func(line string) {
		if session.HandleLine(line) != nil {
			// The task already failed on this output; stop the renderer.
			cancel()
		}
	})
	if session.Failure() != nil {
		return code, false
	}
	if err != nil {
		reason := "launch renderer"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = "renderer interrupted"
		}
		_ = session.Fail(reason, err)
		return code, false
	}
	return code, true
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, task *jobs.Task, started time.Time, exitCode *int, taskErr error) Result {
	result := Result{
		TaskID:   task.ID,
		Status:   jobs.TaskStatusCompleted,
		ExitCode: exitCode,
		Err:      taskErr,
		Duration: time.Since(started),
	}
	failure := ""
	if taskErr != nil {
		result.Status = services.FailureStatus(taskErr)
		failure = taskErr.Error()
	}
	if err := r.store.FinishTask(ctx, task.JobID, task.ID, result.Status, exitCode, failure); err != nil {
		logging.ErrorWithContext(logger, "failed to persist task outcome", "task_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the job database at paths.data_dir"),
		)
	}
	task.Status = result.Status
	task.ExitCode = exitCode
	task.Failure = failure

	attrs := []logging.Attr{
		logging.String("status", string(result.Status)),
		logging.Duration("duration", result.Duration.Round(time.Millisecond)),
	}
	if exitCode != nil {
		attrs = append(attrs, logging.Int("exit_code", *exitCode))
	}
	if taskErr != nil {
		attrs = append(attrs, logging.String("reason", failure))
		logger.Info("task finished with failure", logging.Args(attrs...)...)
	} else {
		logger.Info("task finished", logging.Args(attrs...)...)
	}
	return result
}
