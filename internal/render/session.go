package render

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"

	"natronfarm/internal/config"
	"natronfarm/internal/jobs"
	"natronfarm/internal/logging"
	"natronfarm/internal/services"
)

// Reporter receives the task status shown to operators.
type Reporter interface {
	SetStatus(message string)
	SetProgress(percent float64)
}

// TempDirs creates scratch directories scoped by a caller supplied tag.
type TempDirs interface {
	Create(tag string) (string, error)
}

// PathMapper rewrites paths between the submitting and rendering machines.
type PathMapper interface {
	MapPath(path string) string
	MapFile(src, dst string, mode os.FileMode) error
}

// Options carries the collaborators a Session needs. Locator defaults to the
// one selected by the config; GOOS defaults to runtime.GOOS.
type Options struct {
	Config   *config.Config
	Locator  Locator
	Mapper   PathMapper
	TempDirs TempDirs
	Reporter Reporter
	Logger   *slog.Logger
	GOOS     string
	Thread   int
}

// Session is the execution context of one task. It is not safe for
// concurrent use; the host delivers output lines one at a time.
type Session struct {
	job      *jobs.Job
	task     *jobs.Task
	cfg      *config.Config
	locator  Locator
	mapper   PathMapper
	temps    TempDirs
	reporter Reporter
	logger   *slog.Logger
	goos     string
	thread   int

	state    State
	failure  *TaskError
	handlers []lineHandler

	executable   string
	args         []string
	sourcePath   string
	projectPath  string
	stagedFile   string
	cleaned      bool
	currentFrame int
	progress     float64
	// baseProgress is the prior share carried into frame progress. Frame
	// markers never write it, so reported progress is not fed back in.
	baseProgress float64
	status       string
}

// NewSession prepares an idle session for task.
func NewSession(ctx context.Context, job *jobs.Job, task *jobs.Task, opts Options) (*Session, error) {
	if job == nil || task == nil {
		return nil, services.Wrap(services.ErrValidation, "render", "new session", "job and task are required", nil)
	}
	if opts.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "new session", "config is required", nil)
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithTaskID(ctx, task.ID)
	ctx = services.WithThread(ctx, opts.Thread)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "render"))

	locator := opts.Locator
	if locator == nil {
		var err error
		locator, err = NewLocator(opts.Config, goos, opts.Logger)
		if err != nil {
			return nil, err
		}
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = discardReporter{}
	}

	return &Session{
		job:      job,
		task:     task,
		cfg:      opts.Config,
		locator:  locator,
		mapper:   opts.Mapper,
		temps:    opts.TempDirs,
		reporter: reporter,
		logger:   logger,
		goos:     goos,
		thread:   opts.Thread,
		state:    StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Failure returns the recorded failure, or nil.
func (s *Session) Failure() error {
	if s.failure == nil {
		return nil
	}
	return s.failure
}

// Executable returns the resolved renderer path.
func (s *Session) Executable() string { return s.executable }

// ProjectPath returns the project file the renderer will open, with
// separators for the render host.
func (s *Session) ProjectPath() string { return s.projectPath }

// Progress returns the last reported progress percentage.
func (s *Session) Progress() float64 { return s.progress }

// Status returns the last reported status message.
func (s *Session) Status() string { return s.status }

// CurrentFrame returns the last frame reported by the renderer.
func (s *Session) CurrentFrame() int { return s.currentFrame }

// Initialize installs the output line handlers. One renderer process covers
// the whole frame range of the task.
func (s *Session) Initialize(ctx context.Context) error {
	if err := s.enter("initialize", StateIdle); err != nil {
		return err
	}
	s.handlers = defaultHandlers()
	s.state = StateInitialized
	s.logger.Debug("session initialized",
		logging.String("frames", s.task.FrameRange()),
		logging.Int("handlers", len(s.handlers)),
	)
	return nil
}

// ResolveExecutable locates the renderer through the configured strategy.
func (s *Session) ResolveExecutable(ctx context.Context) (string, error) {
	if err := s.enter("resolve_executable", StateInitialized); err != nil {
		return "", err
	}
	executable, err := s.locator.Locate(ctx, s.job)
	if err != nil {
		return "", s.fail(err)
	}
	s.executable = executable
	s.state = StateExecutableResolved
	s.logger.Info("renderer executable resolved", logging.String("executable", executable))
	return executable, nil
}

// MarkRunning records that the host launched the renderer.
func (s *Session) MarkRunning() error {
	if err := s.enter("mark_running", StateStaged); err != nil {
		return err
	}
	s.state = StateRunning
	return nil
}

// Fail records an externally detected failure, such as a launch error or
// cancellation, and returns it as a *TaskError.
func (s *Session) Fail(reason string, cause error) error {
	if s.failure != nil {
		return s.failure
	}
	return s.fail(newTaskError(services.ErrExternalTool, "run", reason, cause))
}

// enter checks that the session is in one of the allowed states.
func (s *Session) enter(step string, allowed ...State) error {
	if s.failure != nil {
		return s.failure
	}
	for _, state := range allowed {
		if s.state == state {
			return nil
		}
	}
	return outOfOrder(step, s.state)
}

func (s *Session) fail(err error) error {
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		taskErr = newTaskError(services.ErrExternalTool, "render", err.Error(), err)
	}
	s.failure = taskErr
	s.state = StateFailed
	logging.ErrorWithContext(s.logger, "task failed", "task_failed",
		logging.String("step", taskErr.Step),
		logging.String("reason", taskErr.Reason),
		logging.String(logging.FieldErrorHint, hintFor(taskErr)),
	)
	return taskErr
}

func (s *Session) setStatus(message string) {
	s.status = message
	s.reporter.SetStatus(message)
}

func (s *Session) setProgress(percent float64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	s.progress = percent
	s.reporter.SetProgress(percent)
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrValidation):
		return "fix the job or render configuration and requeue the task"
	default:
		return "inspect renderer output for the failing frame"
	}
}

type discardReporter struct{}

func (discardReporter) SetStatus(string)    {}
func (discardReporter) SetProgress(float64) {}
