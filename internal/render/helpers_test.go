package render_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"natronfarm/internal/config"
	"natronfarm/internal/jobs"
	"natronfarm/internal/render"
)

type recordingReporter struct {
	statuses []string
	progress []float64
}

func (r *recordingReporter) SetStatus(message string) { r.statuses = append(r.statuses, message) }

func (r *recordingReporter) SetProgress(percent float64) { r.progress = append(r.progress, percent) }

func (r *recordingReporter) lastProgress() float64 {
	if len(r.progress) == 0 {
		return -1
	}
	return r.progress[len(r.progress)-1]
}

type stubLocator struct {
	path string
	err  error
}

func (l stubLocator) Locate(context.Context, *jobs.Job) (string, error) {
	return l.path, l.err
}

type dirTemps struct {
	root string
	tags []string
}

func (d *dirTemps) Create(tag string) (string, error) {
	d.tags = append(d.tags, tag)
	dir := filepath.Join(d.root, tag)
	return dir, os.MkdirAll(dir, 0o755)
}

func newJob(dataFile string) *jobs.Job {
	return &jobs.Job{
		ID:       "job-1",
		Name:     "Comp",
		DataFile: dataFile,
		Plugin:   jobs.PluginInfo{Version: "2.3", WriterNodeName: "Write1"},
	}
}

func newTask(start, end int) *jobs.Task {
	return &jobs.Task{JobID: "job-1", ID: 0, StartFrame: start, EndFrame: end}
}

func newSession(t *testing.T, cfg *config.Config, job *jobs.Job, task *jobs.Task, opts render.Options) *render.Session {
	t.Helper()
	opts.Config = cfg
	if opts.Locator == nil {
		opts.Locator = stubLocator{path: "/opt/Natron/bin/NatronRenderer"}
	}
	if opts.GOOS == "" {
		opts.GOOS = "linux"
	}
	session, err := render.NewSession(context.Background(), job, task, opts)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return session
}

// advance drives the session through every step up to and including target.
func advance(t *testing.T, s *render.Session, target render.State) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		state render.State
		run   func() error
	}{
		{render.StateInitialized, func() error { return s.Initialize(ctx) }},
		{render.StateExecutableResolved, func() error { _, err := s.ResolveExecutable(ctx); return err }},
		{render.StateArgumentsBuilt, func() error { _, err := s.BuildArguments(ctx); return err }},
		{render.StateStaged, func() error { _, err := s.PreRender(ctx); return err }},
		{render.StateRunning, s.MarkRunning},
		{render.StateCleanedUp, func() error { return s.PostRender(ctx) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("advancing to %s failed: %v", step.state, err)
		}
		if s.State() != step.state {
			t.Fatalf("expected state %s, got %s", step.state, s.State())
		}
		if step.state == target {
			return
		}
	}
}
