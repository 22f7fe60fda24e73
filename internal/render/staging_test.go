package render_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"natronfarm/internal/pathmap"
	"natronfarm/internal/render"
	"natronfarm/internal/services"
	"natronfarm/internal/testsupport"
)

func TestPreRenderStagesByteIdenticalCopyPerThread(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := filepath.Join(t.TempDir(), "comp.ntp")
	content := "<Project><Node name=\"Write1\"/></Project>\n"
	testsupport.WriteFile(t, source, content, 0o750)
	temps := &dirTemps{root: t.TempDir()}

	staged := make(map[int]string)
	for _, thread := range []int{1, 2} {
		session := newSession(t, cfg, newJob(source), newTask(1, 10), render.Options{
			TempDirs: temps,
			Thread:   thread,
			GOOS:     runtime.GOOS,
			Mapper:   pathmap.New(nil),
		})
		advance(t, session, render.StateStaged)
		path := session.ProjectPath()
		if path == source {
			t.Fatal("staged path must differ from the source when mapping is enabled")
		}
		if got := testsupport.ReadFile(t, path); got != content {
			t.Fatalf("staged content = %q, want %q", got, content)
		}
		if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0o750 {
				t.Fatalf("staged mode = %v, want 0750", info.Mode().Perm())
			}
		}
		staged[thread] = path
	}
	if filepath.Dir(staged[1]) == filepath.Dir(staged[2]) {
		t.Fatalf("threads share a staging directory: %v", staged)
	}
}

func TestPostRenderDeletesStagedCopy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := filepath.Join(t.TempDir(), "comp.ntp")
	testsupport.WriteFile(t, source, "project", 0o644)
	logger, logs := testsupport.NewCaptureLogger(t)

	session := newSession(t, cfg, newJob(source), newTask(1, 10), render.Options{
		TempDirs: &dirTemps{root: t.TempDir()},
		GOOS:     runtime.GOOS,
		Logger:   logger,
	})
	advance(t, session, render.StateCleanedUp)

	if _, err := os.Stat(session.ProjectPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staged copy should be deleted, stat err = %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must survive cleanup: %v", err)
	}
	if len(logs.Lines("Deleted Natron Temp Project File")) != 1 {
		t.Fatalf("expected deletion log, got %q", logs.String())
	}
	if err := session.PostRender(context.Background()); !errors.Is(err, render.ErrOutOfOrder) {
		t.Fatalf("second PostRender should be out of order, got %v", err)
	}
}

func TestPostRenderCleanupFailureOnlyWarns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := filepath.Join(t.TempDir(), "comp.ntp")
	testsupport.WriteFile(t, source, "project", 0o644)
	logger, logs := testsupport.NewCaptureLogger(t)

	session := newSession(t, cfg, newJob(source), newTask(1, 10), render.Options{
		TempDirs: &dirTemps{root: t.TempDir()},
		GOOS:     runtime.GOOS,
		Logger:   logger,
	})
	advance(t, session, render.StateRunning)

	staged := session.ProjectPath()
	if err := os.Remove(staged); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, filepath.Join(staged, "blocker"), "x", 0o644)

	if err := session.PostRender(context.Background()); err != nil {
		t.Fatalf("cleanup failure must not fail the task: %v", err)
	}
	if session.State() != render.StateCleanedUp {
		t.Fatalf("state = %s", session.State())
	}
	if len(logs.Lines("event_type=staging_cleanup_failed")) != 1 {
		t.Fatalf("expected cleanup warning, got %q", logs.String())
	}
	if err := session.CheckExitCode(0); err != nil {
		t.Fatalf("CheckExitCode failed: %v", err)
	}
}

func TestPathMappingDisabledUsesSourceDirectly(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPathMapping(false))
	source := filepath.Join(t.TempDir(), "comp.ntp")
	testsupport.WriteFile(t, source, "project", 0o644)
	temps := &dirTemps{root: t.TempDir()}

	session := newSession(t, cfg, newJob(source), newTask(1, 10), render.Options{TempDirs: temps, GOOS: runtime.GOOS})
	advance(t, session, render.StateCleanedUp)

	if session.ProjectPath() != source {
		t.Fatalf("ProjectPath = %q, want %q", session.ProjectPath(), source)
	}
	if len(temps.tags) != 0 {
		t.Fatalf("no temp directory expected, got %v", temps.tags)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must not be deleted when mapping is disabled: %v", err)
	}
}

func TestPreRenderRewritesMappedContent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := filepath.Join(t.TempDir(), "comp.ntp")
	testsupport.WriteFile(t, source, `<Read file="P:\plates\a.exr"/>`, 0o644)
	mapper := pathmap.New([]pathmap.Rule{{From: `P:\plates`, To: "/mnt/plates"}})

	session := newSession(t, cfg, newJob(source), newTask(1, 10), render.Options{
		TempDirs: &dirTemps{root: t.TempDir()},
		GOOS:     runtime.GOOS,
		Mapper:   mapper,
	})
	advance(t, session, render.StateStaged)
	if got := testsupport.ReadFile(t, session.ProjectPath()); got != `<Read file="/mnt/plates\a.exr"/>` {
		t.Fatalf("staged content = %q", got)
	}
}

func TestPreRenderMissingSourceNeedsReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	session := newSession(t, cfg, newJob(filepath.Join(t.TempDir(), "missing.ntp")), newTask(1, 10), render.Options{
		TempDirs: &dirTemps{root: t.TempDir()},
		GOOS:     runtime.GOOS,
	})
	advance(t, session, render.StateArgumentsBuilt)

	_, err := session.PreRender(context.Background())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := session.PostRender(context.Background()); err != nil {
		t.Fatalf("PostRender after staging failure: %v", err)
	}
	if session.State() != render.StateFailed {
		t.Fatalf("state = %s, want failed", session.State())
	}
}

func TestPathMappingWithoutTempDirsFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	session := newSession(t, cfg, newJob("/projects/comp.ntp"), newTask(1, 10), render.Options{})
	advance(t, session, render.StateExecutableResolved)
	if _, err := session.BuildArguments(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
