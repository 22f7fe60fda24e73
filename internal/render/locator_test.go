package render_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"natronfarm/internal/config"
	"natronfarm/internal/jobs"
	"natronfarm/internal/render"
	"natronfarm/internal/services"
	"natronfarm/internal/testsupport"
)

func jobWithVersion(version, build string) *jobs.Job {
	job := newJob("/projects/comp.ntp")
	job.Plugin.Version = version
	job.Plugin.Build = build
	return job
}

func TestConfiguredLocatorExactVersion(t *testing.T) {
	logger, logs := testsupport.NewCaptureLogger(t)
	locator := &render.ConfiguredLocator{
		Executables: map[string]string{"2_3": "/a;/b", "2_0": "/old"},
		GOOS:        "linux",
		Logger:      logger,
		Search: func(list string) string {
			if list != "/a;/b" {
				t.Fatalf("searched unexpected list %q", list)
			}
			return "/b"
		},
	}
	got, err := locator.Locate(context.Background(), jobWithVersion("2.3", ""))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "/b" {
		t.Fatalf("Locate = %q, want /b", got)
	}
	if len(logs.Lines("WARN")) != 0 {
		t.Fatalf("exact match must not warn, got %q", logs.String())
	}
}

func TestConfiguredLocatorFallsBackToMajorVersion(t *testing.T) {
	logger, logs := testsupport.NewCaptureLogger(t)
	locator := &render.ConfiguredLocator{
		Executables: map[string]string{"2_0": "/opt/Natron2/bin/NatronRenderer"},
		GOOS:        "linux",
		Logger:      logger,
		Search:      func(list string) string { return list },
	}
	got, err := locator.Locate(context.Background(), jobWithVersion("2.5", ""))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "/opt/Natron2/bin/NatronRenderer" {
		t.Fatalf("Locate = %q", got)
	}
	warnings := logs.Lines("WARN")
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "minor version 2.5") || !strings.Contains(warnings[0], "version 2.0 will be used") {
		t.Fatalf("unexpected warning text: %q", warnings[0])
	}
}

func TestConfiguredLocatorUnsupportedVersion(t *testing.T) {
	locator := &render.ConfiguredLocator{
		Executables: map[string]string{"2_0": "/opt/Natron2/bin/NatronRenderer"},
		GOOS:        "linux",
		Search:      func(string) string { t.Fatal("search must not run"); return "" },
	}
	_, err := locator.Locate(context.Background(), jobWithVersion("3.1", ""))
	var taskErr *render.TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected TaskError, got %v", err)
	}
	if taskErr.Reason != "Natron major version 3 is currently not supported." {
		t.Fatalf("unexpected reason %q", taskErr.Reason)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestConfiguredLocatorExecutableMissing(t *testing.T) {
	locator := &render.ConfiguredLocator{
		Executables: map[string]string{"2_3": "/missing/a;/missing/b"},
		GOOS:        "linux",
	}
	_, err := locator.Locate(context.Background(), jobWithVersion("2.3", ""))
	if err == nil {
		t.Fatal("expected not-found failure")
	}
	msg := err.Error()
	if !strings.Contains(msg, `"/missing/a;/missing/b"`) || !strings.Contains(msg, "render.executables") {
		t.Fatalf("expected list and config source in %q", msg)
	}
	if services.FailureStatus(err) != jobs.TaskStatusReview {
		t.Fatalf("missing executable should need review, got %s", services.FailureStatus(err))
	}
}

func TestConfiguredLocatorRejectsNonNumericVersion(t *testing.T) {
	locator := &render.ConfiguredLocator{Executables: map[string]string{"2_0": "/x"}, GOOS: "linux"}
	if _, err := locator.Locate(context.Background(), jobWithVersion("latest", "")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfiguredLocatorBuildPreferenceOnWindows(t *testing.T) {
	var widthCalls []int
	newLocator := func(widthResult string) *render.ConfiguredLocator {
		return &render.ConfiguredLocator{
			Executables: map[string]string{"2_3": `C:\x86\Natron.exe;C:\x64\Natron.exe`},
			GOOS:        "windows",
			Search:      func(string) string { return `C:\x86\Natron.exe` },
			SearchWidth: func(_ string, bits int) string {
				widthCalls = append(widthCalls, bits)
				return widthResult
			},
		}
	}

	locator := newLocator(`C:\x64\Natron.exe`)
	got, err := locator.Locate(context.Background(), jobWithVersion("2.3", "64bit"))
	if err != nil || got != `C:\x64\Natron.exe` {
		t.Fatalf("64bit search = %q, %v", got, err)
	}

	logger, logs := testsupport.NewCaptureLogger(t)
	locator = newLocator("")
	locator.Logger = logger
	got, err = locator.Locate(context.Background(), jobWithVersion("2.3", "32BIT"))
	if err != nil || got != `C:\x86\Natron.exe` {
		t.Fatalf("fallback search = %q, %v", got, err)
	}
	if warnings := logs.Lines("WARN"); len(warnings) != 1 || !strings.Contains(warnings[0], "32 bit Natron render executable was not found") {
		t.Fatalf("expected build fallback warning, got %v", warnings)
	}
	if len(widthCalls) != 2 || widthCalls[0] != 64 || widthCalls[1] != 32 {
		t.Fatalf("unexpected width searches: %v", widthCalls)
	}
}

func TestConfiguredLocatorIgnoresBuildOffWindows(t *testing.T) {
	locator := &render.ConfiguredLocator{
		Executables: map[string]string{"2_3": "/opt/a"},
		GOOS:        "linux",
		Search:      func(list string) string { return list },
		SearchWidth: func(string, int) string { t.Fatal("width search must only run on windows"); return "" },
	}
	if got, err := locator.Locate(context.Background(), jobWithVersion("2.3", "64bit")); err != nil || got != "/opt/a" {
		t.Fatalf("Locate = %q, %v", got, err)
	}
}

func TestEnvironmentLocator(t *testing.T) {
	logger, logs := testsupport.NewCaptureLogger(t)
	locator := &render.EnvironmentLocator{Variable: "NATRON_LOCATION", RelativePath: "bin/NatronRenderer", Logger: logger}

	job := newJob("/projects/comp.ntp")
	job.SetEnvironmentKeyValue("NATRON_LOCATION", "/opt/Natron-2.3")
	got, err := locator.Locate(context.Background(), job)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "/opt/Natron-2.3/bin/NatronRenderer" {
		t.Fatalf("Locate = %q", got)
	}
	if len(logs.Lines("WARN")) != 0 {
		t.Fatal("no warning expected when location is set")
	}

	got, err = locator.Locate(context.Background(), newJob("/projects/comp.ntp"))
	if err != nil {
		t.Fatalf("missing location must not fail resolution: %v", err)
	}
	if got != "bin/NatronRenderer" {
		t.Fatalf("Locate without location = %q", got)
	}
	if len(logs.Lines("event_type=executable_location_missing")) != 1 {
		t.Fatalf("expected missing location warning, got %q", logs.String())
	}
}

func TestNewLocatorSelectsStrategy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	locator, err := render.NewLocator(cfg, "linux", nil)
	if err != nil {
		t.Fatalf("NewLocator failed: %v", err)
	}
	if _, ok := locator.(*render.ConfiguredLocator); !ok {
		t.Fatalf("expected configured locator, got %T", locator)
	}

	cfg.Render.ExecutableStrategy = config.ExecutableStrategyEnvironment
	locator, err = render.NewLocator(cfg, "linux", nil)
	if err != nil {
		t.Fatalf("NewLocator failed: %v", err)
	}
	if env, ok := locator.(*render.EnvironmentLocator); !ok || env.Variable != "NATRON_LOCATION" {
		t.Fatalf("expected environment locator, got %#v", locator)
	}

	cfg.Render.ExecutableStrategy = "guess"
	if _, err := render.NewLocator(cfg, "linux", nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFormatVersion(t *testing.T) {
	cases := map[string]string{"2": "2.0", "2.3": "2.3", "2.30": "2.3", " 2.0 ": "2.0", "10.25": "10.25"}
	for in, want := range cases {
		got, err := render.FormatVersion(in)
		if err != nil || got != want {
			t.Fatalf("FormatVersion(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := render.FormatVersion("two"); err == nil {
		t.Fatal("expected error for non-numeric version")
	}
	if got := render.MajorVersion("2.5"); got != "2.0" {
		t.Fatalf("MajorVersion = %q", got)
	}
}

func TestResolveFailureStopsSession(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPathMapping(false))
	cfg.Render.Executables = map[string]string{"2_0": "/opt/Natron2/bin/NatronRenderer"}
	job := newJob("/projects/comp.ntp")
	job.Plugin.Version = "3.1"

	locator, err := render.NewLocator(cfg, "linux", nil)
	if err != nil {
		t.Fatal(err)
	}
	session := newSession(t, cfg, job, newTask(1, 10), render.Options{Locator: locator})
	ctx := context.Background()
	if err := session.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	_, resolveErr := session.ResolveExecutable(ctx)
	if resolveErr == nil {
		t.Fatal("expected unsupported version failure")
	}
	if session.State() != render.StateFailed {
		t.Fatalf("state = %s, want failed", session.State())
	}
	if _, err := session.BuildArguments(ctx); err != resolveErr {
		t.Fatalf("BuildArguments after failure = %v, want recorded failure", err)
	}
	if _, err := session.PreRender(ctx); err != resolveErr {
		t.Fatalf("PreRender after failure = %v, want recorded failure", err)
	}
	if err := session.PostRender(ctx); err != nil {
		t.Fatalf("PostRender must still run after failure: %v", err)
	}
	if err := session.CheckExitCode(0); err != resolveErr {
		t.Fatalf("CheckExitCode after failure = %v, want recorded failure", err)
	}
	if session.Executable() != "" {
		t.Fatalf("no executable expected, got %q", session.Executable())
	}
}
