package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"natronfarm/internal/config"
	"natronfarm/internal/fileutil"
	"natronfarm/internal/jobs"
	"natronfarm/internal/logging"
	"natronfarm/internal/services"
)

// Locator finds the renderer executable for a job.
type Locator interface {
	Locate(ctx context.Context, job *jobs.Job) (string, error)
}

// NewLocator returns the locator selected by render.executable_strategy.
func NewLocator(cfg *config.Config, goos string, logger *slog.Logger) (Locator, error) {
	switch cfg.Render.ExecutableStrategy {
	case config.ExecutableStrategyConfigured, "":
		return &ConfiguredLocator{
			Executables:  cfg.Render.Executables,
			ConfigSource: "render.executables",
			GOOS:         goos,
			Logger:       logger,
		}, nil
	case config.ExecutableStrategyEnvironment:
		return &EnvironmentLocator{
			Variable:     cfg.Render.LocationVariable,
			RelativePath: cfg.Render.LocationRelativePath,
			Logger:       logger,
		}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "render", "locator",
			fmt.Sprintf("unknown executable strategy %q", cfg.Render.ExecutableStrategy), nil)
	}
}

// ConfiguredLocator searches the configured candidate list for the job's
// renderer version.
type ConfiguredLocator struct {
	// Executables maps version keys ("2_3") to semicolon separated lists.
	Executables map[string]string
	// ConfigSource names where operators edit Executables.
	ConfigSource string
	GOOS         string
	Logger       *slog.Logger

	// Search and SearchWidth default to the fileutil implementations.
	Search      func(list string) string
	SearchWidth func(list string, bits int) string
}

// Locate implements Locator.
func (l *ConfiguredLocator) Locate(ctx context.Context, job *jobs.Job) (string, error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(l.Logger, "render"))

	version, err := FormatVersion(job.Plugin.Version)
	if err != nil {
		return "", newTaskError(services.ErrValidation, "resolve_executable",
			fmt.Sprintf("Natron version %q is not a number", job.Plugin.Version), err)
	}

	list, ok := l.Executables[config.VersionKey(version)]
	if !ok {
		major := MajorVersion(version)
		list, ok = l.Executables[config.VersionKey(major)]
		if !ok {
			return "", newTaskError(services.ErrConfiguration, "resolve_executable",
				fmt.Sprintf("Natron major version %s is currently not supported.", strings.TrimSuffix(major, ".0")), nil)
		}
		logging.WarnWithContext(logger,
			fmt.Sprintf("Natron minor version %s is currently not supported, so version %s will be used instead.", version, major),
			"version_fallback",
			logging.String("requested_version", version),
			logging.String("fallback_version", major),
			logging.String(logging.FieldErrorHint, "add render.executables."+config.VersionKey(version)+" to pin this version"),
			logging.String(logging.FieldImpact, "task renders with the major version executable"),
		)
	}

	search := l.Search
	if search == nil {
		search = fileutil.SearchFileList
	}
	searchWidth := l.SearchWidth
	if searchWidth == nil {
		searchWidth = fileutil.SearchFileListForWidth
	}

	executable := ""
	if l.GOOS == "windows" {
		if bits := buildBits(job.Plugin.Build); bits != 0 {
			logger.Info(fmt.Sprintf("Enforcing %d bit build of Natron", bits))
			executable = searchWidth(list, bits)
			if executable == "" {
				logging.WarnWithContext(logger,
					fmt.Sprintf("%d bit Natron render executable was not found in the semicolon separated list \"%s\". Checking for any executable that exists instead.", bits, list),
					"build_fallback",
					logging.String(logging.FieldImpact, "task may render with a different build"),
				)
			}
		}
	}
	if executable == "" {
		logger.Info("Not enforcing a build of Natron")
		executable = search(list)
		if executable == "" {
			source := l.ConfigSource
			if source == "" {
				source = "render.executables"
			}
			return "", newTaskError(services.ErrConfiguration, "resolve_executable",
				fmt.Sprintf("Natron render executable was not found in the semicolon separated list \"%s\". The path to the render executable can be configured with %s in the natronfarm config file.", list, source), nil)
		}
	}
	return executable, nil
}

// EnvironmentLocator reads the install location from the job environment.
// The result is not checked for existence; a wrong location fails at launch.
type EnvironmentLocator struct {
	Variable     string
	RelativePath string
	Logger       *slog.Logger
}

// Locate implements Locator.
func (l *EnvironmentLocator) Locate(ctx context.Context, job *jobs.Job) (string, error) {
	location, ok := job.EnvironmentKeyValue(l.Variable)
	if !ok || strings.TrimSpace(location) == "" {
		logger := logging.WithContext(ctx, logging.NewComponentLogger(l.Logger, "render"))
		logging.WarnWithContext(logger, "install location missing from job environment",
			"executable_location_missing",
			logging.String("variable", l.Variable),
			logging.String(logging.FieldErrorHint, "submit from a shell with NATRON_VERSION set so the location is propagated"),
			logging.String(logging.FieldImpact, "renderer launch will likely fail"),
		)
	}
	return filepath.Join(location, filepath.FromSlash(l.RelativePath)), nil
}

// FormatVersion renders a numeric version the way the executable keys are
// written: at least one decimal place, no trailing zeros ("2" -> "2.0",
// "2.30" -> "2.3").
func FormatVersion(raw string) (string, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", err
	}
	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(formatted, ".") {
		formatted += ".0"
	}
	return formatted, nil
}

// MajorVersion truncates a formatted version to its major ".0" form.
func MajorVersion(version string) string {
	major, _, _ := strings.Cut(version, ".")
	return major + ".0"
}

func buildBits(build string) int {
	switch strings.ToLower(strings.TrimSpace(build)) {
	case "32bit":
		return 32
	case "64bit":
		return 64
	default:
		return 0
	}
}
