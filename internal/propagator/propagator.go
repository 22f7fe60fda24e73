// Package propagator copies tool environment variables from the submitting
// shell onto a job so every render task sees the same tool environment.
package propagator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"natronfarm/internal/ecosystem"
	"natronfarm/internal/jobs"
	"natronfarm/internal/logging"
	"natronfarm/internal/services"
)

// Environment variables that mark an installed tool family.
const (
	HoudiniVersionVar = "HOUDINI_VERSION"
	HtoaVersionVar    = "HTOA_VERSION"
	NatronVersionVar  = "NATRON_VERSION"
)

// LookupFunc reads one variable from the submitting environment.
type LookupFunc func(key string) (string, bool)

// JobSaver persists a mutated job.
type JobSaver interface {
	SaveJob(ctx context.Context, job *jobs.Job) error
}

// Propagator implements the job-submitted hook.
type Propagator struct {
	lookup   LookupFunc
	resolver ecosystem.Resolver
	saver    JobSaver
	logger   *slog.Logger
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithLookup replaces os.LookupEnv as the environment source.
func WithLookup(lookup LookupFunc) Option {
	return func(p *Propagator) {
		if lookup != nil {
			p.lookup = lookup
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Propagator) {
		p.logger = logger
	}
}

// New constructs a Propagator.
func New(resolver ecosystem.Resolver, saver JobSaver, opts ...Option) *Propagator {
	p := &Propagator{
		lookup:   os.LookupEnv,
		resolver: resolver,
		saver:    saver,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "propagator")
	return p
}

// DetectTools returns the tool identifiers implied by the submitting
// environment. When both the houdini and natron markers are set, natron wins.
func (p *Propagator) DetectTools(ctx context.Context) []ecosystem.ToolID {
	logger := logging.WithContext(ctx, p.logger)

	var tools []ecosystem.ToolID
	houdini, hasHoudini := p.value(HoudiniVersionVar)
	if hasHoudini {
		tools = []ecosystem.ToolID{{Name: "houdini", Version: houdini}}
		if htoa, ok := p.value(HtoaVersionVar); ok {
			tools = append(tools, ecosystem.ToolID{Name: "htoa", Version: htoa})
		}
	}
	if natron, ok := p.value(NatronVersionVar); ok {
		if hasHoudini {
			logging.WarnWithContext(logger, "multiple tool markers set; using natron",
				"tool_detection",
				logging.String("houdini_version", houdini),
				logging.String("natron_version", natron),
				logging.String(logging.FieldErrorHint, "unset "+HoudiniVersionVar+" or "+NatronVersionVar+" before submitting"),
				logging.String(logging.FieldImpact, "houdini environment not copied to job"),
			)
		}
		tools = []ecosystem.ToolID{{Name: "natron", Version: natron}}
	}
	return tools
}

// OnJobSubmitted resolves the submitting tool environment and stores every
// resolved variable's current value on the job before saving it. Resolver and
// save errors are returned unchanged.
func (p *Propagator) OnJobSubmitted(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "propagator", "job submitted", "job is nil", nil)
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, p.logger)

	tools := p.DetectTools(ctx)
	if len(tools) == 0 {
		logger.Info("no tool markers in environment; job environment unchanged")
		return nil
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.String())
	}
	logger.Info("ecosystem tools detected", logging.Strings("tools", names))

	resolved, err := p.resolver.Resolve(ctx, tools)
	if err != nil {
		return err
	}

	logger.Info("environment copy started", logging.Int("keys", len(resolved)))
	for _, key := range ecosystem.SortedKeys(resolved) {
		value, ok := p.lookup(key)
		if !ok {
			return services.Wrap(services.ErrConfiguration, "propagator", "copy environment",
				fmt.Sprintf("%s resolved for %s but not set in submitting environment", key, strings.Join(names, ", ")), nil)
		}
		logger.Info("setting job environment", logging.String("key", key), logging.String("value", value))
		job.SetEnvironmentKeyValue(key, value)
	}

	if err := p.saver.SaveJob(ctx, job); err != nil {
		return err
	}
	logger.Info("environment copy finished", logging.Int("keys", len(resolved)))
	return nil
}

func (p *Propagator) value(key string) (string, bool) {
	value, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
