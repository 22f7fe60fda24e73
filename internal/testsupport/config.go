package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"natronfarm/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Ecosystem.DefinitionsDir = filepath.Join(base, "ecosystem")
	cfgVal.Render.Executables = map[string]string{}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithErrorPolicy sets render.error_policy.
func WithErrorPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.ErrorPolicy = policy
	}
}

// WithPathMapping toggles render.enable_path_mapping.
func WithPathMapping(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.EnablePathMapping = enabled
	}
}

// WithStubRenderer writes an executable shell script under the base dir and
// registers it as the executable list for version.
func WithStubRenderer(version, script string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "NatronRenderer")
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write stub renderer: %v", err)
		}
		b.cfg.Render.Executables[config.VersionKey(version)] = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
