package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	TempDir string `toml:"temp_dir"`
	LogDir  string `toml:"log_dir"`
}

// Render contains configuration for the renderer task driver.
type Render struct {
	// ExecutableStrategy selects how the renderer executable is located:
	// "configured" searches Executables, "environment" reads the job
	// environment variable named by LocationVariable.
	ExecutableStrategy string `toml:"executable_strategy"`
	// ErrorPolicy is "strict" (fail on the first ERROR: line) or "lenient"
	// (ignore error lines and decide from the exit code).
	ErrorPolicy string `toml:"error_policy"`
	// Executables maps a version key ("2_3", "2_0") to a semicolon separated
	// list of candidate executables.
	Executables          map[string]string `toml:"executables"`
	LocationVariable     string            `toml:"location_variable"`
	LocationRelativePath string            `toml:"location_relative_path"`
	EnablePathMapping    bool              `toml:"enable_path_mapping"`
	ToleratedExitCodes   []int             `toml:"tolerated_exit_codes"`
}

// Ecosystem contains configuration for tool environment resolution.
type Ecosystem struct {
	DefinitionsDir string `toml:"definitions_dir"`
}

// PathMapping rewrites path prefixes between submission and render hosts.
type PathMapping struct {
	From            string `toml:"from"`
	To              string `toml:"to"`
	CaseInsensitive bool   `toml:"case_insensitive"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for natronfarm.
//
// Configuration sections by subsystem:
//   - Paths: job database, render temp slots and logs
//   - Render: executable lookup, error policy and exit code tolerance
//   - Ecosystem: tool definition files used at submission
//   - PathMappings: ordered prefix rewrites applied to project files
//   - Logging: log format and level
type Config struct {
	Paths        Paths         `toml:"paths"`
	Render       Render        `toml:"render"`
	Ecosystem    Ecosystem     `toml:"ecosystem"`
	PathMappings []PathMapping `toml:"path_mapping"`
	Logging      Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("natronfarm.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.TempDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobsDBPath returns the location of the job record database.
func (c *Config) JobsDBPath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// StrictErrors reports whether renderer error lines fail the task immediately.
func (c *Config) StrictErrors() bool {
	return c.Render.ErrorPolicy == ErrorPolicyStrict
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// VersionKey converts a dotted renderer version into the key used by
// render.executables ("2.3" -> "2_3").
func VersionKey(version string) string {
	return strings.ReplaceAll(strings.TrimSpace(version), ".", "_")
}
