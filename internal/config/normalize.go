package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	if err := c.normalizeEcosystem(); err != nil {
		return err
	}
	c.normalizePathMappings()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.ExecutableStrategy = strings.ToLower(strings.TrimSpace(c.Render.ExecutableStrategy))
	if c.Render.ExecutableStrategy == "" {
		c.Render.ExecutableStrategy = ExecutableStrategyConfigured
	}
	c.Render.ErrorPolicy = strings.ToLower(strings.TrimSpace(c.Render.ErrorPolicy))
	if c.Render.ErrorPolicy == "" {
		c.Render.ErrorPolicy = ErrorPolicyStrict
	}

	// Users write either "2.3" or "2_3" as keys; lookups always use the underscore form.
	executables := make(map[string]string, len(c.Render.Executables))
	for key, list := range c.Render.Executables {
		key = VersionKey(key)
		list = strings.TrimSpace(list)
		if key == "" || list == "" {
			continue
		}
		executables[key] = list
	}
	c.Render.Executables = executables

	c.Render.LocationVariable = strings.TrimSpace(c.Render.LocationVariable)
	if c.Render.LocationVariable == "" {
		c.Render.LocationVariable = defaultLocationVariable
	}
	c.Render.LocationRelativePath = strings.TrimSpace(c.Render.LocationRelativePath)
	if c.Render.LocationRelativePath == "" {
		c.Render.LocationRelativePath = defaultLocationRelativePath
	}
}

func (c *Config) normalizeEcosystem() error {
	if strings.TrimSpace(c.Ecosystem.DefinitionsDir) == "" {
		if value, ok := os.LookupEnv("ECO_ENV"); ok && strings.TrimSpace(value) != "" {
			c.Ecosystem.DefinitionsDir = strings.TrimSpace(value)
		} else {
			c.Ecosystem.DefinitionsDir = defaultEcosystemDir
		}
	}
	var err error
	if c.Ecosystem.DefinitionsDir, err = expandPath(c.Ecosystem.DefinitionsDir); err != nil {
		return fmt.Errorf("ecosystem.definitions_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePathMappings() {
	rules := c.PathMappings[:0]
	for _, rule := range c.PathMappings {
		rule.From = strings.TrimSpace(rule.From)
		rule.To = strings.TrimSpace(rule.To)
		if rule.From == "" {
			continue
		}
		rules = append(rules, rule)
	}
	c.PathMappings = rules
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
