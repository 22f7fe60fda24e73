package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validatePathMappings(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.ExecutableStrategy {
	case ExecutableStrategyConfigured:
		if len(c.Render.Executables) == 0 {
			return errors.New("render.executables must list at least one version when render.executable_strategy is \"configured\"")
		}
	case ExecutableStrategyEnvironment:
		if c.Render.LocationVariable == "" {
			return errors.New("render.location_variable must be set when render.executable_strategy is \"environment\"")
		}
	default:
		return fmt.Errorf("render.executable_strategy: unsupported value %q (use %q or %q)",
			c.Render.ExecutableStrategy, ExecutableStrategyConfigured, ExecutableStrategyEnvironment)
	}

	switch c.Render.ErrorPolicy {
	case ErrorPolicyStrict, ErrorPolicyLenient:
	default:
		return fmt.Errorf("render.error_policy: unsupported value %q (use %q or %q)",
			c.Render.ErrorPolicy, ErrorPolicyStrict, ErrorPolicyLenient)
	}

	for _, code := range c.Render.ToleratedExitCodes {
		if code == 0 {
			return errors.New("render.tolerated_exit_codes must not contain 0")
		}
	}
	return nil
}

func (c *Config) validatePathMappings() error {
	for i, rule := range c.PathMappings {
		if strings.TrimSpace(rule.To) == "" {
			return fmt.Errorf("path_mapping[%d].to must be set for %q", i, rule.From)
		}
	}
	return nil
}
