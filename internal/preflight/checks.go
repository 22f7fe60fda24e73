package preflight

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"natronfarm/internal/config"
	"natronfarm/internal/deps"
	"natronfarm/internal/ecosystem"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := checkAccess(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckMappingTarget verifies that a path mapping target is present on this
// machine. Targets are usually network mounts, so only existence is checked.
func CheckMappingTarget(mapping config.PathMapping) Result {
	name := "Path mapping " + mapping.From
	info, err := os.Stat(mapping.To)
	switch {
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", mapping.To, err)}
	case !info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", mapping.To)}
	default:
		return Result{Name: name, Passed: true, Detail: mapping.To}
	}
}

// CheckRenderers reports renderer availability for the configured executable
// strategy. The configured strategy checks every version list; the
// environment strategy checks the location variable in the current shell.
func CheckRenderers(cfg *config.Config) []deps.Status {
	if cfg.Render.ExecutableStrategy == config.ExecutableStrategyEnvironment {
		location := strings.TrimSpace(os.Getenv(cfg.Render.LocationVariable))
		req := deps.Requirement{
			Name:        "NatronRenderer ($" + cfg.Render.LocationVariable + ")",
			Description: "Resolved per job from the propagated environment",
			Optional:    true,
		}
		if location != "" {
			req.Command = location + string(os.PathSeparator) + cfg.Render.LocationRelativePath
		}
		return deps.CheckBinaries([]deps.Requirement{req})
	}

	keys := make([]string, 0, len(cfg.Render.Executables))
	for key := range cfg.Render.Executables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]deps.Status, 0, len(keys))
	for _, key := range keys {
		results = append(results, deps.CheckExecutableList(deps.Requirement{
			Name:        "Natron " + strings.ReplaceAll(key, "_", "."),
			Command:     cfg.Render.Executables[key],
			Description: "render.executables." + key,
		}))
	}
	return results
}

// CheckEcosystem reports whether tool definitions are available for job submission.
func CheckEcosystem(cfg *config.Config) Result {
	const name = "Ecosystem definitions"
	resolver := ecosystem.NewFileResolver(cfg)
	tools, err := resolver.Available()
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if len(tools) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no tool definitions)", cfg.Ecosystem.DefinitionsDir)}
	}
	ids := make([]string, 0, len(tools))
	for _, tool := range tools {
		ids = append(ids, tool.String())
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(ids, ", ")}
}
