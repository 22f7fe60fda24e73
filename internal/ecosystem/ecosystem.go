// Package ecosystem resolves tool@version identifiers into the environment
// variables that tool installation needs.
package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"natronfarm/internal/config"
	"natronfarm/internal/services"
)

// ToolID names one tool at one version.
type ToolID struct {
	Name    string
	Version string
}

// String renders the identifier as name@version.
func (t ToolID) String() string {
	return t.Name + "@" + t.Version
}

// Resolver maps tool identifiers to environment variables.
type Resolver interface {
	Resolve(ctx context.Context, tools []ToolID) (map[string]string, error)
}

// FileResolver reads <dir>/<name>/<version>.env definition files.
type FileResolver struct {
	Dir string
}

// NewFileResolver returns a resolver rooted at ecosystem.definitions_dir.
func NewFileResolver(cfg *config.Config) *FileResolver {
	return &FileResolver{Dir: cfg.Ecosystem.DefinitionsDir}
}

// DefinitionPath returns the file that defines tool.
func (r *FileResolver) DefinitionPath(tool ToolID) string {
	return filepath.Join(r.Dir, tool.Name, tool.Version+".env")
}

// Resolve returns the union of the variables defined for every tool. Later
// tools override earlier ones. A missing definition is an error.
func (r *FileResolver) Resolve(ctx context.Context, tools []ToolID) (map[string]string, error) {
	if strings.TrimSpace(r.Dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ecosystem", "resolve", "definitions directory not configured", nil)
	}
	env := make(map[string]string)
	for _, tool := range tools {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := r.DefinitionPath(tool)
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, services.Wrap(services.ErrNotFound, "ecosystem", "resolve", fmt.Sprintf("no definition for %s (expected %s)", tool, path), nil)
			}
			return nil, services.Wrap(services.ErrConfiguration, "ecosystem", "resolve", fmt.Sprintf("read definition for %s", tool), err)
		}
		for key, value := range values {
			env[key] = value
		}
	}
	return env, nil
}

// Available lists the tool identifiers defined under the resolver directory.
func (r *FileResolver) Available() ([]ToolID, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}
	var tools []ToolID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(r.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read definitions for %s: %w", entry.Name(), err)
		}
		for _, file := range files {
			if file.IsDir() || filepath.Ext(file.Name()) != ".env" {
				continue
			}
			tools = append(tools, ToolID{Name: entry.Name(), Version: strings.TrimSuffix(file.Name(), ".env")})
		}
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].String() < tools[j].String() })
	return tools, nil
}

// SortedKeys returns env keys in lexical order.
func SortedKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
