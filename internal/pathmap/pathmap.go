package pathmap

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"natronfarm/internal/config"
)

// Rule rewrites paths starting with From to start with To.
type Rule struct {
	From            string
	To              string
	CaseInsensitive bool
}

// Mapper applies an ordered list of rules.
type Mapper struct {
	rules []Rule
	// pattern alternates every rule in order, one capture group per rule.
	// Leftmost-first matching makes the earliest rule win at each position.
	pattern *regexp.Regexp
}

// New builds a mapper from explicit rules. Rules with an empty From are ignored.
func New(rules []Rule) *Mapper {
	m := &Mapper{}
	var alternatives []string
	for _, rule := range rules {
		if rule.From == "" {
			continue
		}
		expr := regexp.QuoteMeta(rule.From)
		if rule.CaseInsensitive {
			expr = "(?i:" + expr + ")"
		}
		m.rules = append(m.rules, rule)
		alternatives = append(alternatives, "("+expr+")")
	}
	if len(alternatives) > 0 {
		m.pattern = regexp.MustCompile(strings.Join(alternatives, "|"))
	}
	return m
}

// FromConfig builds a mapper from the [[path_mapping]] section.
func FromConfig(cfg *config.Config) *Mapper {
	if cfg == nil {
		return New(nil)
	}
	rules := make([]Rule, 0, len(cfg.PathMappings))
	for _, mapping := range cfg.PathMappings {
		rules = append(rules, Rule{From: mapping.From, To: mapping.To, CaseInsensitive: mapping.CaseInsensitive})
	}
	return New(rules)
}

// MapPath rewrites path using the first rule whose From is a prefix of it.
// Paths that match no rule are returned unchanged.
func (m *Mapper) MapPath(path string) string {
	if m == nil {
		return path
	}
	for _, rule := range m.rules {
		if hasPrefix(path, rule.From, rule.CaseInsensitive) {
			return rule.To + path[len(rule.From):]
		}
	}
	return path
}

// MapFile copies src to dst, rewriting every rule occurrence in the content,
// and creates dst with mode. The content is rewritten in a single pass, so a
// replacement is never mapped again by a later rule. When no rule matches,
// dst is byte-identical to src.
func (m *Mapper) MapFile(src, dst string, mode os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	data = m.rewrite(data)
	if err := os.WriteFile(dst, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	// WriteFile only applies mode on create and is filtered by umask.
	if err := os.Chmod(dst, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	return nil
}

func (m *Mapper) rewrite(data []byte) []byte {
	if m == nil || m.pattern == nil {
		return data
	}
	matches := m.pattern.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return data
	}
	out := make([]byte, 0, len(data))
	last := 0
	for _, loc := range matches {
		out = append(out, data[last:loc[0]]...)
		for i, rule := range m.rules {
			if loc[2*(i+1)] >= 0 {
				out = append(out, rule.To...)
				break
			}
		}
		last = loc[1]
	}
	return append(out, data[last:]...)
}

// Normalize converts separators in path to the convention of goos.
func Normalize(path, goos string) string {
	if goos == "windows" {
		return strings.ReplaceAll(path, "/", `\`)
	}
	return strings.ReplaceAll(path, `\`, "/")
}

func hasPrefix(path, prefix string, caseInsensitive bool) bool {
	if len(path) < len(prefix) {
		return false
	}
	if caseInsensitive {
		return strings.EqualFold(path[:len(prefix)], prefix)
	}
	return strings.HasPrefix(path, prefix)
}
