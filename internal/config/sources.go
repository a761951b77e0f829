package config

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/ccost/internal/core"
)

const (
	ClaudeConfigDirEnv = "CLAUDE_CONFIG_DIR"
	CodexHomeEnv       = "CODEX_HOME"
	xdgConfigHomeEnv   = "XDG_CONFIG_HOME"
)

// Getenv is injected so source resolution never depends on process state in tests.
type Getenv func(string) string

// SourceConfig is the ordered list of candidate roots for one source.
type SourceConfig struct {
	Kind       core.SourceKind
	Roots      []string
	Enabled    bool
	Overridden bool
}

// Sources is passed by value through the pipeline; the With* methods return copies.
type Sources struct {
	entries []SourceConfig
}

func NewSources(entries ...SourceConfig) Sources {
	out := make([]SourceConfig, 0, len(entries))
	for _, e := range entries {
		e.Roots = slices.Clone(e.Roots)
		out = append(out, e)
	}
	return Sources{entries: out}
}

func (s Sources) All() []SourceConfig {
	out := make([]SourceConfig, len(s.entries))
	for i, e := range s.entries {
		e.Roots = slices.Clone(e.Roots)
		out[i] = e
	}
	return out
}

func (s Sources) For(kind core.SourceKind) (SourceConfig, bool) {
	for _, e := range s.entries {
		if e.Kind == kind {
			e.Roots = slices.Clone(e.Roots)
			return e, true
		}
	}
	return SourceConfig{}, false
}

func (s Sources) Enabled() []core.SourceKind {
	return lo.FilterMap(s.entries, func(e SourceConfig, _ int) (core.SourceKind, bool) {
		return e.Kind, e.Enabled
	})
}

// WithEnabled keeps only the listed kinds enabled.
func (s Sources) WithEnabled(kinds []core.SourceKind) Sources {
	out := s.All()
	for i := range out {
		out[i].Enabled = slices.Contains(kinds, out[i].Kind)
	}
	return Sources{entries: out}
}

func (s Sources) WithDisabled(kinds []core.SourceKind) Sources {
	out := s.All()
	for i := range out {
		if slices.Contains(kinds, out[i].Kind) {
			out[i].Enabled = false
		}
	}
	return Sources{entries: out}
}

// SourcesFromEnv resolves the roots for every source. CLAUDE_CONFIG_DIR is a
// comma-separated list; CODEX_HOME is a single directory. Without overrides
// the platform defaults under home are used. Roots are not checked for
// existence here; only a syntactically invalid override is an error.
func SourcesFromEnv(getenv Getenv, home string) (Sources, error) {
	claude := SourceConfig{Kind: core.SourceClaude, Enabled: true}
	if raw := strings.TrimSpace(getenv(ClaudeConfigDirEnv)); raw != "" {
		roots, err := parseRootList(ClaudeConfigDirEnv, raw, home)
		if err != nil {
			return Sources{}, err
		}
		claude.Roots = roots
		claude.Overridden = true
	} else {
		claude.Roots = defaultClaudeRoots(getenv, home)
	}

	codex := SourceConfig{Kind: core.SourceCodex, Enabled: true}
	if raw := strings.TrimSpace(getenv(CodexHomeEnv)); raw != "" {
		root, err := parseRoot(CodexHomeEnv, raw, home)
		if err != nil {
			return Sources{}, err
		}
		codex.Roots = []string{root}
		codex.Overridden = true
	} else if home != "" {
		codex.Roots = []string{filepath.Join(home, ".codex")}
	}

	return NewSources(claude, codex), nil
}

func defaultClaudeRoots(getenv Getenv, home string) []string {
	var roots []string
	if xdg := strings.TrimSpace(getenv(xdgConfigHomeEnv)); xdg != "" {
		roots = append(roots, filepath.Join(ExpandHome(xdg, home), "claude"))
	}
	if home != "" {
		roots = append(roots,
			filepath.Join(home, ".config", "claude"),
			filepath.Join(home, ".claude"),
		)
	}
	return lo.Uniq(roots)
}

func parseRootList(setting, raw, home string) ([]string, error) {
	var roots []string
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		root, err := parseRoot(setting, part, home)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return lo.Uniq(roots), nil
}

func parseRoot(setting, raw, home string) (string, error) {
	value := strings.TrimSpace(raw)
	if strings.ContainsRune(value, 0) {
		return "", &core.ConfigError{Setting: setting, Value: value, Reason: "path contains a NUL byte"}
	}
	return filepath.Clean(ExpandHome(value, home)), nil
}

func ExpandHome(path, home string) string {
	path = strings.TrimSpace(path)
	if path == "" || home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
