package config

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/janekbaraniewski/ccost/internal/core"
)

func envMap(values map[string]string) Getenv {
	return func(key string) string { return values[key] }
}

func TestSourcesFromEnv_Defaults(t *testing.T) {
	home := "/home/tester"
	sources, err := SourcesFromEnv(envMap(nil), home)
	if err != nil {
		t.Fatalf("SourcesFromEnv: %v", err)
	}

	claude, ok := sources.For(core.SourceClaude)
	if !ok {
		t.Fatal("claude source missing")
	}
	want := []string{filepath.Join(home, ".config", "claude"), filepath.Join(home, ".claude")}
	if !slices.Equal(claude.Roots, want) {
		t.Errorf("claude roots = %v, want %v", claude.Roots, want)
	}
	if claude.Overridden {
		t.Error("claude should not be marked overridden")
	}

	codex, _ := sources.For(core.SourceCodex)
	if !slices.Equal(codex.Roots, []string{filepath.Join(home, ".codex")}) {
		t.Errorf("codex roots = %v", codex.Roots)
	}
	if got := sources.Enabled(); !slices.Equal(got, []core.SourceKind{core.SourceClaude, core.SourceCodex}) {
		t.Errorf("enabled = %v", got)
	}
}

func TestSourcesFromEnv_ClaudeListOverride(t *testing.T) {
	home := "/home/tester"
	sources, err := SourcesFromEnv(envMap(map[string]string{
		ClaudeConfigDirEnv: " /data/a , ,~/b,/data/a ",
		CodexHomeEnv:       "~/codex-home",
	}), home)
	if err != nil {
		t.Fatalf("SourcesFromEnv: %v", err)
	}

	claude, _ := sources.For(core.SourceClaude)
	want := []string{"/data/a", filepath.Join(home, "b")}
	if !slices.Equal(claude.Roots, want) {
		t.Errorf("claude roots = %v, want %v", claude.Roots, want)
	}
	if !claude.Overridden {
		t.Error("claude should be marked overridden")
	}

	codex, _ := sources.For(core.SourceCodex)
	if !slices.Equal(codex.Roots, []string{filepath.Join(home, "codex-home")}) {
		t.Errorf("codex roots = %v", codex.Roots)
	}
}

func TestSourcesFromEnv_InvalidOverride(t *testing.T) {
	_, err := SourcesFromEnv(envMap(map[string]string{
		ClaudeConfigDirEnv: "/ok,/bad\x00path",
	}), "/home/tester")

	var cfgErr *core.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if cfgErr.Setting != ClaudeConfigDirEnv {
		t.Errorf("setting = %q", cfgErr.Setting)
	}
}

func TestSources_WithEnabledReturnsCopy(t *testing.T) {
	sources, err := SourcesFromEnv(envMap(nil), "/home/tester")
	if err != nil {
		t.Fatal(err)
	}

	onlyCodex := sources.WithEnabled([]core.SourceKind{core.SourceCodex})
	if got := onlyCodex.Enabled(); !slices.Equal(got, []core.SourceKind{core.SourceCodex}) {
		t.Errorf("enabled = %v, want [codex]", got)
	}
	if got := sources.Enabled(); len(got) != 2 {
		t.Errorf("original mutated: enabled = %v", got)
	}

	roots := sources.All()[0].Roots
	roots[0] = "/mutated"
	if c, _ := sources.For(core.SourceClaude); c.Roots[0] == "/mutated" {
		t.Error("All() leaked internal slice")
	}
}
