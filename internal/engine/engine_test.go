package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/janekbaraniewski/ccost/internal/config"
	"github.com/janekbaraniewski/ccost/internal/core"
	"github.com/janekbaraniewski/ccost/internal/pricing"
)

var testRates = pricing.StaticSource{Table: pricing.Table{
	"claude-test": {Input: 0.003 / 1000, Output: 0.015 / 1000},
	"gpt-5":       {Input: 1.25e-06, Output: 1e-05, CacheRead: 1.25e-07},
}}

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func claudeLine(ts, msgID, reqID, model string, in, out int64) string {
	return `{"type":"assistant","timestamp":"` + ts + `","requestId":"` + reqID + `","message":{"id":"` + msgID + `","model":"` + model + `","usage":{"input_tokens":` + itoa(in) + `,"output_tokens":` + itoa(out) + `}}}`
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func claudeSources(roots ...string) config.Sources {
	return config.NewSources(
		config.SourceConfig{Kind: core.SourceClaude, Roots: roots, Enabled: true},
		config.SourceConfig{Kind: core.SourceCodex, Enabled: false},
	)
}

func TestRun_DuplicateAcrossRootsCountedOnce(t *testing.T) {
	rootA, rootB := t.TempDir(), t.TempDir()
	line := claudeLine("2025-01-10T10:00:00Z", "msg_1", "req_1", "claude-test", 100, 50)
	writeFile(t, filepath.Join(rootA, "projects", "app", "s1.jsonl"), line)
	writeFile(t, filepath.Join(rootB, "projects", "app", "s2.jsonl"), line)

	rep, diag, err := Run(context.Background(), Options{
		Sources:  claudeSources(rootA, rootB),
		Mode:     core.CostModeCalculate,
		Timezone: "UTC",
		Pricing:  testRates,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(rep.Buckets))
	}
	if math.Abs(rep.Totals.CostUSD-0.00105) > 1e-12 {
		t.Fatalf("cost = %v, want 0.00105", rep.Totals.CostUSD)
	}
	if rep.Totals.Input != 100 || rep.Totals.Output != 50 {
		t.Fatalf("tokens = %+v, want one event's worth", rep.Totals.Tokens)
	}
	if diag.Duplicates != 1 || diag.FilesScanned != 2 {
		t.Fatalf("diag = %s", diag.Summary())
	}
}

func TestRun_DisplayModeWithoutReportedCost(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "app", "s.jsonl"),
		claudeLine("2025-01-10T10:00:00Z", "msg_1", "req_1", "claude-test", 100, 50))

	rep, diag, err := Run(context.Background(), Options{
		Sources:  claudeSources(root),
		Mode:     core.CostModeDisplay,
		Timezone: "UTC",
		Pricing:  errSource{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Totals.CostUSD != 0 {
		t.Fatalf("cost = %v, want 0", rep.Totals.CostUSD)
	}
	if rep.Totals.Input != 100 || rep.Totals.Output != 50 {
		t.Fatalf("tokens = %+v", rep.Totals.Tokens)
	}
	if diag.PricingSource != "none" {
		t.Fatalf("pricing source = %q, want none", diag.PricingSource)
	}
}

func TestRun_UnmatchedProjectIsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "app", "s.jsonl"),
		claudeLine("2025-01-10T10:00:00Z", "msg_1", "req_1", "claude-test", 100, 50))

	rep, _, err := Run(context.Background(), Options{
		Sources:  claudeSources(root),
		Project:  "does-not-exist",
		Timezone: "UTC",
		Pricing:  testRates,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Empty() {
		t.Fatalf("buckets = %d, want 0", len(rep.Buckets))
	}
}

func TestRun_TimezoneAndInclusiveRange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "app", "s.jsonl"),
		claudeLine("2025-01-31T23:30:00Z", "m1", "r1", "claude-test", 1, 1),
		claudeLine("2025-02-02T12:00:00Z", "m2", "r2", "claude-test", 2, 2),
		claudeLine("2025-02-03T12:00:00Z", "m3", "r3", "claude-test", 4, 4),
	)

	rep, _, err := Run(context.Background(), Options{
		Sources:  claudeSources(root),
		Timezone: "Etc/GMT-1",
		Since:    "20250201",
		Until:    "20250202",
		Pricing:  testRates,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Buckets) != 2 {
		t.Fatalf("buckets = %+v, want 2", rep.Buckets)
	}
	if rep.Buckets[0].Period != "2025-02-01" || rep.Buckets[1].Period != "2025-02-02" {
		t.Fatalf("periods = %s, %s", rep.Buckets[0].Period, rep.Buckets[1].Period)
	}
	if rep.Totals.Input != 3 {
		t.Fatalf("input = %d, want 3", rep.Totals.Input)
	}
}

func TestRun_Idempotent(t *testing.T) {
	root := t.TempDir()
	var lines []string
	for i := 0; i < 5000; i++ {
		day := "2025-03-" + []string{"01", "02", "03"}[i%3]
		lines = append(lines, claudeLine(day+"T10:00:00Z", "m"+itoa(int64(i)), "r", []string{"claude-test", "other"}[i%2], int64(i%97), int64(i%13)))
	}
	writeFile(t, filepath.Join(root, "projects", "a", "s.jsonl"), lines[:2500]...)
	writeFile(t, filepath.Join(root, "projects", "b", "s.jsonl"), lines[2500:]...)

	opts := Options{
		Sources:   claudeSources(root),
		Timezone:  "UTC",
		Breakdown: true,
		Instances: true,
		Pricing:   testRates,
	}
	var outputs []string
	for _, workers := range []int{1, 8} {
		opts.Workers = workers
		rep, _, err := Run(context.Background(), opts)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		data, err := json.Marshal(rep)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		outputs = append(outputs, string(data))
	}
	if outputs[0] != outputs[1] {
		t.Fatal("reports differ between runs")
	}
}

func TestRun_BreakdownSumsToBucket(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "app", "s.jsonl"),
		claudeLine("2025-01-10T10:00:00Z", "m1", "r1", "claude-test", 100, 50),
		claudeLine("2025-01-10T11:00:00Z", "m2", "r2", "gpt-5", 300, 70),
		claudeLine("2025-01-10T12:00:00Z", "m3", "r3", "unpriced-model", 10, 10),
	)

	rep, diag, err := Run(context.Background(), Options{
		Sources:   claudeSources(root),
		Timezone:  "UTC",
		Breakdown: true,
		Pricing:   testRates,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b := rep.Buckets[0]
	var sum core.Totals
	for _, m := range b.ByModel {
		sum = sum.Add(m.Totals)
	}
	if sum.Tokens != b.Totals.Tokens || math.Abs(sum.CostUSD-b.Totals.CostUSD) > 1e-9 {
		t.Fatalf("breakdown sum = %+v, bucket = %+v", sum, b.Totals)
	}
	if len(diag.UnpricedModels) != 1 || diag.UnpricedModels[0] != "unpriced-model" {
		t.Fatalf("unpriced = %v", diag.UnpricedModels)
	}
}

func TestRun_CodexSource(t *testing.T) {
	codexRoot := t.TempDir()
	writeFile(t, filepath.Join(codexRoot, "sessions", "2025", "09", "01", "rollout-1.jsonl"),
		`{"timestamp":"2025-09-01T10:00:00Z","type":"session_meta","payload":{"id":"s1"}}`,
		`{"timestamp":"2025-09-01T10:00:01Z","type":"turn_context","payload":{"model":"gpt-5-codex"}}`,
		`{"timestamp":"2025-09-01T10:00:02Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":1000,"cached_input_tokens":200,"output_tokens":100,"total_tokens":1100}}}}`,
	)
	sources := config.NewSources(
		config.SourceConfig{Kind: core.SourceClaude, Roots: []string{t.TempDir()}, Enabled: false},
		config.SourceConfig{Kind: core.SourceCodex, Roots: []string{codexRoot}, Enabled: true},
	)

	rep, _, err := Run(context.Background(), Options{Sources: sources, Timezone: "UTC", Offline: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Totals.Input != 800 || rep.Totals.CacheRead != 200 || rep.Totals.Output != 100 {
		t.Fatalf("tokens = %+v", rep.Totals.Tokens)
	}
	want := 800*1.25e-06 + 200*1.25e-07 + 100*1e-05
	if math.Abs(rep.Totals.CostUSD-want) > 1e-12 {
		t.Fatalf("cost = %v, want %v", rep.Totals.CostUSD, want)
	}
}

func TestRun_RejectsBadInputBeforeWork(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"since", Options{Since: "2025-01-01"}},
		{"until", Options{Until: "20251399"}},
		{"timezone", Options{Timezone: "Mars/Olympus"}},
		{"mode", Options{Mode: "guess"}},
		{"order", Options{Order: "sideways"}},
		{"granularity", Options{Granularity: "weekly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Pricing = errSource{}
			_, _, err := Run(context.Background(), tt.opts)
			var inputErr *core.InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("err = %v, want *core.InputError", err)
			}
		})
	}
}

func TestRun_LivePricingFailureIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "app", "s.jsonl"),
		claudeLine("2025-01-10T10:00:00Z", "msg_1", "req_1", "claude-test", 100, 50))

	opts := Options{
		Sources:  claudeSources(root),
		Timezone: "UTC",
		Fetcher:  pricing.Fetcher{URL: ts.URL},
	}
	if _, _, err := Run(context.Background(), opts); !errors.Is(err, core.ErrPricingUnavailable) {
		t.Fatalf("err = %v, want ErrPricingUnavailable", err)
	}

	opts.FallbackOffline = true
	_, diag, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run with fallback: %v", err)
	}
	if len(diag.Warnings) == 0 {
		t.Fatal("fallback produced no warning")
	}
}

func TestRun_MissingRootsAndBadLines(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "app", "s.jsonl"),
		"{not json",
		`{"type":"user","timestamp":"2025-01-10T09:00:00Z"}`,
		claudeLine("2025-01-10T10:00:00Z", "msg_1", "req_1", "claude-test", 100, 50),
	)

	rep, diag, err := Run(context.Background(), Options{
		Sources:  claudeSources(filepath.Join(root, "missing"), root),
		Timezone: "UTC",
		Pricing:  testRates,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(rep.Buckets))
	}
	if diag.ParseFailures != 1 || diag.SkippedRecords != 1 {
		t.Fatalf("diag = %s", diag.Summary())
	}
}

func TestRun_OversizedLineDoesNotDropFile(t *testing.T) {
	root := t.TempDir()
	huge := `{"type":"user","timestamp":"2025-01-10T10:30:00Z","message":{"content":"` + strings.Repeat("a", 9<<20) + `"}}`
	writeFile(t, filepath.Join(root, "projects", "app", "s.jsonl"),
		claudeLine("2025-01-10T10:00:00Z", "msg_1", "req_1", "claude-test", 100, 50),
		huge,
		claudeLine("2025-01-10T11:00:00Z", "msg_2", "req_2", "claude-test", 100, 50),
	)

	rep, diag, err := Run(context.Background(), Options{
		Sources:  claudeSources(root),
		Mode:     core.CostModeCalculate,
		Timezone: "UTC",
		Pricing:  testRates,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(diag.SkippedFiles) != 0 {
		t.Fatalf("skipped files = %+v, want none", diag.SkippedFiles)
	}
	if rep.Totals.Input != 200 || rep.Totals.Output != 100 {
		t.Fatalf("tokens = %+v, want both usage lines", rep.Totals.Tokens)
	}
	if diag.ParseFailures != 1 {
		t.Fatalf("diag = %s", diag.Summary())
	}
}

func TestRun_MissingModelIsZeroCostWithoutWarning(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "app", "s.jsonl"),
		`{"type":"assistant","timestamp":"2025-01-10T10:00:00Z","requestId":"r1","message":{"id":"m1","usage":{"input_tokens":10,"output_tokens":5}}}`,
	)

	rep, diag, err := Run(context.Background(), Options{
		Sources:  claudeSources(root),
		Mode:     core.CostModeCalculate,
		Timezone: "UTC",
		Pricing:  testRates,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Totals.Input != 10 || rep.Totals.CostUSD != 0 {
		t.Fatalf("totals = %+v, want 10 input tokens at zero cost", rep.Totals)
	}
	if len(diag.UnpricedModels) != 0 || len(diag.Warnings) != 0 {
		t.Fatalf("unpriced = %v, warnings = %v", diag.UnpricedModels, diag.Warnings)
	}
}

type errSource struct{}

func (errSource) Load(context.Context, []core.SourceKind) (pricing.Loaded, error) {
	return pricing.Loaded{}, errors.New("pricing should not be loaded")
}
