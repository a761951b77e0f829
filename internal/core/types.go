package core

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies which assistant tool produced a log file.
type SourceKind string

const (
	SourceClaude SourceKind = "claude"
	SourceCodex  SourceKind = "codex"
)

// AllSources lists the supported source kinds in their canonical order.
var AllSources = []SourceKind{SourceClaude, SourceCodex}

func (k SourceKind) Label() string {
	switch k {
	case SourceClaude:
		return "Claude Code"
	case SourceCodex:
		return "Codex"
	default:
		return string(k)
	}
}

func ParseSourceKind(value string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "claude", "claude_code", "claude-code":
		return SourceClaude, nil
	case "codex":
		return SourceCodex, nil
	default:
		return "", &InputError{Field: "source", Value: value, Reason: "expected claude or codex"}
	}
}

// SyntheticModel is the placeholder model Claude Code writes for locally
// generated messages. It is never billed and never listed as a used model.
const SyntheticModel = "<synthetic>"

// UnknownModel stands in for records that name no model. It is costed at zero.
const UnknownModel = "unknown"

// Tokens holds the four billed token categories. Counts are never negative.
type Tokens struct {
	Input      int64 `json:"input_tokens"`
	Output     int64 `json:"output_tokens"`
	CacheWrite int64 `json:"cache_write_tokens"`
	CacheRead  int64 `json:"cache_read_tokens"`
}

func (t Tokens) Total() int64 {
	return t.Input + t.Output + t.CacheWrite + t.CacheRead
}

func (t Tokens) Add(o Tokens) Tokens {
	return Tokens{
		Input:      t.Input + o.Input,
		Output:     t.Output + o.Output,
		CacheWrite: t.CacheWrite + o.CacheWrite,
		CacheRead:  t.CacheRead + o.CacheRead,
	}
}

// Clamp zeroes any negative category.
func (t Tokens) Clamp() Tokens {
	return Tokens{
		Input:      max(t.Input, 0),
		Output:     max(t.Output, 0),
		CacheWrite: max(t.CacheWrite, 0),
		CacheRead:  max(t.CacheRead, 0),
	}
}

// UsageEvent is one billable exchange, normalized from either source schema.
type UsageEvent struct {
	Timestamp       time.Time
	Source          SourceKind
	Model           string
	Tokens          Tokens
	ReportedCostUSD *float64
	// DedupKey identifies the logical exchange within Source. Empty keys are
	// never treated as duplicates.
	DedupKey string
	Project  string
	Instance string
}

func (e UsageEvent) String() string {
	return fmt.Sprintf("%s %s %s key=%q tokens=%d", e.Source, e.Timestamp.Format(time.RFC3339), e.Model, e.DedupKey, e.Tokens.Total())
}

// CostedEvent carries the cost resolved by the pricing stage. Downstream
// stages only ever read CostUSD.
type CostedEvent struct {
	UsageEvent
	CostUSD float64
}

// Totals is the additive unit every bucket, breakdown and report total uses.
type Totals struct {
	Tokens
	CostUSD float64 `json:"cost_usd"`
}

func (t Totals) Add(o Totals) Totals {
	return Totals{Tokens: t.Tokens.Add(o.Tokens), CostUSD: t.CostUSD + o.CostUSD}
}

func (t Totals) TotalTokens() int64 { return t.Tokens.Total() }

func TotalsOf(ev CostedEvent) Totals {
	return Totals{Tokens: ev.Tokens, CostUSD: ev.CostUSD}
}

func Float64Ptr(v float64) *float64 {
	vv := v
	return &vv
}
