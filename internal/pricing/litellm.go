package pricing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/janekbaraniewski/ccost/internal/core"
)

// liteLLMEntry mirrors the fields of the LiteLLM model price dataset that
// matter for billing. Everything else in a record is ignored.
type liteLLMEntry struct {
	InputCostPerToken      *float64 `json:"input_cost_per_token"`
	OutputCostPerToken     *float64 `json:"output_cost_per_token"`
	CacheCreationCost      *float64 `json:"cache_creation_input_token_cost"`
	CacheReadCost          *float64 `json:"cache_read_input_token_cost"`
	InputAbove200k         *float64 `json:"input_cost_per_token_above_200k_tokens"`
	OutputAbove200k        *float64 `json:"output_cost_per_token_above_200k_tokens"`
	CacheCreationAbove200k *float64 `json:"cache_creation_input_token_cost_above_200k_tokens"`
	CacheReadAbove200k     *float64 `json:"cache_read_input_token_cost_above_200k_tokens"`
}

var modelPrefixes = map[core.SourceKind][]string{
	core.SourceClaude: {"claude-"},
	core.SourceCodex:  {"gpt-", "o1", "o3", "o4", "codex-"},
}

// keeps reports whether a dataset key belongs to the source. Only bare ids
// are kept, so "vertex_ai/claude-..." and "azure/gpt-..." are dropped.
func keeps(kind core.SourceKind, key string) bool {
	if strings.Contains(key, "/") {
		return false
	}
	for _, prefix := range modelPrefixes[kind] {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// decodeLiteLLM parses a dataset and keeps the entries of the given sources
// that carry both input and output rates.
func decodeLiteLLM(r io.Reader, kinds []core.SourceKind) (Table, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode litellm pricing: %w", err)
	}

	table := make(Table)
	for key, msg := range raw {
		wanted := false
		for _, kind := range kinds {
			if keeps(kind, key) {
				wanted = true
				break
			}
		}
		if !wanted {
			continue
		}
		// The dataset carries a "sample_spec" record and the odd malformed
		// entry; those are skipped rather than failing the whole table.
		var entry liteLLMEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			continue
		}
		if entry.InputCostPerToken == nil || entry.OutputCostPerToken == nil {
			continue
		}
		table[key] = entry.toEntry()
	}
	return table, nil
}

func (e liteLLMEntry) toEntry() Entry {
	out := Entry{
		Input:               *e.InputCostPerToken,
		Output:              *e.OutputCostPerToken,
		InputAbove200k:      e.InputAbove200k,
		OutputAbove200k:     e.OutputAbove200k,
		CacheWriteAbove200k: e.CacheCreationAbove200k,
		CacheReadAbove200k:  e.CacheReadAbove200k,
	}
	if e.CacheCreationCost != nil {
		out.CacheWrite = *e.CacheCreationCost
	}
	if e.CacheReadCost != nil {
		out.CacheRead = *e.CacheReadCost
	}
	return out
}
