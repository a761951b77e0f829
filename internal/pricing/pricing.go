// Package pricing resolves per-token rates and turns token counts into cost.
package pricing

import (
	"maps"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// TieredThreshold is the per-category token count above which the
// "above 200k" rates apply, when a model has them.
const TieredThreshold = 200_000

// Entry holds per-token USD rates. Above200k rates are optional.
type Entry struct {
	Input      float64 `json:"input_cost_per_token"`
	Output     float64 `json:"output_cost_per_token"`
	CacheWrite float64 `json:"cache_creation_input_token_cost"`
	CacheRead  float64 `json:"cache_read_input_token_cost"`

	InputAbove200k      *float64 `json:"input_cost_per_token_above_200k_tokens,omitempty"`
	OutputAbove200k     *float64 `json:"output_cost_per_token_above_200k_tokens,omitempty"`
	CacheWriteAbove200k *float64 `json:"cache_creation_input_token_cost_above_200k_tokens,omitempty"`
	CacheReadAbove200k  *float64 `json:"cache_read_input_token_cost_above_200k_tokens,omitempty"`
}

// IsZero reports whether the entry prices nothing.
func (e Entry) IsZero() bool {
	return e.Input == 0 && e.Output == 0 && e.CacheWrite == 0 && e.CacheRead == 0 &&
		e.InputAbove200k == nil && e.OutputAbove200k == nil &&
		e.CacheWriteAbove200k == nil && e.CacheReadAbove200k == nil
}

// Cost prices the four categories independently and sums them.
func (e Entry) Cost(input, output, cacheWrite, cacheRead int64) float64 {
	return tieredCost(input, e.Input, e.InputAbove200k) +
		tieredCost(output, e.Output, e.OutputAbove200k) +
		tieredCost(cacheWrite, e.CacheWrite, e.CacheWriteAbove200k) +
		tieredCost(cacheRead, e.CacheRead, e.CacheReadAbove200k)
}

func tieredCost(tokens int64, base float64, above *float64) float64 {
	if tokens <= 0 {
		return 0
	}
	if above == nil || tokens <= TieredThreshold {
		return float64(tokens) * base
	}
	return float64(TieredThreshold)*base + float64(tokens-TieredThreshold)*(*above)
}

// Table maps model ids to rates.
type Table map[string]Entry

var modelAliases = map[string]string{
	"gpt-5-codex": "gpt-5",
}

var providerPrefixes = []string{
	"anthropic/",
	"claude-3-5-",
	"claude-3-",
	"claude-",
	"openai/",
	"azure/",
	"openrouter/openai/",
}

// Lookup finds the entry for a model id. Resolution order: the id itself,
// its alias, each with known provider prefixes, then the longest table key
// contained in the id, then the shortest key that contains the id.
func (t Table) Lookup(model string) (Entry, bool) {
	model = strings.TrimSpace(model)
	if model == "" || len(t) == 0 {
		return Entry{}, false
	}

	names := []string{model}
	if alias, ok := modelAliases[model]; ok {
		names = append(names, alias)
	}
	for _, name := range names {
		if e, ok := t[name]; ok {
			return e, true
		}
		for _, prefix := range providerPrefixes {
			if e, ok := t[prefix+name]; ok {
				return e, true
			}
		}
	}

	lower := strings.ToLower(model)
	keys := t.Keys()

	best := ""
	for _, key := range keys {
		if strings.Contains(lower, strings.ToLower(key)) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return t[best], true
	}
	for _, key := range keys {
		if strings.Contains(strings.ToLower(key), lower) && (best == "" || len(key) < len(best)) {
			best = key
		}
	}
	if best != "" {
		return t[best], true
	}
	return Entry{}, false
}

// Keys returns the model ids in sorted order.
func (t Table) Keys() []string {
	keys := lo.Keys(t)
	sort.Strings(keys)
	return keys
}

// Merge copies other's entries into t, overwriting on conflict.
func (t Table) Merge(other Table) {
	maps.Copy(t, other)
}
