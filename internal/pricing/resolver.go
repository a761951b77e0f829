package pricing

import (
	"log"
	"sort"

	"github.com/janekbaraniewski/ccost/internal/core"
)

// Resolver prices events under one cost mode. Prepare must finish before
// Cost is called from multiple goroutines; after that the resolver is
// read-only.
type Resolver struct {
	table    Table
	mode     core.CostMode
	entries  map[string]Entry
	unpriced []string
}

func NewResolver(table Table, mode core.CostMode) *Resolver {
	if mode == "" {
		mode = core.CostModeAuto
	}
	return &Resolver{
		table:   table,
		mode:    mode,
		entries: make(map[string]Entry),
	}
}

func (r *Resolver) Mode() core.CostMode { return r.mode }

// NeedsRates reports whether Cost will consult the table for ev.
func (r *Resolver) NeedsRates(ev core.UsageEvent) bool {
	switch r.mode {
	case core.CostModeDisplay:
		return false
	case core.CostModeCalculate:
		return true
	default:
		return ev.ReportedCostUSD == nil
	}
}

// Prepare resolves each model once and returns the ones, newly seen in this
// call, that have no table entry. Those are priced at zero.
func (r *Resolver) Prepare(models []string) []string {
	var missing []string
	for _, model := range models {
		if _, done := r.entries[model]; done {
			continue
		}
		if model == core.UnknownModel {
			r.entries[model] = Entry{}
			log.Printf("[pricing] records without a model are costed at zero")
			continue
		}
		entry, ok := r.table.Lookup(model)
		r.entries[model] = entry
		if ok || model == core.SyntheticModel {
			continue
		}
		log.Printf("[pricing] no rates for model %q, costing it at zero", model)
		missing = append(missing, model)
	}
	sort.Strings(missing)
	r.unpriced = append(r.unpriced, missing...)
	return missing
}

// Unpriced lists every model Prepare could not match, in sorted order.
func (r *Resolver) Unpriced() []string {
	out := append([]string(nil), r.unpriced...)
	sort.Strings(out)
	return out
}

// Cost returns the USD cost of ev under the resolver's mode.
func (r *Resolver) Cost(ev core.UsageEvent) float64 {
	switch r.mode {
	case core.CostModeDisplay:
		if ev.ReportedCostUSD != nil {
			return *ev.ReportedCostUSD
		}
		return 0
	case core.CostModeCalculate:
		return r.calculate(ev)
	default:
		if ev.ReportedCostUSD != nil {
			return *ev.ReportedCostUSD
		}
		return r.calculate(ev)
	}
}

// Price attaches the cost to ev.
func (r *Resolver) Price(ev core.UsageEvent) core.CostedEvent {
	return core.CostedEvent{UsageEvent: ev, CostUSD: r.Cost(ev)}
}

func (r *Resolver) calculate(ev core.UsageEvent) float64 {
	entry, ok := r.entries[ev.Model]
	if !ok {
		entry, _ = r.table.Lookup(ev.Model)
	}
	t := ev.Tokens
	return entry.Cost(t.Input, t.Output, t.CacheWrite, t.CacheRead)
}
