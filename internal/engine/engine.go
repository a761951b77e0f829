// Package engine runs the locate, read, dedup, price, aggregate and report
// stages for one invocation.
package engine

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"slices"
	"sort"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/janekbaraniewski/ccost/internal/aggregate"
	"github.com/janekbaraniewski/ccost/internal/config"
	"github.com/janekbaraniewski/ccost/internal/core"
	"github.com/janekbaraniewski/ccost/internal/dedup"
	"github.com/janekbaraniewski/ccost/internal/locate"
	"github.com/janekbaraniewski/ccost/internal/normalize"
	"github.com/janekbaraniewski/ccost/internal/pricing"
	"github.com/janekbaraniewski/ccost/internal/report"
)

// chunkSize is the number of events each pricing worker folds. It is fixed
// rather than derived from the worker count so floating point sums come out
// identical whatever the parallelism.
const chunkSize = 2048

// Options are the parameters of one report run. String-typed fields are
// validated by Run before any file is opened.
type Options struct {
	Sources     config.Sources
	Granularity core.Granularity
	// Since and Until are inclusive YYYYMMDD bounds; empty means unbounded.
	Since    string
	Until    string
	Project  string
	Timezone string
	Mode     core.CostMode
	Order    core.SortOrder

	Breakdown bool
	Instances bool

	// Offline uses the embedded pricing snapshot. Otherwise the live dataset
	// is fetched, falling back to the snapshot only with FallbackOffline.
	Offline         bool
	FallbackOffline bool
	Fetcher         pricing.Fetcher
	// Pricing overrides the table source chosen from Offline.
	Pricing pricing.Source

	Workers int
}

type validated struct {
	agg   aggregate.Options
	mode  core.CostMode
	order core.SortOrder
}

func (o Options) validate() (validated, error) {
	var v validated

	granularity, err := core.ParseGranularity(string(lo.Ternary(o.Granularity == "", core.GranularityDaily, o.Granularity)))
	if err != nil {
		return v, err
	}
	since, err := core.ParseCompactDate("since", o.Since)
	if err != nil {
		return v, err
	}
	until, err := core.ParseCompactDate("until", o.Until)
	if err != nil {
		return v, err
	}
	loc, err := core.LoadLocation(o.Timezone)
	if err != nil {
		return v, err
	}
	v.mode, err = core.ParseCostMode(string(lo.Ternary(o.Mode == "", core.CostModeAuto, o.Mode)))
	if err != nil {
		return v, err
	}
	v.order, err = core.ParseSortOrder(string(lo.Ternary(o.Order == "", core.OrderAsc, o.Order)))
	if err != nil {
		return v, err
	}

	v.agg = aggregate.Options{
		Location:    loc,
		Since:       since,
		Until:       until,
		Project:     o.Project,
		Granularity: granularity,
		Breakdown:   o.Breakdown,
		Instances:   o.Instances,
	}
	return v, nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o Options) pricingSource() pricing.Source {
	if o.Pricing != nil {
		return o.Pricing
	}
	if o.Offline {
		return pricing.EmbeddedSource{}
	}
	return pricing.LiveSource{Fetcher: o.Fetcher, FallbackOffline: o.FallbackOffline}
}

type fileResult struct {
	ref    locate.FileRef
	events []core.UsageEvent
	stats  normalize.FileStats
	err    error
}

// Run produces a report. Only invalid options, a required pricing fetch that
// failed, or cancellation of ctx return an error; unreadable files and bad
// records are counted in the diagnostics instead.
func Run(ctx context.Context, opts Options) (*report.Report, core.Diagnostics, error) {
	var diag core.Diagnostics

	v, err := opts.validate()
	if err != nil {
		return nil, diag, err
	}

	start := time.Now()
	files := slices.Collect(locate.New(opts.Sources).Files())
	log.Printf("[engine] located %d log files", len(files))

	results, err := readFiles(ctx, files, opts.workers())
	if err != nil {
		return nil, diag, err
	}

	events := deduplicate(results, &diag)
	log.Printf("[engine] %d events after dedup (%d duplicates)", len(events), diag.Duplicates)

	resolver, err := prepareResolver(ctx, opts, v.mode, events, &diag)
	if err != nil {
		return nil, diag, err
	}

	total, err := fold(ctx, events, resolver, v.agg, opts.workers())
	if err != nil {
		return nil, diag, err
	}

	rep := report.Build(total, v.order)
	diag.Sort()
	log.Printf("[engine] built %s report with %d buckets in %s", rep.Granularity, len(rep.Buckets), time.Since(start).Round(time.Millisecond))
	return rep, diag, nil
}

func readFiles(ctx context.Context, files []locate.FileRef, workers int) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ref := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, stats, err := normalize.File(ref)
			results[i] = fileResult{ref: ref, events: events, stats: stats, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// deduplicate admits events oldest file first, so when the same exchange was
// logged in several files the copy in the earliest-starting file is kept.
func deduplicate(results []fileResult, diag *core.Diagnostics) []core.UsageEvent {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].stats.Earliest, results[j].stats.Earliest
		switch {
		case a.IsZero() != b.IsZero():
			return !a.IsZero()
		case !a.Equal(b):
			return a.Before(b)
		default:
			return results[i].ref.Path < results[j].ref.Path
		}
	})

	set := dedup.New()
	var events []core.UsageEvent
	for _, r := range results {
		if r.err != nil {
			log.Printf("[engine] skipping %s: %v", r.ref.Path, r.err)
			diag.SkipFile(r.ref.Path, r.err)
			continue
		}
		diag.FilesScanned++
		diag.ParseFailures += r.stats.ParseFailures
		diag.SkippedRecords += r.stats.Skipped
		events = append(events, set.Filter(r.events)...)
	}
	diag.Duplicates = set.Dropped()
	return events
}

func prepareResolver(ctx context.Context, opts Options, mode core.CostMode, events []core.UsageEvent, diag *core.Diagnostics) (*pricing.Resolver, error) {
	if mode == core.CostModeDisplay {
		diag.PricingSource = "none"
		return pricing.NewResolver(nil, mode), nil
	}

	loaded, err := opts.pricingSource().Load(ctx, opts.Sources.Enabled())
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}
	diag.PricingSource = loaded.Origin
	diag.Warnings = append(diag.Warnings, loaded.Warnings...)

	resolver := pricing.NewResolver(loaded.Table, mode)
	models := lo.Uniq(lo.FilterMap(events, func(ev core.UsageEvent, _ int) (string, bool) {
		return ev.Model, resolver.NeedsRates(ev)
	}))
	sort.Strings(models)
	for _, model := range resolver.Prepare(models) {
		diag.UnpricedModels = append(diag.UnpricedModels, model)
		diag.Warnf("no pricing for model %q, cost counted as zero", model)
	}
	return resolver, nil
}

// fold prices and aggregates fixed-size chunks in parallel, then merges the
// partials in chunk order.
func fold(ctx context.Context, events []core.UsageEvent, resolver *pricing.Resolver, opts aggregate.Options, workers int) (*aggregate.Partial, error) {
	chunks := lo.Chunk(events, chunkSize)
	partials := make([]*aggregate.Partial, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := aggregate.NewPartial(opts)
			for _, ev := range chunk {
				p.Add(resolver.Price(ev))
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := aggregate.NewPartial(opts)
	for _, p := range partials {
		total.Merge(p)
	}
	return total, nil
}
