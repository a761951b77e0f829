// Package aggregate folds costed events into calendar buckets.
//
// A Partial is owned by one goroutine. Workers each fill their own Partial
// and the results are combined with Merge, which only adds, so the grouping
// of events across workers does not change which buckets exist or what they
// contain.
package aggregate

import (
	"time"

	"github.com/janekbaraniewski/ccost/internal/core"
)

const (
	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "2006-01"
)

// Options control bucketing and filtering.
type Options struct {
	// Location converts event instants to calendar dates. Nil means time.Local.
	Location *time.Location
	// Since and Until are inclusive YYYYMMDD bounds; empty means unbounded.
	Since string
	Until string
	// Project keeps only events whose project label matches exactly.
	Project     string
	Granularity core.Granularity
	Breakdown   bool
	// Instances splits daily buckets by project.
	Instances bool
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// Group is the per-period accumulator shared by buckets and their
// per-project splits.
type Group struct {
	Totals  core.Totals
	Models  map[string]struct{}
	ByModel map[string]core.Totals
}

func newGroup(breakdown bool) *Group {
	g := &Group{Models: make(map[string]struct{})}
	if breakdown {
		g.ByModel = make(map[string]core.Totals)
	}
	return g
}

func (g *Group) add(ev core.CostedEvent) {
	t := core.TotalsOf(ev)
	g.Totals = g.Totals.Add(t)
	if ev.Model != core.SyntheticModel {
		g.Models[ev.Model] = struct{}{}
	}
	if g.ByModel != nil {
		g.ByModel[ev.Model] = g.ByModel[ev.Model].Add(t)
	}
}

func (g *Group) merge(o *Group) {
	g.Totals = g.Totals.Add(o.Totals)
	for m := range o.Models {
		g.Models[m] = struct{}{}
	}
	if o.ByModel != nil {
		if g.ByModel == nil {
			g.ByModel = make(map[string]core.Totals, len(o.ByModel))
		}
		for m, t := range o.ByModel {
			g.ByModel[m] = g.ByModel[m].Add(t)
		}
	}
}

// Bucket accumulates one period.
type Bucket struct {
	Period string
	Group
	ByProject map[string]*Group
}

// Partial is a set of buckets built from some subset of the events.
type Partial struct {
	opts     Options
	buckets  map[string]*Bucket
	excluded int
}

func NewPartial(opts Options) *Partial {
	return &Partial{opts: opts, buckets: make(map[string]*Bucket)}
}

func (p *Partial) Options() Options { return p.opts }

// PeriodOf returns the bucket key for ts and the YYYYMMDD date used for
// range filtering, both in the configured location.
func (p *Partial) PeriodOf(ts time.Time) (period, date string) {
	local := ts.In(p.opts.location())
	date = local.Format(core.CompactDateLayout)
	if p.opts.Granularity == core.GranularityMonthly {
		return local.Format(monthKeyLayout), date
	}
	return local.Format(dayKeyLayout), date
}

// Add folds ev into its bucket. It reports false when the event falls
// outside the date range or does not match the project filter.
func (p *Partial) Add(ev core.CostedEvent) bool {
	period, date := p.PeriodOf(ev.Timestamp)
	if p.opts.Since != "" && date < p.opts.Since {
		p.excluded++
		return false
	}
	if p.opts.Until != "" && date > p.opts.Until {
		p.excluded++
		return false
	}
	if p.opts.Project != "" && ev.Project != p.opts.Project {
		p.excluded++
		return false
	}

	b := p.buckets[period]
	if b == nil {
		b = &Bucket{Period: period, Group: *newGroup(p.opts.Breakdown)}
		if p.splitsProjects() {
			b.ByProject = make(map[string]*Group)
		}
		p.buckets[period] = b
	}
	b.add(ev)
	if b.ByProject != nil {
		g := b.ByProject[ev.Project]
		if g == nil {
			g = newGroup(p.opts.Breakdown)
			b.ByProject[ev.Project] = g
		}
		g.add(ev)
	}
	return true
}

func (p *Partial) splitsProjects() bool {
	return p.opts.Instances && p.opts.Granularity != core.GranularityMonthly
}

// Merge adds o's buckets into p. o must have been built with the same options.
func (p *Partial) Merge(o *Partial) {
	p.excluded += o.excluded
	for period, ob := range o.buckets {
		b := p.buckets[period]
		if b == nil {
			b = &Bucket{Period: period, Group: *newGroup(p.opts.Breakdown)}
			p.buckets[period] = b
		}
		if ob.ByProject != nil && b.ByProject == nil {
			b.ByProject = make(map[string]*Group, len(ob.ByProject))
		}
		b.merge(&ob.Group)
		for name, og := range ob.ByProject {
			g := b.ByProject[name]
			if g == nil {
				g = newGroup(p.opts.Breakdown)
				b.ByProject[name] = g
			}
			g.merge(og)
		}
	}
}

// Buckets returns the accumulated buckets keyed by period. Callers must not
// modify them.
func (p *Partial) Buckets() map[string]*Bucket { return p.buckets }

// Excluded counts events dropped by the date or project filter.
func (p *Partial) Excluded() int { return p.excluded }
