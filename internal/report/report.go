// Package report turns aggregated buckets into the ordered, immutable
// structure renderers consume.
package report

import (
	"sort"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/ccost/internal/aggregate"
	"github.com/janekbaraniewski/ccost/internal/core"
)

// Breakdown is one named row under a bucket: a model or a project.
type Breakdown struct {
	Name       string
	Totals     core.Totals
	ModelsUsed []string
	Models     []Breakdown
}

// Bucket is one reported period.
type Bucket struct {
	Period     string
	Totals     core.Totals
	ModelsUsed []string
	// ByModel is set when a model breakdown was requested, ordered by cost
	// descending then name.
	ByModel []Breakdown
	// ByProject is set for daily reports split by project, ordered by name.
	ByProject []Breakdown
}

// Report is the finished result of a run.
type Report struct {
	Granularity core.Granularity
	Order       core.SortOrder
	Breakdown   bool
	Instances   bool
	Buckets     []Bucket
	Totals      core.Totals
}

func (r *Report) Empty() bool { return r == nil || len(r.Buckets) == 0 }

// Projects lists every project that appears in any bucket, sorted.
func (r *Report) Projects() []string {
	var names []string
	for _, b := range r.Buckets {
		for _, p := range b.ByProject {
			names = append(names, p.Name)
		}
	}
	names = lo.Uniq(names)
	sort.Strings(names)
	return names
}

// ProjectBuckets returns the buckets as seen by one project, in report order.
func (r *Report) ProjectBuckets(project string) []Bucket {
	return lo.FilterMap(r.Buckets, func(b Bucket, _ int) (Bucket, bool) {
		p, ok := lo.Find(b.ByProject, func(p Breakdown) bool { return p.Name == project })
		if !ok {
			return Bucket{}, false
		}
		return Bucket{
			Period:     b.Period,
			Totals:     p.Totals,
			ModelsUsed: p.ModelsUsed,
			ByModel:    p.Models,
		}, true
	})
}

// Build orders the buckets of p and sums the grand total over them.
func Build(p *aggregate.Partial, order core.SortOrder) *Report {
	opts := p.Options()
	granularity := opts.Granularity
	if granularity == "" {
		granularity = core.GranularityDaily
	}
	if order == "" {
		order = core.OrderAsc
	}

	periods := lo.Keys(p.Buckets())
	sort.Strings(periods)
	if order == core.OrderDesc {
		sort.Sort(sort.Reverse(sort.StringSlice(periods)))
	}

	r := &Report{
		Granularity: granularity,
		Order:       order,
		Breakdown:   opts.Breakdown,
		Instances:   opts.Instances && granularity == core.GranularityDaily,
		Buckets:     make([]Bucket, 0, len(periods)),
	}
	// Grand totals are summed in ascending period order whatever the display
	// order, so asc and desc reports agree to the last bit.
	ascending := append([]string(nil), periods...)
	sort.Strings(ascending)
	for _, period := range ascending {
		r.Totals = r.Totals.Add(p.Buckets()[period].Totals)
	}

	for _, period := range periods {
		b := p.Buckets()[period]
		out := Bucket{
			Period:     period,
			Totals:     b.Totals,
			ModelsUsed: modelsUsed(&b.Group),
			ByModel:    modelBreakdowns(&b.Group),
		}
		if b.ByProject != nil {
			names := lo.Keys(b.ByProject)
			sort.Strings(names)
			out.ByProject = lo.Map(names, func(name string, _ int) Breakdown {
				g := b.ByProject[name]
				return Breakdown{
					Name:       name,
					Totals:     g.Totals,
					ModelsUsed: modelsUsed(g),
					Models:     modelBreakdowns(g),
				}
			})
		}
		r.Buckets = append(r.Buckets, out)
	}
	return r
}

func modelsUsed(g *aggregate.Group) []string {
	models := lo.Keys(g.Models)
	sort.Strings(models)
	return models
}

func modelBreakdowns(g *aggregate.Group) []Breakdown {
	if g.ByModel == nil {
		return nil
	}
	rows := make([]Breakdown, 0, len(g.ByModel))
	for name, t := range g.ByModel {
		rows = append(rows, Breakdown{Name: name, Totals: t})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Totals.CostUSD != rows[j].Totals.CostUSD {
			return rows[i].Totals.CostUSD > rows[j].Totals.CostUSD
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}
