package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/ccost/internal/config"
	"github.com/janekbaraniewski/ccost/internal/core"
	"github.com/janekbaraniewski/ccost/internal/engine"
	"github.com/janekbaraniewski/ccost/internal/pricing"
)

type reportFlags struct {
	since           string
	until           string
	json            bool
	mode            string
	order           string
	breakdown       bool
	offline         bool
	fallbackOffline bool
	timezone        string
	compact         bool
	sources         []string

	// daily only
	instances bool
	project   string
}

func newDailyCommand(cfg config.Config) *cobra.Command {
	return newReportCommand(cfg, core.GranularityDaily)
}

func newMonthlyCommand(cfg config.Config) *cobra.Command {
	return newReportCommand(cfg, core.GranularityMonthly)
}

func newReportCommand(cfg config.Config, granularity core.Granularity) *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   string(granularity),
		Short: fmt.Sprintf("Show %s token usage and cost", granularity),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, granularity, flags)
		},
	}

	enabled := lo.Filter(core.AllSources, func(k core.SourceKind, _ int) bool {
		return !lo.ContainsBy(cfg.DisabledSources, func(name string) bool {
			kind, err := core.ParseSourceKind(name)
			return err == nil && kind == k
		})
	})

	f := cmd.Flags()
	f.StringVarP(&flags.since, "since", "s", "", "filter from date (YYYYMMDD)")
	f.StringVarP(&flags.until, "until", "u", "", "filter until date (YYYYMMDD)")
	f.BoolVarP(&flags.json, "json", "j", false, "output in JSON format")
	f.StringVarP(&flags.mode, "mode", "m", cfg.Mode, "cost mode: auto, calculate or display")
	f.StringVarP(&flags.order, "order", "o", cfg.Order, "sort order: asc or desc")
	f.BoolVarP(&flags.breakdown, "breakdown", "b", false, "show per-model cost breakdown")
	f.BoolVarP(&flags.offline, "offline", "O", !cfg.Pricing.Live, "use the embedded pricing snapshot")
	f.BoolVar(&flags.fallbackOffline, "fallback-offline", cfg.Pricing.FallbackOffline, "use the embedded snapshot when the live pricing fetch fails")
	f.StringVarP(&flags.timezone, "timezone", "t", cfg.Timezone, "IANA timezone for date grouping (default local)")
	f.BoolVar(&flags.compact, "compact", false, "force compact table layout")
	f.StringSliceVar(&flags.sources, "sources", lo.Map(enabled, func(k core.SourceKind, _ int) string { return string(k) }), "log sources to read: claude, codex")
	if granularity == core.GranularityDaily {
		f.BoolVarP(&flags.instances, "instances", "i", false, "group by project")
		f.StringVarP(&flags.project, "project", "p", "", "filter to a specific project name")
	}
	return cmd
}

// engineOptions maps flags onto engine options. JSON output always carries
// model breakdowns.
func (f reportFlags) engineOptions(cfg config.Config, granularity core.Granularity) (engine.Options, error) {
	kinds := make([]core.SourceKind, 0, len(f.sources))
	for _, name := range f.sources {
		kind, err := core.ParseSourceKind(name)
		if err != nil {
			return engine.Options{}, err
		}
		kinds = append(kinds, kind)
	}

	home, _ := os.UserHomeDir()
	sources, err := config.SourcesFromEnv(os.Getenv, home)
	if err != nil {
		return engine.Options{}, err
	}

	return engine.Options{
		Sources:         sources.WithEnabled(lo.Uniq(kinds)),
		Granularity:     granularity,
		Since:           f.since,
		Until:           f.until,
		Project:         f.project,
		Timezone:        f.timezone,
		Mode:            core.CostMode(f.mode),
		Order:           core.SortOrder(f.order),
		Breakdown:       f.breakdown || f.json,
		Instances:       f.instances,
		Offline:         f.offline,
		FallbackOffline: f.fallbackOffline,
		Fetcher: pricing.Fetcher{
			URL:     cfg.Pricing.URL,
			Timeout: time.Duration(cfg.Pricing.FetchTimeoutSeconds) * time.Second,
		},
		Workers: cfg.Workers,
	}, nil
}

func runReport(ctx context.Context, stdout, stderr io.Writer, cfg config.Config, granularity core.Granularity, flags reportFlags) error {
	opts, err := flags.engineOptions(cfg, granularity)
	if err != nil {
		return err
	}

	rep, diag, err := engine.Run(ctx, opts)
	if err != nil {
		return err
	}
	log.Printf("[report] %s", diag.Summary())
	for _, skipped := range diag.SkippedFiles {
		log.Printf("[report] skipped %s: %s", skipped.Path, skipped.Reason)
	}
	for _, warning := range diag.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", warning)
	}

	if flags.json {
		return renderJSON(stdout, rep)
	}
	if rep.Empty() {
		fmt.Fprintln(stderr, "No usage data found.")
		return nil
	}
	return renderTable(stdout, rep, tableOptions{
		Title:     reportTitle(opts.Sources.Enabled(), granularity),
		Compact:   flags.compact,
		Width:     terminalWidth(),
		Breakdown: flags.breakdown,
	})
}

func reportTitle(kinds []core.SourceKind, granularity core.Granularity) string {
	labels := lo.Map(kinds, func(k core.SourceKind, _ int) string { return k.Label() })
	if len(labels) == 0 {
		labels = []string{"AI Assistant"}
	}
	period := "Daily"
	if granularity == core.GranularityMonthly {
		period = "Monthly"
	}
	return fmt.Sprintf("%s Token Usage Report - %s", strings.Join(labels, " + "), period)
}
