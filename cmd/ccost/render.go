package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/samber/lo"
	"golang.org/x/term"

	"github.com/janekbaraniewski/ccost/internal/core"
	"github.com/janekbaraniewski/ccost/internal/report"
)

const (
	defaultTerminalWidth = 120
	compactBelowWidth    = 100
)

type totalsJSON struct {
	InputTokens         int64   `json:"inputTokens"`
	OutputTokens        int64   `json:"outputTokens"`
	CacheCreationTokens int64   `json:"cacheCreationTokens"`
	CacheReadTokens     int64   `json:"cacheReadTokens"`
	TotalTokens         int64   `json:"totalTokens"`
	TotalCost           float64 `json:"totalCost"`
}

type modelBreakdownJSON struct {
	ModelName           string  `json:"modelName"`
	InputTokens         int64   `json:"inputTokens"`
	OutputTokens        int64   `json:"outputTokens"`
	CacheCreationTokens int64   `json:"cacheCreationTokens"`
	CacheReadTokens     int64   `json:"cacheReadTokens"`
	Cost                float64 `json:"cost"`
}

type entryJSON struct {
	Date  string `json:"date,omitempty"`
	Month string `json:"month,omitempty"`
	totalsJSON
	ModelsUsed      []string             `json:"modelsUsed"`
	ModelBreakdowns []modelBreakdownJSON `json:"modelBreakdowns"`
}

func toTotalsJSON(t core.Totals) totalsJSON {
	return totalsJSON{
		InputTokens:         t.Input,
		OutputTokens:        t.Output,
		CacheCreationTokens: t.CacheWrite,
		CacheReadTokens:     t.CacheRead,
		TotalTokens:         t.TotalTokens(),
		TotalCost:           t.CostUSD,
	}
}

func toEntryJSON(granularity core.Granularity, b report.Bucket) entryJSON {
	e := entryJSON{
		totalsJSON: toTotalsJSON(b.Totals),
		ModelsUsed: lo.Ternary(b.ModelsUsed == nil, []string{}, b.ModelsUsed),
		ModelBreakdowns: lo.Map(b.ByModel, func(m report.Breakdown, _ int) modelBreakdownJSON {
			return modelBreakdownJSON{
				ModelName:           m.Name,
				InputTokens:         m.Totals.Input,
				OutputTokens:        m.Totals.Output,
				CacheCreationTokens: m.Totals.CacheWrite,
				CacheReadTokens:     m.Totals.CacheRead,
				Cost:                m.Totals.CostUSD,
			}
		}),
	}
	if granularity == core.GranularityMonthly {
		e.Month = b.Period
	} else {
		e.Date = b.Period
	}
	return e
}

// renderJSON writes the report as an indented document. An empty daily
// report is written as an empty array.
func renderJSON(w io.Writer, rep *report.Report) error {
	var doc any
	toEntries := func(buckets []report.Bucket) []entryJSON {
		return lo.Map(buckets, func(b report.Bucket, _ int) entryJSON { return toEntryJSON(rep.Granularity, b) })
	}

	switch {
	case rep.Granularity == core.GranularityMonthly:
		doc = map[string]any{
			"monthly": toEntries(rep.Buckets),
			"totals":  toTotalsJSON(rep.Totals),
		}
	case rep.Empty():
		doc = []entryJSON{}
	case rep.Instances:
		projects := make(map[string][]entryJSON)
		for _, name := range rep.Projects() {
			projects[name] = toEntries(rep.ProjectBuckets(name))
		}
		doc = map[string]any{
			"projects": projects,
			"totals":   toTotalsJSON(rep.Totals),
		}
	default:
		doc = map[string]any{
			"daily":  toEntries(rep.Buckets),
			"totals": toTotalsJSON(rep.Totals),
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type tableOptions struct {
	Title     string
	Compact   bool
	Width     int
	Breakdown bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	totalStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")).Padding(0, 1)
)

// renderTable writes the report as a bordered table. The compact layout
// drops the cache and total columns; it is used when forced or when the full
// table does not fit the terminal.
func renderTable(w io.Writer, rep *report.Report, opts tableOptions) error {
	width := opts.Width
	if width <= 0 {
		width = defaultTerminalWidth
	}
	compact := opts.Compact || width < compactBelowWidth

	out := buildTable(rep, opts.Breakdown, compact)
	if !compact && maxLineWidth(out) > width {
		compact = true
		out = buildTable(rep, opts.Breakdown, compact)
	}

	if _, err := fmt.Fprintln(w, titleStyle.Render(opts.Title)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, out); err != nil {
		return err
	}
	if compact {
		_, err := fmt.Fprint(w, "\nRunning in Compact Mode\nExpand terminal width to see cache metrics and total tokens\n")
		return err
	}
	return nil
}

func buildTable(rep *report.Report, breakdown, compact bool) string {
	first := "Date"
	if rep.Granularity == core.GranularityMonthly {
		first = "Month"
	}
	headers := []string{first, "Models", "Input", "Output", "Cache Create", "Cache Read", "Total Tokens", "Cost (USD)"}
	if compact {
		headers = []string{first, "Models", "Input", "Output", "Cost (USD)"}
	}

	var rows [][]string
	addBucket := func(b report.Bucket) {
		rows = append(rows, usageRow(periodLabel(rep.Granularity, b.Period), modelsCell(b.ModelsUsed), b.Totals, compact))
		if breakdown {
			for _, m := range b.ByModel {
				rows = append(rows, usageRow("  |- "+formatModelName(m.Name), "", m.Totals, compact))
			}
		}
	}

	if rep.Instances && len(rep.Projects()) > 0 {
		for i, name := range rep.Projects() {
			if i > 0 {
				rows = append(rows, make([]string, len(headers)))
			}
			header := make([]string, len(headers))
			header[0] = "Project: " + name
			rows = append(rows, header)
			for _, b := range rep.ProjectBuckets(name) {
				addBucket(b)
			}
		}
	} else {
		for _, b := range rep.Buckets {
			addBucket(b)
		}
	}
	totalRow := len(rows)
	rows = append(rows, usageRow("Total", "", rep.Totals, compact))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == totalRow:
				return totalStyle.Align(lo.Ternary(col >= 2, lipgloss.Right, lipgloss.Left))
			case col >= 2:
				return numberStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}

func usageRow(first, models string, t core.Totals, compact bool) []string {
	if compact {
		return []string{first, models, formatNumber(t.Input), formatNumber(t.Output), formatCurrency(t.CostUSD)}
	}
	return []string{
		first,
		models,
		formatNumber(t.Input),
		formatNumber(t.Output),
		formatNumber(t.CacheWrite),
		formatNumber(t.CacheRead),
		formatNumber(t.TotalTokens()),
		formatCurrency(t.CostUSD),
	}
}

// periodLabel splits a daily key over two lines to keep the column narrow.
func periodLabel(granularity core.Granularity, period string) string {
	if granularity == core.GranularityDaily && len(period) == len("2006-01-02") {
		return period[:4] + "\n" + period[5:]
	}
	return period
}

func modelsCell(models []string) string {
	names := lo.Uniq(lo.Map(models, func(m string, _ int) string { return formatModelName(m) }))
	sort.Strings(names)
	return strings.Join(lo.Map(names, func(n string, _ int) string { return "- " + n }), "\n")
}

var (
	piModelRe       = regexp.MustCompile(`^\[pi\] (.+)$`)
	routedClaudeRe  = regexp.MustCompile(`^anthropic/claude-(\w+)-([\d.]+)$`)
	datedClaudeRe   = regexp.MustCompile(`^claude-(\w+)-([\d-]+)-(\d{8})$`)
	undatedClaudeRe = regexp.MustCompile(`^claude-(\w+)-([\d-]+)$`)
)

// formatModelName shortens Claude ids, e.g. claude-sonnet-4-20250514 to sonnet-4.
func formatModelName(model string) string {
	if m := piModelRe.FindStringSubmatch(model); m != nil {
		return "[pi] " + formatModelName(m[1])
	}
	for _, re := range []*regexp.Regexp{routedClaudeRe, datedClaudeRe, undatedClaudeRe} {
		if m := re.FindStringSubmatch(model); m != nil {
			return m[1] + "-" + m[2]
		}
	}
	return model
}

// formatNumber groups digits in threes: 1234567 becomes 1,234,567.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}
	var sb strings.Builder
	head := len(s) % 3
	if head > 0 {
		sb.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sign + sb.String()
}

func formatCurrency(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

func maxLineWidth(s string) int {
	return lo.Max(lo.Map(strings.Split(s, "\n"), func(line string, _ int) int { return ansi.StringWidth(line) }))
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultTerminalWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultTerminalWidth
	}
	return width
}
