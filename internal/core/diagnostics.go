package core

import (
	"fmt"
	"sort"
	"strings"
)

// SkippedFile records a file dropped from the run and why.
type SkippedFile struct {
	Path   string
	Reason string
}

// Diagnostics accumulates the recoverable conditions absorbed during a run.
// Each worker owns a private value; the engine merges them at the end.
type Diagnostics struct {
	FilesScanned   int
	ParseFailures  int
	SkippedRecords int
	Duplicates     int
	SkippedFiles   []SkippedFile
	UnpricedModels []string
	PricingSource  string
	Warnings       []string
}

func (d *Diagnostics) Merge(o Diagnostics) {
	d.FilesScanned += o.FilesScanned
	d.ParseFailures += o.ParseFailures
	d.SkippedRecords += o.SkippedRecords
	d.Duplicates += o.Duplicates
	d.SkippedFiles = append(d.SkippedFiles, o.SkippedFiles...)
	d.UnpricedModels = append(d.UnpricedModels, o.UnpricedModels...)
	d.Warnings = append(d.Warnings, o.Warnings...)
	if d.PricingSource == "" {
		d.PricingSource = o.PricingSource
	}
}

func (d *Diagnostics) SkipFile(path string, err error) {
	d.SkippedFiles = append(d.SkippedFiles, SkippedFile{Path: path, Reason: err.Error()})
}

func (d *Diagnostics) Warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Sort puts list fields in a stable order so repeated runs compare equal.
func (d *Diagnostics) Sort() {
	sort.Slice(d.SkippedFiles, func(i, j int) bool { return d.SkippedFiles[i].Path < d.SkippedFiles[j].Path })
	sort.Strings(d.UnpricedModels)
}

func (d Diagnostics) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "files=%d parse_failures=%d skipped_records=%d duplicates=%d skipped_files=%d",
		d.FilesScanned, d.ParseFailures, d.SkippedRecords, d.Duplicates, len(d.SkippedFiles))
	if d.PricingSource != "" {
		fmt.Fprintf(&sb, " pricing=%s", d.PricingSource)
	}
	if len(d.UnpricedModels) > 0 {
		fmt.Fprintf(&sb, " unpriced=%s", strings.Join(d.UnpricedModels, ","))
	}
	return sb.String()
}
