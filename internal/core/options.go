package core

import (
	"strings"
	"time"
)

type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
)

func ParseGranularity(value string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily", "day":
		return GranularityDaily, nil
	case "monthly", "month":
		return GranularityMonthly, nil
	default:
		return "", &InputError{Field: "granularity", Value: value, Reason: "expected daily or monthly"}
	}
}

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

func ParseSortOrder(value string) (SortOrder, error) {
	switch strings.TrimSpace(value) {
	case "asc":
		return OrderAsc, nil
	case "desc":
		return OrderDesc, nil
	default:
		return "", &InputError{Field: "order", Value: value, Reason: "expected asc or desc"}
	}
}

// CostMode chooses between log-reported and token-rate computed costs.
type CostMode string

const (
	CostModeAuto      CostMode = "auto"
	CostModeCalculate CostMode = "calculate"
	CostModeDisplay   CostMode = "display"
)

func ParseCostMode(value string) (CostMode, error) {
	switch strings.TrimSpace(value) {
	case "auto":
		return CostModeAuto, nil
	case "calculate":
		return CostModeCalculate, nil
	case "display":
		return CostModeDisplay, nil
	default:
		return "", &InputError{Field: "mode", Value: value, Reason: "expected auto, calculate or display"}
	}
}

// CompactDateLayout is the YYYYMMDD form accepted for --since and --until.
const CompactDateLayout = "20060102"

// ParseCompactDate validates a YYYYMMDD bound. An empty value means unbounded.
func ParseCompactDate(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if len(value) != len(CompactDateLayout) {
		return "", &InputError{Field: field, Value: value, Reason: "expected YYYYMMDD"}
	}
	if _, err := time.Parse(CompactDateLayout, value); err != nil {
		return "", &InputError{Field: field, Value: value, Reason: "expected YYYYMMDD"}
	}
	return value, nil
}

// LoadLocation resolves an IANA zone name. Empty means the local zone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &InputError{Field: "timezone", Value: name, Reason: "unknown time zone", Err: err}
	}
	return loc, nil
}
