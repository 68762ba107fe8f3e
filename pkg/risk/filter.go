package risk

import (
	"fmt"
	"strings"
)

// Filter selects which records the side list shows.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterHigh   Filter = "high"
	FilterMedium Filter = "medium"
	FilterLow    Filter = "low"
)

// ParseFilter converts a filter name. The empty string means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterHigh:
		return FilterHigh, nil
	case FilterMedium:
		return FilterMedium, nil
	case FilterLow:
		return FilterLow, nil
	default:
		return FilterAll, fmt.Errorf("unknown risk filter %q (want all, high, medium or low)", s)
	}
}

// Matches reports whether a record passes the filter.
func (f Filter) Matches(record Record) bool {
	if f == FilterAll || f == "" {
		return true
	}
	return string(record.Level) == string(f)
}

// FilterRecords returns the records passing the filter, in their original order.
func FilterRecords(records []Record, filter Filter) []Record {
	filtered := make([]Record, 0, len(records))
	for _, record := range records {
		if filter.Matches(record) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
