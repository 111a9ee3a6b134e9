// Package fao56 holds the crop-phenology and coefficient adjustments that sit
// around the daily water-balance engine, plus the depletion chart timeline.
package fao56

import (
	"fmt"
	"time"
)

// DayKeyLayout is the engine's year-day index format, e.g. "2024-122".
const DayKeyLayout = "2006-002"

func DayKey(t time.Time) string { return t.Format(DayKeyLayout) }

func ParseDayKey(s string) (time.Time, error) {
	t, err := time.Parse(DayKeyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", s, err)
	}
	return t, nil
}

// SpanDays counts the days in [start,end], both ends inclusive.
func SpanDays(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}
