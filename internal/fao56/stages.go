package fao56

import (
	"strconv"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

// RescaleStages spreads the canonical stage lengths over [start,end] in
// proportion to their share of the nominal season. The first three stages
// are floored and the late stage takes the remainder, so the result always
// sums to the inclusive span.
func RescaleStages(s entities.StageLengths, start, end time.Time) (entities.StageLengths, error) {
	const comp = "stages"
	start, end = entities.Day(start), entities.Day(end)
	if end.Before(start) {
		return entities.StageLengths{}, &simerr.InvalidRangeError{Component: comp, Reason: "end before start"}
	}
	total := s.Total()
	if total <= 0 || s.Ini < 0 || s.Dev < 0 || s.Mid < 0 || s.End < 0 {
		return entities.StageLengths{}, &simerr.InvalidRangeError{Component: comp,
			Reason: "stage lengths must be non-negative with a positive total, got " + strconv.Itoa(total)}
	}
	span := SpanDays(start, end)
	// integer floor keeps repeated rescaling stable
	out := entities.StageLengths{
		Ini: s.Ini * span / total,
		Dev: s.Dev * span / total,
		Mid: s.Mid * span / total,
	}
	out.End = span - out.Ini - out.Dev - out.Mid
	return out, nil
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
