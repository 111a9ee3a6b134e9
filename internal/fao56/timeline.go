package fao56

import (
	"math"
	"sort"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
)

type EventType string

const (
	EventDepletion  EventType = "depletion"
	EventRain       EventType = "rain-adjusted"
	EventIrrigation EventType = "irrigation-adjusted"
)

func (e EventType) rank() int {
	switch e {
	case EventDepletion:
		return 0
	case EventRain:
		return 1
	default:
		return 2
	}
}

type TimelinePoint struct {
	Day   string    `json:"day"` // year-day key
	Value float64   `json:"value"`
	Type  EventType `json:"type"`
}

// BuildTimeline turns end-of-day depletion into stepped chart points.
// Each day starts from the previous day's Dr (zero on the first day), so the
// chart trails the engine by one day. Rain and irrigation each add a step down.
func BuildTimeline(rows []entities.DailyOutput) []TimelinePoint {
	pts := make([]TimelinePoint, 0, len(rows))
	prev := 0.0
	for _, r := range rows {
		day := DayKey(r.Date())
		dep := prev
		pts = append(pts, TimelinePoint{Day: day, Value: dep, Type: EventDepletion})
		if r.Rain > 0 {
			dep = math.Max(dep-r.Rain, 0)
			pts = append(pts, TimelinePoint{Day: day, Value: dep, Type: EventRain})
		}
		if r.Irrig > 0 {
			dep = math.Max(dep-r.Irrig+r.IrrLoss, 0)
			pts = append(pts, TimelinePoint{Day: day, Value: dep, Type: EventIrrigation})
		}
		prev = r.Dr
	}
	sort.SliceStable(pts, func(i, j int) bool {
		if pts[i].Day != pts[j].Day {
			return pts[i].Day < pts[j].Day
		}
		return pts[i].Type.rank() < pts[j].Type.rank()
	})
	return pts
}
