package fao56

import (
	"math"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

type GDDMethod string

const (
	// MethodCorn clamps both temperatures into [base, cutoff] before averaging.
	MethodCorn GDDMethod = "corn"
	// MethodOther averages raw temperatures and floors the result at zero.
	MethodOther GDDMethod = "other"
)

type ThermalParams struct {
	Start   time.Time
	End     time.Time // provisional season end
	TBase   float64
	TCutoff float64
	Target  float64 // cumulative GDD that closes the season
	Method  GDDMethod
}

// ThermalDay keeps the raw temperatures for inspection only; they may be NaN
// and are not serialized.
type ThermalDay struct {
	Date   time.Time `json:"date"`
	Tmax   float64   `json:"-"`
	Tmin   float64   `json:"-"`
	GDD    float64   `json:"gdd"`
	CumGDD float64   `json:"cum_gdd"`
}

type ThermalResult struct {
	Days []ThermalDay `json:"days"`
	End  time.Time    `json:"end"`
}

func clamp(x, lo, hi float64) float64 { return math.Max(math.Min(x, hi), lo) }

// DailyGDD returns the thermal units for one day. Days with a missing
// temperature contribute nothing.
func DailyGDD(m GDDMethod, tmax, tmin, tbase, tcutoff float64) float64 {
	if math.IsNaN(tmax) || math.IsNaN(tmin) {
		return 0
	}
	if m == MethodCorn {
		return (clamp(tmax, tbase, tcutoff)+clamp(tmin, tbase, tcutoff))/2 - tbase
	}
	return math.Max((tmax+tmin)/2-tbase, 0)
}

// AccumulateThermalTime sums growing degree days from p.Start and closes the
// season on the first day the sum reaches p.Target, or at p.End if that
// comes first. The target must be reached somewhere in the series.
func AccumulateThermalTime(days []entities.DailyWeather, p ThermalParams) (ThermalResult, error) {
	const comp = "thermal"
	if p.Method != MethodCorn && p.Method != MethodOther {
		return ThermalResult{}, simerr.Invalid(comp, "method", "unknown method %q (want corn or other)", p.Method)
	}
	if p.Method == MethodCorn && p.TCutoff < p.TBase {
		return ThermalResult{}, simerr.Invalid(comp, "t_cutoff", "cutoff %g below base %g", p.TCutoff, p.TBase)
	}
	start, end := entities.Day(p.Start), entities.Day(p.End)
	if end.Before(start) {
		return ThermalResult{}, &simerr.InvalidRangeError{Component: comp, Reason: "end before start"}
	}
	first := -1
	for i := range days {
		if days[i].Date.Equal(start) {
			first = i
			break
		}
	}
	if first < 0 {
		return ThermalResult{}, &simerr.InvalidRangeError{Component: comp,
			Reason: "start " + start.Format(entities.DateLayout) + " not in series"}
	}

	out := make([]ThermalDay, 0, len(days)-first)
	var cum float64
	reached := time.Time{}
	for _, d := range days[first:] {
		g := DailyGDD(p.Method, d.Tmax, d.Tmin, p.TBase, p.TCutoff)
		cum += g
		out = append(out, ThermalDay{Date: d.Date, Tmax: d.Tmax, Tmin: d.Tmin, GDD: g, CumGDD: cum})
		if cum >= p.Target && reached.IsZero() {
			reached = d.Date
		}
	}
	if reached.IsZero() {
		return ThermalResult{}, &simerr.InvalidRangeError{Component: comp,
			Reason: "cumulative GDD " + formatFloat(cum) + " below target " + formatFloat(p.Target),
			Err:    simerr.ErrTargetNotReached}
	}

	final := end
	if reached.Before(end) {
		final = reached
	}
	n := 0
	for n < len(out) && !out[n].Date.After(final) {
		n++
	}
	return ThermalResult{Days: out[:n], End: final}, nil
}
