package fao56

import (
	"math"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

// FAO-56 eq. 70 bounds.
const (
	KcbAdjustThreshold = 0.45
	RHminLow           = 20.0
	RHminHigh          = 80.0
	U2Low              = 1.0
	U2High             = 6.0
)

// PeriodClimate is the climate fed to eq. 70 for one sub-period.
// Samples is zero when the sub-period held no usable data.
type PeriodClimate struct {
	RHmin   float64 `json:"rhmin"`
	U2      float64 `json:"u2"`
	Samples int     `json:"samples"`
}

type KcbAdjustment struct {
	KcbMid float64       `json:"kcb_mid"`
	KcbEnd float64       `json:"kcb_end"`
	Mid    PeriodClimate `json:"mid"`
	Late   PeriodClimate `json:"late"`
}

// WindTo2m converts a wind speed measured at height h (m) to 2 m.
func WindTo2m(v, h float64) float64 {
	return v * 4.87 / math.Log(67.8*h-5.42)
}

// AdjustKcb corrects the mid and late season basal coefficients for climate.
// days must already be restricted to the season window. Sub-period bounds
// past the end of the series are clamped; a sub-period with no data leaves its
// coefficient unchanged.
func AdjustKcb(days []entities.DailyWeather, kcbMid, kcbEnd float64, st entities.StageLengths, windHeight, hmax float64) (KcbAdjustment, error) {
	const comp = "kcb"
	v := &simerr.ValidationError{Component: comp}
	if 67.8*windHeight-5.42 <= 1 {
		v.Add("wind_height", "too low for the log wind profile: %g m", windHeight)
	}
	if hmax <= 0 {
		v.Add("h_max", "must be positive, got %g", hmax)
	}
	if err := v.Err(); err != nil {
		return KcbAdjustment{}, err
	}

	midFrom := st.Ini + st.Dev
	lateFrom := midFrom + st.Mid
	out := KcbAdjustment{
		Mid:  periodClimate(window(days, midFrom, lateFrom), windHeight),
		Late: periodClimate(window(days, lateFrom, len(days)), windHeight),
	}
	out.KcbMid = adjustOne(kcbMid, out.Mid, hmax)
	out.KcbEnd = adjustOne(kcbEnd, out.Late, hmax)
	return out, nil
}

func window(days []entities.DailyWeather, from, to int) []entities.DailyWeather {
	from = min(max(from, 0), len(days))
	to = min(max(to, from), len(days))
	return days[from:to]
}

func periodClimate(days []entities.DailyWeather, windHeight float64) PeriodClimate {
	var rh, u float64
	var nrh, nu int
	for _, d := range days {
		if !math.IsNaN(d.RHmin) {
			rh += d.RHmin
			nrh++
		}
		if !math.IsNaN(d.Wind) {
			u += WindTo2m(d.Wind, windHeight)
			nu++
		}
	}
	if nrh == 0 || nu == 0 {
		return PeriodClimate{}
	}
	return PeriodClimate{
		RHmin:   clamp(rh/float64(nrh), RHminLow, RHminHigh),
		U2:      clamp(u/float64(nu), U2Low, U2High),
		Samples: min(nrh, nu),
	}
}

func adjustOne(kcb float64, c PeriodClimate, hmax float64) float64 {
	if kcb < KcbAdjustThreshold || c.Samples == 0 {
		return kcb
	}
	k := kcb + (0.04*(c.U2-2)-0.004*(c.RHmin-45))*math.Pow(hmax/3, 0.3)
	return math.Round(k*100) / 100
}
