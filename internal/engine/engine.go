// Package engine describes the external daily water-balance engine: the
// parameter contract it accepts, the table it returns, and a gRPC client.
package engine

import (
	"context"
	"math"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/fao56"
	"github.com/LeonardoBeccarini/cropwater/internal/irrigation"
	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
)

// WeatherColumns is the fixed column order of the engine weather table.
var WeatherColumns = [12]string{"Date", "srad", "tmmx", "tmmn", "vpar", "tdew", "rmax", "rmin", "vs", "pr", "ET", "MorP"}

type Parameters struct {
	KcbIni float64 `json:"Kcbini"`
	KcbMid float64 `json:"Kcbmid"`
	KcbEnd float64 `json:"Kcbend"`
	Lini   int     `json:"Lini"`
	Ldev   int     `json:"Ldev"`
	Lmid   int     `json:"Lmid"`
	Lend   int     `json:"Lend"`
	HIni   float64 `json:"hini"`
	HMax   float64 `json:"hmax"`
	ZrIni  float64 `json:"Zrini"`
	ZrMax  float64 `json:"Zrmax"`
	PBase  float64 `json:"pbase"`
	CN2    float64 `json:"CN2"`
	Ze     float64 `json:"Ze"`
	REW    float64 `json:"REW"`
}

// Soil layers: depths in integer cm, moisture as volumetric fractions.
type Soil struct {
	Depths  []int     `json:"depths"`
	ThetaFC []float64 `json:"thetaFC"`
	ThetaWP []float64 `json:"thetaWP"`
	ThetaIN []float64 `json:"thetaIN"`
}

// WeatherTable rows follow WeatherColumns; missing numbers are nil.
type WeatherTable struct {
	Latitude   float64  `json:"lat"`
	Elevation  float64  `json:"z"`
	WindHeight float64  `json:"wndht"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
}

// Event is one explicit irrigation: year, day of year, depth (mm), wetted fraction.
type Event struct {
	Year  int     `json:"year"`
	DOY   int     `json:"doy"`
	Depth float64 `json:"depth"`
	Fw    float64 `json:"fw"`
}

// AutoSet is a trigger rule active between two day keys.
type AutoSet struct {
	Start  string   `json:"start"`
	End    string   `json:"end"`
	MAD    *float64 `json:"mad,omitempty"`
	ITFDR  *float64 `json:"itfdr,omitempty"`
	FPDay  *int     `json:"fpday,omitempty"`
	DSLI   *int     `json:"dsli,omitempty"`
	IETRD  *int     `json:"ietrd,omitempty"`
	ETType string   `json:"ettyp,omitempty"`
	IMax   *float64 `json:"imax,omitempty"`
	Fw     float64  `json:"fw"`
}

type Irrigation struct {
	Events []Event   `json:"events,omitempty"`
	Auto   []AutoSet `json:"autoirr,omitempty"`
}

// Input is everything one engine run needs.
type Input struct {
	Start      string       `json:"start"`
	End        string       `json:"end"`
	Params     Parameters   `json:"par"`
	Soil       Soil         `json:"sol"`
	Weather    WeatherTable `json:"wth"`
	Irrigation Irrigation   `json:"irr"`
	Runoff     bool         `json:"roff"`
	ConsP      bool         `json:"cons_p"`
}

// Output is returned unchanged to callers. Summary is nil when the engine
// did not send one.
type Output struct {
	Daily   []entities.DailyOutput
	Summary *entities.SeasonTotals
}

// Engine runs one season.
type Engine interface {
	Run(ctx context.Context, in Input) (Output, error)
}

func NewParameters(c entities.CropProfile, st entities.StageLengths, kcbMid, kcbEnd float64, s entities.SoilProfile) Parameters {
	s = s.WithDefaults()
	return Parameters{
		KcbIni: c.KcbIni, KcbMid: kcbMid, KcbEnd: kcbEnd,
		Lini: st.Ini, Ldev: st.Dev, Lmid: st.Mid, Lend: st.End,
		HIni: c.HIni, HMax: c.HMax, ZrIni: c.ZrIni, ZrMax: c.ZrMax,
		PBase: c.P, CN2: c.CN2, Ze: s.Ze, REW: s.REW,
	}
}

func NewSoil(s entities.SoilProfile) Soil {
	out := Soil{}
	for _, l := range s.Layers {
		out.Depths = append(out.Depths, l.BottomCm)
		out.ThetaFC = append(out.ThetaFC, l.ThetaFC)
		out.ThetaWP = append(out.ThetaWP, l.ThetaWP)
		out.ThetaIN = append(out.ThetaIN, l.ThetaIni)
	}
	return out
}

func num(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// NewWeatherTable reindexes the series by day key in the engine column order.
func NewWeatherTable(s entities.WeatherSeries) WeatherTable {
	t := WeatherTable{
		Latitude:   s.Latitude,
		Elevation:  s.Elevation,
		WindHeight: s.WindHeight,
		Columns:    WeatherColumns[:],
		Rows:       make([][]any, 0, len(s.Days)),
	}
	for _, d := range s.Days {
		var morp any
		if d.MorP != "" {
			morp = d.MorP
		}
		t.Rows = append(t.Rows, []any{
			fao56.DayKey(d.Date), num(d.Srad), num(d.Tmax), num(d.Tmin), num(d.Vapr), num(d.Tdew),
			num(d.RHmax), num(d.RHmin), num(d.Wind), num(d.Rain), num(d.ETref), morp,
		})
	}
	return t
}

func ptr[T any](v T) *T { return &v }

// NewIrrigation maps a plan onto the engine's event list or trigger rules.
// IrrigationPlan is sealed, so the three cases are exhaustive.
func NewIrrigation(p entities.IrrigationPlan) Irrigation {
	switch p := p.(type) {
	case entities.FixedEvents:
		out := Irrigation{Events: make([]Event, 0, len(p.Events))}
		for _, e := range p.Events {
			out.Events = append(out.Events, Event{Year: e.Date.Year(), DOY: e.Date.YearDay(), Depth: e.DepthMM, Fw: e.Fraction})
		}
		return out
	case entities.AutoRootDepletion:
		return Irrigation{Auto: []AutoSet{{
			Start: fao56.DayKey(p.Start), End: fao56.DayKey(p.End),
			MAD:   ptr(p.MAD), ITFDR: ptr(irrigation.EngineUpperFraction(p.Upper)), FPDay: ptr(0),
			Fw: p.Fraction,
		}}}
	case entities.AutoETReplacement:
		set := AutoSet{
			Start: fao56.DayKey(p.Start), End: fao56.DayKey(p.End),
			DSLI: ptr(p.LookbackDays), IETRD: ptr(p.LookbackDays), ETType: string(p.ETType), FPDay: ptr(0),
			Fw: p.Fraction,
		}
		if p.Upper != nil {
			set.IMax = ptr(*p.Upper)
		}
		return Irrigation{Auto: []AutoSet{set}}
	}
	// nil plan: rainfed season
	return Irrigation{}
}

// DateRange returns the engine start and end keys for a season.
func DateRange(start, end time.Time) (string, string) {
	return fao56.DayKey(start), fao56.DayKey(end)
}
