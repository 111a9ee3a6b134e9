package entities

import (
	"math"
	"time"
)

// DailyOutput is one row of the engine's daily table. Depths are mm.
type DailyOutput struct {
	Year    int     `json:"Year"`
	DOY     int     `json:"DOY"`
	ETref   float64 `json:"ETref"`
	Kcb     float64 `json:"Kcb"`
	Ke      float64 `json:"Ke"`
	Kc      float64 `json:"Kc"`
	ETc     float64 `json:"ETc"`
	Ks      float64 `json:"Ks"`
	Kcadj   float64 `json:"Kcadj"`
	ETcadj  float64 `json:"ETcadj"`
	E       float64 `json:"E"`
	T       float64 `json:"T"`
	Zr      float64 `json:"Zr"`
	P       float64 `json:"p"`
	TAW     float64 `json:"TAW"`
	RAW     float64 `json:"RAW"`
	Dr      float64 `json:"Dr"`
	FDr     float64 `json:"fDr"`
	DP      float64 `json:"DP"`
	Irrig   float64 `json:"Irrig"`
	IrrLoss float64 `json:"IrrLoss"`
	Rain    float64 `json:"Rain"`
	Runoff  float64 `json:"Runoff"`
}

func (d DailyOutput) Date() time.Time {
	return time.Date(d.Year, time.January, d.DOY, 0, 0, 0, 0, time.UTC)
}

// SeasonTotals is the cumulative summary of a run.
type SeasonTotals struct {
	ETref      float64 `json:"ETref"`
	ETc        float64 `json:"ETc"`
	ETcadj     float64 `json:"ETcadj"`
	E          float64 `json:"E"`
	T          float64 `json:"T"`
	Rain       float64 `json:"Rain"`
	Irrig      float64 `json:"Irrig"`
	IrrigCount int     `json:"Irrig_count"`
	IrrLoss    float64 `json:"IrrLoss"`
	Runoff     float64 `json:"Runoff"`
	DP         float64 `json:"DP"`
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

// Rounded returns the totals rounded to two decimals for presentation.
func (s SeasonTotals) Rounded() SeasonTotals {
	return SeasonTotals{
		ETref: round2(s.ETref), ETc: round2(s.ETc), ETcadj: round2(s.ETcadj),
		E: round2(s.E), T: round2(s.T), Rain: round2(s.Rain), Irrig: round2(s.Irrig),
		IrrigCount: s.IrrigCount, IrrLoss: round2(s.IrrLoss),
		Runoff: round2(s.Runoff), DP: round2(s.DP),
	}
}

// SummarizeDaily recomputes the season totals from the daily table.
func SummarizeDaily(rows []DailyOutput) SeasonTotals {
	var s SeasonTotals
	for _, r := range rows {
		s.ETref += r.ETref
		s.ETc += r.ETc
		s.ETcadj += r.ETcadj
		s.E += r.E
		s.T += r.T
		s.Rain += r.Rain
		s.Irrig += r.Irrig
		s.IrrLoss += r.IrrLoss
		s.Runoff += r.Runoff
		s.DP += r.DP
		if r.Irrig > 0 {
			s.IrrigCount++
		}
	}
	return s
}

// SimulationResult is produced once per run and not mutated afterwards.
type SimulationResult struct {
	RunID   string        `json:"run_id"`
	Crop    string        `json:"crop"`
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Stages  StageLengths  `json:"stages"`
	KcbMid  float64       `json:"kcb_mid"`
	KcbEnd  float64       `json:"kcb_end"`
	Plan    PlanKind      `json:"irrigation"`
	Daily   []DailyOutput `json:"daily"`
	Summary SeasonTotals  `json:"summary"`
}
