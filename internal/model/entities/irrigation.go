package entities

import (
	"encoding/json"
	"time"
)

type PlanKind string

const (
	KindFixedEvents       PlanKind = "fixed_events"
	KindAutoRootDepletion PlanKind = "auto_root_depletion"
	KindAutoETReplacement PlanKind = "auto_et_replacement"
)

// DefaultApplicationFraction is the fraction of the surface wetted by
// furrow irrigation.
const DefaultApplicationFraction = 0.6

// IrrigationPlan is one of FixedEvents, AutoRootDepletion or AutoETReplacement.
type IrrigationPlan interface {
	Kind() PlanKind
	sealed()
}

type IrrigationEvent struct {
	Date     time.Time `json:"date"`
	DepthMM  float64   `json:"depth_mm"`
	Fraction float64   `json:"fraction"`
}

// FixedEvents is an explicit event list. An empty list is a rainfed season.
type FixedEvents struct {
	Events []IrrigationEvent `json:"events"`
}

// AutoRootDepletion irrigates when root-zone depletion exceeds MAD.
// Upper is the efficiency/return bound in percent.
type AutoRootDepletion struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	MAD      float64   `json:"depletion_threshold"`
	Upper    float64   `json:"depletion_upper"`
	Fraction float64   `json:"fraction"`
}

type ETType string

const (
	ETCrop     ETType = "ETc"
	ETAdjusted ETType = "ETcadj"
)

// AutoETReplacement replaces the ET of the last LookbackDays days.
// Upper is nil when the bound was omitted or not numeric.
type AutoETReplacement struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	LookbackDays int       `json:"et_days"`
	ETType       ETType    `json:"et_type"`
	Upper        *float64  `json:"et_upper"`
	Fraction     float64   `json:"fraction"`
}

func (FixedEvents) Kind() PlanKind       { return KindFixedEvents }
func (AutoRootDepletion) Kind() PlanKind { return KindAutoRootDepletion }
func (AutoETReplacement) Kind() PlanKind { return KindAutoETReplacement }

func (FixedEvents) sealed()       {}
func (AutoRootDepletion) sealed() {}
func (AutoETReplacement) sealed() {}

// MarshalPlan encodes a plan with its kind tag.
func MarshalPlan(p IrrigationPlan) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Kind PlanKind        `json:"kind"`
		Plan json.RawMessage `json:"plan"`
	}{p.Kind(), body})
}
