package entities

import (
	"fmt"
	"math"

	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

const (
	DefaultZe  = 0.10 // m
	DefaultREW = 8.0  // mm
)

// SoilLayer moisture values are volumetric fractions (cm3/cm3).
type SoilLayer struct {
	BottomCm int     `json:"bottom_depth"`
	ThetaFC  float64 `json:"field_capacity"`
	ThetaWP  float64 `json:"wilting_point"`
	ThetaIni float64 `json:"initial_moisture"`
}

type SoilProfile struct {
	Layers []SoilLayer `json:"layers"`
	Ze     float64     `json:"tew_depth"` // evaporative layer depth, m
	REW    float64     `json:"rew"`       // readily evaporable water, mm
}

// WithDefaults fills Ze and REW when they were not supplied.
func (s SoilProfile) WithDefaults() SoilProfile {
	if s.Ze <= 0 {
		s.Ze = DefaultZe
	}
	if s.REW <= 0 {
		s.REW = DefaultREW
	}
	return s
}

// ValidateLayers checks the crop-independent invariants: bottom depths
// strictly increase and every layer has 0 <= WP < FC <= 1.
func (s SoilProfile) ValidateLayers() error {
	v := &simerr.ValidationError{Component: "soil"}
	if len(s.Layers) == 0 {
		v.Add("layers", "at least one layer is required")
		return v
	}
	prev := 0
	for i, l := range s.Layers {
		f := fmt.Sprintf("layers[%d]", i)
		if l.BottomCm <= prev {
			v.Add(f+".bottom_depth", "must be strictly increasing (%d after %d)", l.BottomCm, prev)
		}
		prev = l.BottomCm
		if l.ThetaWP < 0 || l.ThetaWP >= l.ThetaFC || l.ThetaFC > 1 {
			v.Add(f, "need 0 <= wilting_point < field_capacity <= 1 (wp=%g fc=%g)", l.ThetaWP, l.ThetaFC)
		}
		if l.ThetaIni < 0 || l.ThetaIni > 1 {
			v.Add(f+".initial_moisture", "must be in [0,1], got %g", l.ThetaIni)
		}
	}
	if s.Ze < 0 {
		v.Add("tew_depth", "must be non-negative, got %g", s.Ze)
	}
	if s.REW < 0 {
		v.Add("rew", "must be non-negative, got %g", s.REW)
	}
	return v.Err()
}

// ValidateDepth checks that the profile reaches the crop's maximum root
// depth (zrMax, metres). An empty profile is left to ValidateLayers.
func (s SoilProfile) ValidateDepth(zrMax float64) error {
	if len(s.Layers) == 0 {
		return nil
	}
	last := s.Layers[len(s.Layers)-1].BottomCm
	need := int(math.Ceil(zrMax*100 - 1e-9))
	if last < need {
		return simerr.Invalid("soil", "layers", "last bottom depth %d cm is shallower than maximum root depth %d cm", last, need)
	}
	return nil
}

// Validate runs ValidateLayers and ValidateDepth and reports both.
func (s SoilProfile) Validate(zrMax float64) error {
	v := &simerr.ValidationError{Component: "soil"}
	v.Merge(s.ValidateLayers())
	v.Merge(s.ValidateDepth(zrMax))
	return v.Err()
}
