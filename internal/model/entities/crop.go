package entities

import "github.com/LeonardoBeccarini/cropwater/internal/simerr"

// StageLengths are the four FAO-56 growth stages in days.
type StageLengths struct {
	Ini int `json:"l_ini" yaml:"l_ini"`
	Dev int `json:"l_dev" yaml:"l_dev"`
	Mid int `json:"l_mid" yaml:"l_mid"`
	End int `json:"l_end" yaml:"l_end"`
}

func (s StageLengths) Total() int { return s.Ini + s.Dev + s.Mid + s.End }

// CropProfile holds the crop parameters handed to the water-balance engine.
// Heights and root depths are in metres.
type CropProfile struct {
	Name   string       `json:"name" yaml:"name"`
	KcbIni float64      `json:"kcb_ini" yaml:"kcb_ini"`
	KcbMid float64      `json:"kcb_mid" yaml:"kcb_mid"`
	KcbEnd float64      `json:"kcb_end" yaml:"kcb_end"`
	Stages StageLengths `json:"stages" yaml:"stages"`
	HIni   float64      `json:"h_ini" yaml:"h_ini"`
	HMax   float64      `json:"h_max" yaml:"h_max"`
	ZrIni  float64      `json:"zr_ini" yaml:"zr_ini"`
	ZrMax  float64      `json:"zr_max" yaml:"zr_max"`
	P      float64      `json:"p" yaml:"p"`
	CN2    float64      `json:"cn2" yaml:"cn2"`
}

// Validate checks the profile invariants and reports every offending field.
func (c CropProfile) Validate() error {
	v := &simerr.ValidationError{Component: "crop"}
	for _, k := range []struct {
		name string
		val  float64
	}{{"kcb_ini", c.KcbIni}, {"kcb_mid", c.KcbMid}, {"kcb_end", c.KcbEnd}} {
		if k.val < 0 {
			v.Add(k.name, "must be non-negative, got %g", k.val)
		}
	}
	for _, s := range []struct {
		name string
		val  int
	}{{"l_ini", c.Stages.Ini}, {"l_dev", c.Stages.Dev}, {"l_mid", c.Stages.Mid}, {"l_end", c.Stages.End}} {
		if s.val < 0 {
			v.Add(s.name, "must be non-negative, got %d", s.val)
		}
	}
	if c.Stages.Total() <= 0 {
		v.Add("stages", "total season length must be positive")
	}
	if c.P <= 0 || c.P > 1 {
		v.Add("p", "must be in (0,1], got %g", c.P)
	}
	if c.HMax <= 0 {
		v.Add("h_max", "must be positive, got %g", c.HMax)
	}
	if c.ZrMax <= 0 {
		v.Add("zr_max", "must be positive, got %g", c.ZrMax)
	}
	if c.ZrIni > c.ZrMax {
		v.Add("zr_ini", "exceeds zr_max (%g > %g)", c.ZrIni, c.ZrMax)
	}
	if c.CN2 <= 0 || c.CN2 > 100 {
		v.Add("cn2", "must be in (0,100], got %g", c.CN2)
	}
	return v.Err()
}
