// Package irrigation validates raw irrigation input and normalizes it into
// one of the plan variants the simulator understands.
package irrigation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

const component = "irrigation"

// Input modes, as sent by forms and API clients.
const (
	TypeNone   = ""
	TypeManual = "manual"
	TypeUpload = "upload"
	TypeAuto   = "auto"
)

// Auto triggers.
const (
	TriggerRootDepletion = "root_depletion"
	TriggerETReplacement = "et_replacement"
)

const (
	DefaultMAD          = 0.5
	DefaultUpperPercent = 95.0
	DefaultETDays       = 3
)

// Value is a scalar as the user typed it. JSON numbers and strings both
// decode into it; the empty value means omitted.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(strings.TrimSpace(s))
		return nil
	}
	*v = Value(b)
	return nil
}

func (v Value) Omitted() bool { return strings.TrimSpace(string(v)) == "" }

func (v Value) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
}

type RawEvent struct {
	Date     string `json:"Date"`
	Amount   Value  `json:"Amount"`
	Fraction Value  `json:"Fraction"`
}

type RawAuto struct {
	Start              string `json:"start_date"`
	End                string `json:"end_date"`
	Trigger            string `json:"trigger"`
	Fraction           Value  `json:"auto_fraction"`
	DepletionThreshold Value  `json:"depletion_threshold"`
	DepletionUpper     Value  `json:"depletion_upper"`
	ETDays             Value  `json:"et_days"`
	ETType             string `json:"et_type"`
	ETUpper            Value  `json:"et_upper"`
}

// Raw is the un-validated irrigation section of a simulation request.
type Raw struct {
	Type   string     `json:"irrigation_type"`
	Events []RawEvent `json:"events,omitempty"`
	Auto   *RawAuto   `json:"auto,omitempty"`
}

// Build validates raw input and returns the matching plan. A missing section
// yields an empty FixedEvents plan, i.e. a rainfed season.
func Build(raw Raw) (entities.IrrigationPlan, error) {
	switch raw.Type {
	case TypeNone:
		if raw.Auto != nil {
			return BuildAuto(*raw.Auto)
		}
		return BuildFixed(raw.Events)
	case TypeManual, TypeUpload:
		return BuildFixed(raw.Events)
	case TypeAuto:
		if raw.Auto == nil {
			return nil, simerr.Invalid(component, "auto", "auto irrigation settings are required")
		}
		return BuildAuto(*raw.Auto)
	default:
		return nil, simerr.Invalid(component, "irrigation_type", "unknown type %q", raw.Type)
	}
}

// BuildFixed validates every event; a bad row fails the whole list.
func BuildFixed(events []RawEvent) (entities.FixedEvents, error) {
	v := &simerr.ValidationError{Component: component}
	out := entities.FixedEvents{Events: make([]entities.IrrigationEvent, 0, len(events))}
	for i, e := range events {
		f := fmt.Sprintf("events[%d]", i)
		ev := entities.IrrigationEvent{Fraction: entities.DefaultApplicationFraction}
		ok := true

		d, err := parseDay(e.Date)
		if err != nil {
			v.Add(f+".Date", "%v", err)
			ok = false
		}
		ev.Date = d

		if e.Amount.Omitted() {
			v.Add(f+".Amount", "required")
			ok = false
		} else if a, err := e.Amount.Float(); err != nil {
			v.Add(f+".Amount", "not a number: %q", e.Amount)
			ok = false
		} else if a < 0 {
			v.Add(f+".Amount", "must be non-negative, got %g", a)
			ok = false
		} else {
			ev.DepthMM = a
		}

		if fr, err := fraction(e.Fraction); err != nil {
			v.Add(f+".Fraction", "%v", err)
			ok = false
		} else {
			ev.Fraction = fr
		}
		if ok {
			out.Events = append(out.Events, ev)
		}
	}
	if err := v.Err(); err != nil {
		return entities.FixedEvents{}, err
	}
	return out, nil
}

// BuildAuto validates one of the two trigger-rule variants.
func BuildAuto(a RawAuto) (entities.IrrigationPlan, error) {
	v := &simerr.ValidationError{Component: component}

	start, errS := parseDay(a.Start)
	if errS != nil {
		v.Add("start_date", "%v", errS)
	}
	end, errE := parseDay(a.End)
	if errE != nil {
		v.Add("end_date", "%v", errE)
	}
	if errS == nil && errE == nil && !start.Before(end) {
		v.Add("end_date", "must be after start_date (%s >= %s)",
			start.Format(entities.DateLayout), end.Format(entities.DateLayout))
	}
	fr, err := fraction(a.Fraction)
	if err != nil {
		v.Add("auto_fraction", "%v", err)
	}

	switch a.Trigger {
	case TriggerRootDepletion:
		p := entities.AutoRootDepletion{Start: start, End: end, Fraction: fr, MAD: DefaultMAD, Upper: DefaultUpperPercent}
		if !a.DepletionThreshold.Omitted() {
			mad, err := a.DepletionThreshold.Float()
			switch {
			case err != nil:
				v.Add("depletion_threshold", "not a number: %q", a.DepletionThreshold)
			case mad <= 0 || mad > 1:
				v.Add("depletion_threshold", "must be in (0,1], got %g", mad)
			default:
				p.MAD = mad
			}
		}
		if !a.DepletionUpper.Omitted() {
			up, err := a.DepletionUpper.Float()
			if err != nil {
				v.Add("depletion_upper", "not a number: %q", a.DepletionUpper)
			} else {
				p.Upper = up
			}
		}
		if err := v.Err(); err != nil {
			return nil, err
		}
		return p, nil

	case TriggerETReplacement:
		p := entities.AutoETReplacement{Start: start, End: end, Fraction: fr,
			LookbackDays: DefaultETDays, ETType: entities.ETCrop}
		if !a.ETDays.Omitted() {
			n, err := strconv.Atoi(strings.TrimSpace(string(a.ETDays)))
			switch {
			case err != nil:
				v.Add("et_days", "not an integer: %q", a.ETDays)
			case n < 1:
				v.Add("et_days", "must be at least 1, got %d", n)
			default:
				p.LookbackDays = n
			}
		}
		switch t := entities.ETType(strings.TrimSpace(a.ETType)); t {
		case "":
		case entities.ETCrop, entities.ETAdjusted:
			p.ETType = t
		default:
			v.Add("et_type", "must be ETc or ETcadj, got %q", a.ETType)
		}
		// non-numeric et_upper means no bound
		if !a.ETUpper.Omitted() {
			if up, err := a.ETUpper.Float(); err == nil {
				p.Upper = &up
			} else {
				log.Printf("irrigation: et_upper %q is not numeric, treating as unset", a.ETUpper)
			}
		}
		if err := v.Err(); err != nil {
			return nil, err
		}
		return p, nil

	default:
		v.Add("trigger", "must be %s or %s, got %q", TriggerRootDepletion, TriggerETReplacement, a.Trigger)
		return nil, v
	}
}

func parseDay(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	return entities.ParseDate(s)
}

func fraction(v Value) (float64, error) {
	if v.Omitted() {
		return entities.DefaultApplicationFraction, nil
	}
	f, err := v.Float()
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", string(v))
	}
	if f <= 0 || f > 1 {
		return 0, fmt.Errorf("must be in (0,1], got %g", f)
	}
	return f, nil
}

// EngineUpperFraction converts the root-depletion upper bound (percent) to
// the fractional complement the engine expects.
func EngineUpperFraction(upperPercent float64) float64 {
	return max(0, 1-upperPercent/100)
}

// WithinWindow reports fixed events dated outside [start,end]. Trigger
// windows are not checked; the engine ignores days outside the season.
func WithinWindow(p entities.IrrigationPlan, start, end time.Time) error {
	fixed, ok := p.(entities.FixedEvents)
	if !ok {
		return nil
	}
	v := &simerr.ValidationError{Component: component}
	for i, e := range fixed.Events {
		if e.Date.Before(start) || e.Date.After(end) {
			v.Add(fmt.Sprintf("events[%d].Date", i), "%s outside season %s..%s", e.Date.Format(entities.DateLayout),
				start.Format(entities.DateLayout), end.Format(entities.DateLayout))
		}
	}
	return v.Err()
}
