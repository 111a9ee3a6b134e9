// Package simulator assembles crop, soil, weather and irrigation inputs for
// one season, runs the water-balance engine and post-processes its output.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/cropwater/internal/catalog"
	"github.com/LeonardoBeccarini/cropwater/internal/engine"
	"github.com/LeonardoBeccarini/cropwater/internal/fao56"
	"github.com/LeonardoBeccarini/cropwater/internal/irrigation"
	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
	"github.com/LeonardoBeccarini/cropwater/internal/weather"
)

const component = "simulation"

// Wind sensor heights (m) used when the request does not state one. Uploads
// share the gridMET column layout and its 10 m anemometer.
const (
	DefaultWindHeight = 2.0
	UploadWindHeight  = 10.0
)

// Result is the response for one run. Everything is freshly allocated.
type Result struct {
	entities.SimulationResult
	Totals   entities.SeasonTotals `json:"summary_rounded"`
	Timeline []fao56.TimelinePoint `json:"timeline"`
	Kcb      *fao56.KcbAdjustment  `json:"kcb_adjustment,omitempty"`
	Thermal  *fao56.ThermalResult  `json:"thermal,omitempty"`
	Weather  string                `json:"weather_source,omitempty"`
}

// Prepared holds validated inputs ready for the engine.
type Prepared struct {
	RunID   string
	Crop    entities.CropProfile
	Soil    entities.SoilProfile
	Plan    entities.IrrigationPlan
	Weather entities.WeatherSeries
	Start   time.Time
	End     time.Time
	Options Options
}

type Orchestrator struct {
	engine  engine.Engine
	catalog *catalog.Catalog
	weather *weather.Service
	metrics *Metrics
	newID   func() string
}

func New(e engine.Engine, cat *catalog.Catalog, ws *weather.Service, m *Metrics) *Orchestrator {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Orchestrator{engine: e, catalog: cat, weather: ws, metrics: m, newID: uuid.NewString}
}

func (o *Orchestrator) Catalog() *catalog.Catalog { return o.catalog }

// Simulate validates req, runs the engine once and returns the result.
// Failures are never retried.
func (o *Orchestrator) Simulate(ctx context.Context, req Request) (*Result, error) {
	t0 := time.Now()
	p, err := o.Prepare(ctx, req)
	var res *Result
	if err == nil {
		res, err = o.Run(ctx, p)
	}
	o.metrics.observe(err, time.Since(t0))
	if err != nil {
		log.Printf("simulator: run %s failed: %v", req.RunID, err)
		return nil, err
	}
	log.Printf("simulator: run %s crop=%s days=%d irrig=%.1fmm", res.RunID, res.Crop, len(res.Daily), res.Summary.Irrig)
	return res, nil
}

// Prepare checks every input and resolves the weather series. All field
// problems are reported together; weather is only fetched once the rest is valid.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (Prepared, error) {
	v := &simerr.ValidationError{Component: component}

	start, errS := entities.ParseDate(req.Planting)
	if errS != nil {
		v.Add("planting_date", "%v", errS)
	}
	end, errE := entities.ParseDate(req.Maturity)
	if errE != nil {
		v.Add("maturity_date", "%v", errE)
	}
	datesOK := errS == nil && errE == nil
	if datesOK && end.Before(start) {
		v.Add("maturity_date", "%s is before planting %s", end.Format(entities.DateLayout), start.Format(entities.DateLayout))
		datesOK = false
	}

	crop, err := o.catalog.Lookup(req.Crop.Name)
	cropOK := err == nil
	switch {
	case strings.TrimSpace(req.Crop.Name) == "":
		v.Add("crop.name", "required")
	case err != nil:
		merge(v, "", err)
	default:
		crop = req.Crop.Override.Apply(crop)
		if err := crop.Validate(); err != nil {
			merge(v, "crop.", err)
			cropOK = false
		}
	}

	soil := req.Soil.WithDefaults()
	if err := soil.ValidateLayers(); err != nil {
		merge(v, "soil.", err)
	}
	if cropOK {
		// Must fail here: the engine cannot grow roots below the last layer.
		if err := soil.ValidateDepth(crop.ZrMax); err != nil {
			merge(v, "soil.", err)
		}
	}

	plan, err := irrigation.Build(req.Irrigation)
	if err != nil {
		merge(v, "irrigation.", err)
	} else if datesOK {
		if err := irrigation.WithinWindow(plan, start, end); err != nil {
			merge(v, "irrigation.", err)
		}
	}

	if req.Options.Thermal != nil && req.Options.Thermal.Target <= 0 {
		v.Add("options.thermal.target", "must be positive, got %g", req.Options.Thermal.Target)
	}
	if err := v.Err(); err != nil {
		return Prepared{}, err
	}

	series, err := o.resolveWeather(ctx, req.Weather, start, end)
	if err != nil {
		return Prepared{}, err
	}

	id := req.RunID
	if id == "" {
		id = o.newID()
	}
	return Prepared{
		RunID: id, Crop: crop, Soil: soil, Plan: plan, Weather: series,
		Start: start, End: end, Options: req.Options,
	}, nil
}

func merge(v *simerr.ValidationError, prefix string, err error) {
	var other *simerr.ValidationError
	if !errors.As(err, &other) {
		v.Add(strings.TrimSuffix(prefix, "."), "%v", err)
		return
	}
	for _, f := range other.Fields {
		v.Fields = append(v.Fields, simerr.FieldError{Field: prefix + f.Field, Reason: f.Reason})
	}
}

func (o *Orchestrator) resolveWeather(ctx context.Context, w WeatherInput, start, end time.Time) (entities.WeatherSeries, error) {
	var series entities.WeatherSeries
	src := strings.ToLower(strings.TrimSpace(w.Source))
	if src == "" && len(w.Records) > 0 {
		src = weather.SourceInline
	}
	switch src {
	case weather.SourceInline:
		if len(w.Records) == 0 {
			return series, &simerr.DataUnavailableError{Source: "weather", Reason: "no inline records"}
		}
		series = entities.WeatherSeries{
			Latitude: w.Latitude, Longitude: w.Longitude, Elevation: w.Elevation,
			WindHeight: w.WindHeight, Source: weather.SourceInline, Days: w.Records,
		}
		if series.WindHeight == 0 {
			series.WindHeight = DefaultWindHeight
		}
	default:
		if o.weather == nil {
			return series, &simerr.DataUnavailableError{Source: "weather", Reason: "no weather service configured"}
		}
		var err error
		series, err = o.weather.Get(ctx, src, weather.Query{
			Latitude: w.Latitude, Longitude: w.Longitude, Elevation: w.Elevation, Start: start, End: end,
		})
		if err != nil {
			return series, err
		}
		if w.WindHeight > 0 {
			series.WindHeight = w.WindHeight
		}
	}
	if len(series.Days) == 0 {
		return series, &simerr.DataUnavailableError{Source: series.Source, Reason: "empty weather series"}
	}
	if err := series.Validate(); err != nil {
		return series, err
	}
	if !series.Covers(start, end) {
		return series, &simerr.DataUnavailableError{Source: series.Source,
			Reason: fmt.Sprintf("series does not cover %s..%s", start.Format(entities.DateLayout), end.Format(entities.DateLayout))}
	}
	return series, nil
}

// Run applies the optional adjustments, calls the engine and builds the result.
func (o *Orchestrator) Run(ctx context.Context, p Prepared) (*Result, error) {
	res := &Result{Weather: p.Weather.Source}
	end := p.End

	if th := p.Options.Thermal; th != nil {
		tr, err := fao56.AccumulateThermalTime(p.Weather.Days, fao56.ThermalParams{
			Start: p.Start, End: p.End, TBase: th.TBase, TCutoff: th.TCutoff, Target: th.Target, Method: th.Method,
		})
		switch {
		case errors.Is(err, simerr.ErrTargetNotReached):
			log.Printf("simulator: run %s: thermal target %g not reached, keeping maturity %s",
				p.RunID, th.Target, p.End.Format(entities.DateLayout))
		case err != nil:
			return nil, err
		default:
			end = tr.End
			res.Thermal = &tr
		}
	}

	stages := p.Crop.Stages
	if p.Options.AdjustStages {
		st, err := fao56.RescaleStages(stages, p.Start, end)
		if err != nil {
			return nil, err
		}
		stages = st
	}

	season := p.Weather
	season.Days = p.Weather.Window(p.Start, end)

	kcbMid, kcbEnd := p.Crop.KcbMid, p.Crop.KcbEnd
	if p.Options.AdjustKcb {
		adj, err := fao56.AdjustKcb(season.Days, kcbMid, kcbEnd, stages, season.WindHeight, p.Crop.HMax)
		if err != nil {
			return nil, err
		}
		kcbMid, kcbEnd = adj.KcbMid, adj.KcbEnd
		res.Kcb = &adj
	}

	in := BuildInput(p.Crop, stages, kcbMid, kcbEnd, p.Soil, season, p.Plan, p.Start, end, p.Options)
	out, err := o.engine.Run(ctx, in)
	if err != nil {
		o.metrics.engineError()
		return nil, &simerr.EngineError{Op: "run", Input: in, Err: err}
	}
	if len(out.Daily) == 0 {
		o.metrics.engineError()
		return nil, &simerr.EngineError{Op: "run", Input: in, Err: errors.New("empty daily table")}
	}

	summary := entities.SummarizeDaily(out.Daily)
	if out.Summary != nil {
		summary = *out.Summary
	}
	res.SimulationResult = entities.SimulationResult{
		RunID: p.RunID, Crop: p.Crop.Name, Start: p.Start, End: end,
		Stages: stages, KcbMid: kcbMid, KcbEnd: kcbEnd, Plan: p.Plan.Kind(),
		Daily: out.Daily, Summary: summary,
	}
	res.Totals = summary.Rounded()
	res.Timeline = fao56.BuildTimeline(out.Daily)
	return res, nil
}

// BuildInput assembles the engine parameter contract. cons_p holds p at the
// profile value unless the caller asked for it to follow ET.
func BuildInput(c entities.CropProfile, st entities.StageLengths, kcbMid, kcbEnd float64, soil entities.SoilProfile,
	season entities.WeatherSeries, plan entities.IrrigationPlan, start, end time.Time, opt Options) engine.Input {
	s, e := engine.DateRange(start, end)
	return engine.Input{
		Start:      s,
		End:        e,
		Params:     engine.NewParameters(c, st, kcbMid, kcbEnd, soil),
		Soil:       engine.NewSoil(soil),
		Weather:    engine.NewWeatherTable(season),
		Irrigation: engine.NewIrrigation(plan),
		Runoff:     opt.runoff(),
		ConsP:      !opt.AdjustP,
	}
}
