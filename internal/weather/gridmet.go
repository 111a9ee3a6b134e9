package weather

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
)

const (
	DefaultGridMETURL = "http://thredds.northwestknowledge.net:8080"
	gridMETWindHeight = 10.0
)

var gridMETVars = []string{"srad", "tmmx", "tmmn", "rmax", "rmin", "vs", "pr"}

// GridMET reads the nearest grid cell from the THREDDS NetCDF subset service,
// one request per variable and year.
type GridMET struct {
	base string
	up   upstream
}

var _ Provider = (*GridMET)(nil)

func NewGridMET(baseURL string, timeout time.Duration) *GridMET {
	if baseURL == "" {
		baseURL = DefaultGridMETURL
	}
	return &GridMET{base: strings.TrimRight(baseURL, "/"), up: newUpstream(timeout)}
}

func (g *GridMET) Name() string { return SourceGridMET }

func (g *GridMET) Fetch(ctx context.Context, q Query) (entities.WeatherSeries, error) {
	if q.End.Before(q.Start) {
		return entities.WeatherSeries{}, fmt.Errorf("gridmet: start after end")
	}
	byDate := map[time.Time]*entities.DailyWeather{}
	for year := q.Start.Year(); year <= q.End.Year(); year++ {
		for _, v := range gridMETVars {
			rows, err := g.fetchVar(ctx, v, year, q)
			if err != nil {
				return entities.WeatherSeries{}, err
			}
			for d, val := range rows {
				rec, ok := byDate[d]
				if !ok {
					day := entities.MissingDay(d)
					rec = &day
					byDate[d] = rec
				}
				setGridMET(rec, v, val)
			}
		}
	}

	s := entities.WeatherSeries{
		Latitude: q.Latitude, Longitude: q.Longitude, Elevation: q.Elevation,
		WindHeight: gridMETWindHeight, Source: SourceGridMET,
	}
	for d := entities.Day(q.Start); !d.After(q.End); d = d.AddDate(0, 0, 1) {
		if rec, ok := byDate[d]; ok {
			s.Days = append(s.Days, *rec)
		}
	}
	return s, nil
}

func (g *GridMET) fetchVar(ctx context.Context, v string, year int, q Query) (map[time.Time]float64, error) {
	base := fmt.Sprintf("%s/thredds/ncss/MET/%s/%s_%d.nc", g.base, v, v, year)
	params := url.Values{
		"var":        {"all"},
		"latitude":   {fmt.Sprint(q.Latitude)},
		"longitude":  {fmt.Sprint(q.Longitude)},
		"time_start": {fmt.Sprintf("%d-01-01T00:00:00Z", year)},
		"time_end":   {fmt.Sprintf("%d-12-31T00:00:00Z", year)},
		"accept":     {"csv"},
	}
	recs, err := g.up.getCSV(ctx, base, params)
	if err != nil {
		return nil, fmt.Errorf("gridmet %s %d: %w", v, year, err)
	}
	out := make(map[time.Time]float64, len(recs))
	for i, r := range recs {
		if i == 0 || len(r) < 2 {
			continue
		}
		d, err := entities.ParseDate(r[0])
		if err != nil {
			continue
		}
		out[d] = entities.ParseNumber(r[len(r)-1])
	}
	return out, nil
}

// setGridMET stores a raw value converted to engine units.
func setGridMET(rec *entities.DailyWeather, v string, val float64) {
	r3 := func(x float64) float64 { return math.Round(x*1000) / 1000 }
	switch v {
	case "srad":
		rec.Srad = r3(val * 0.0864) // W/m2 -> MJ/m2/d
	case "tmmx":
		rec.Tmax = r3(val - 273.15)
	case "tmmn":
		rec.Tmin = r3(val - 273.15)
	case "rmax":
		rec.RHmax = val
	case "rmin":
		rec.RHmin = val
	case "vs":
		rec.Wind = val
	case "pr":
		rec.Rain = val
	}
}
