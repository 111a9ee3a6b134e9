package weather

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	DefaultAgriMetURL = "https://www.usbr.gov/pn-bin/daily.pl"
	agriMetWindHeight = 2.0
)

// daily parameters in response column order
var agriMetParams = []string{"SR", "MX", "MN", "YM", "UA", "PP"}

type Station struct {
	SiteID    string
	Latitude  float64
	Longitude float64
	Install   time.Time // zero when unknown
	Distance  float64   // km, set by Nearby
}

// ReadStations parses a siteid,latitude,longitude[,install] table.
func ReadStations(r io.Reader) ([]Station, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read stations: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("read stations: empty file")
	}
	col := map[string]int{}
	for i, h := range recs[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"siteid", "latitude", "longitude"} {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("read stations: missing column %s", k)
		}
	}
	var out []Station
	for _, r := range recs[1:] {
		get := func(k string) string {
			i, ok := col[k]
			if !ok || i >= len(r) {
				return ""
			}
			return strings.TrimSpace(r[i])
		}
		lat, err1 := strconv.ParseFloat(get("latitude"), 64)
		lon, err2 := strconv.ParseFloat(get("longitude"), 64)
		if get("siteid") == "" || err1 != nil || err2 != nil {
			continue
		}
		st := Station{SiteID: get("siteid"), Latitude: lat, Longitude: lon}
		if s := get("install"); s != "" {
			if t, err := entities.ParseDate(s); err == nil {
				st.Install = t
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func LoadStations(path string) ([]Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stations: %w", err)
	}
	defer f.Close()
	return ReadStations(f)
}

// Nearby returns stations within bufferKm of (lat,lon) installed no later
// than planting, nearest first.
func Nearby(stations []Station, lat, lon, bufferKm float64, planting time.Time) []Station {
	here := orb.Point{lon, lat}
	var out []Station
	for _, s := range stations {
		km := geo.Distance(here, orb.Point{s.Longitude, s.Latitude}) / 1000
		if km > bufferKm {
			continue
		}
		if !s.Install.IsZero() && s.Install.After(planting) {
			continue
		}
		s.Distance = math.Round(km*100) / 100
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// AgriMet reads USBR Hydromet daily data from the nearest station that
// returns any rows.
type AgriMet struct {
	base     string
	stations []Station
	bufferKm float64
	up       upstream
}

var _ Provider = (*AgriMet)(nil)

func NewAgriMet(baseURL string, stations []Station, bufferKm float64, timeout time.Duration) *AgriMet {
	if baseURL == "" {
		baseURL = DefaultAgriMetURL
	}
	if bufferKm <= 0 {
		bufferKm = 50
	}
	return &AgriMet{base: baseURL, stations: stations, bufferKm: bufferKm, up: newUpstream(timeout)}
}

func (a *AgriMet) Name() string { return SourceAgriMet }

func (a *AgriMet) Fetch(ctx context.Context, q Query) (entities.WeatherSeries, error) {
	near := Nearby(a.stations, q.Latitude, q.Longitude, a.bufferKm, q.Start)
	if len(near) == 0 {
		return entities.WeatherSeries{}, fmt.Errorf("agrimet: no station within %g km", a.bufferKm)
	}
	var lastErr error
	for _, st := range near {
		days, err := a.fetchStation(ctx, st.SiteID, q.Start, q.End)
		if err != nil {
			log.Printf("agrimet: station %s (%.2f km): %v", st.SiteID, st.Distance, err)
			lastErr = err
			continue
		}
		if len(days) == 0 {
			continue
		}
		log.Printf("agrimet: using station %s (%.2f km)", st.SiteID, st.Distance)
		return entities.WeatherSeries{
			Latitude: q.Latitude, Longitude: q.Longitude, Elevation: q.Elevation,
			WindHeight: agriMetWindHeight, Source: SourceAgriMet + ":" + st.SiteID, Days: days,
		}, nil
	}
	if lastErr != nil {
		return entities.WeatherSeries{}, fmt.Errorf("agrimet: no station returned data: %w", lastErr)
	}
	return entities.WeatherSeries{}, fmt.Errorf("agrimet: no station returned data")
}

func (a *AgriMet) fetchStation(ctx context.Context, site string, start, end time.Time) ([]entities.DailyWeather, error) {
	list := make([]string, 0, len(agriMetParams))
	for _, p := range agriMetParams {
		list = append(list, site+" "+p)
	}
	recs, err := a.up.getCSV(ctx, a.base, url.Values{
		"list":   {strings.Join(list, ",")},
		"start":  {start.Format(entities.DateLayout)},
		"end":    {end.Format(entities.DateLayout)},
		"format": {"csv"},
	})
	if err != nil {
		return nil, err
	}
	var out []entities.DailyWeather
	for i, r := range recs {
		if i == 0 || len(r) < 1+len(agriMetParams) {
			continue
		}
		d, err := parseAgriMetDate(r[0])
		if err != nil {
			continue
		}
		out = append(out, agriMetDay(d, r[1:]))
	}
	return out, nil
}

func parseAgriMetDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("01/02/2006", s); err == nil {
		return t, nil
	}
	return entities.ParseDate(s)
}

func fToC(f float64) float64 { return (f - 32) * 5 / 9 }

// agriMetDay converts SR langleys, MX/MN/YM degF, UA mph and PP inches.
func agriMetDay(d time.Time, v []string) entities.DailyWeather {
	w := entities.MissingDay(d)
	n := func(i int) float64 { return entities.ParseNumber(v[i]) }
	w.Srad = n(0) * 0.041868
	w.Tmax = fToC(n(1))
	w.Tmin = fToC(n(2))
	w.Tdew = fToC(n(3))
	w.Wind = n(4) * 0.44704
	w.Rain = n(5) * 25.4
	return w
}
