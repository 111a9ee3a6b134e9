package entities

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

const DateLayout = "2006-01-02"

// DailyWeather is one day of forcing. Units: srad MJ/m2/d, temperatures degC,
// vapour pressure kPa, humidity %, wind m/s at the series wind height, rain mm.
// Missing values are NaN.
type DailyWeather struct {
	Date  time.Time
	Srad  float64
	Tmax  float64
	Tmin  float64
	Vapr  float64
	Tdew  float64
	RHmax float64
	RHmin float64
	Wind  float64
	Rain  float64
	ETref float64
	MorP  string // measured or predicted
}

// MissingDay returns a record dated d with every value missing.
func MissingDay(d time.Time) DailyWeather {
	nan := math.NaN()
	return DailyWeather{Date: d, Srad: nan, Tmax: nan, Tmin: nan, Vapr: nan, Tdew: nan,
		RHmax: nan, RHmin: nan, Wind: nan, Rain: nan, ETref: nan}
}

func (w *DailyWeather) fields() []struct {
	key string
	ptr *float64
} {
	return []struct {
		key string
		ptr *float64
	}{
		{"srad", &w.Srad}, {"tmmx", &w.Tmax}, {"tmmn", &w.Tmin}, {"vpar", &w.Vapr},
		{"tdew", &w.Tdew}, {"rmax", &w.RHmax}, {"rmin", &w.RHmin}, {"vs", &w.Wind},
		{"pr", &w.Rain}, {"ET", &w.ETref},
	}
}

// ParseNumber coerces a JSON or CSV value to float64; anything unparseable is NaN.
func ParseNumber(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	case int:
		return float64(x)
	}
	return math.NaN()
}

func (w *DailyWeather) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	ds, _ := m["Date"].(string)
	if ds == "" {
		ds, _ = m["date"].(string)
	}
	d, err := ParseDate(ds)
	if err != nil {
		return err
	}
	*w = MissingDay(d)
	for _, f := range w.fields() {
		if v, ok := m[f.key]; ok {
			*f.ptr = ParseNumber(v)
		}
	}
	if s, ok := m["MorP"].(string); ok {
		w.MorP = s
	}
	return nil
}

func (w DailyWeather) MarshalJSON() ([]byte, error) {
	m := map[string]any{"Date": w.Date.Format(DateLayout)}
	for _, f := range w.fields() {
		if math.IsNaN(*f.ptr) {
			m[f.key] = nil
		} else {
			m[f.key] = *f.ptr
		}
	}
	if w.MorP != "" {
		m["MorP"] = w.MorP
	}
	return json.Marshal(m)
}

// dateTimeLayouts are the full timestamp forms ParseDate also accepts.
var dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// ParseDate accepts YYYY-MM-DD or a complete timestamp on that date.
// Anything else, trailing text included, is an error.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	for _, l := range dateTimeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: want YYYY-MM-DD", s)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeatherSeries is a date-ordered daily record set for one location.
type WeatherSeries struct {
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Elevation  float64        `json:"elevation"`
	WindHeight float64        `json:"wind_height"` // m
	Source     string         `json:"source,omitempty"`
	Days       []DailyWeather `json:"weather_data"`
}

// Validate checks that dates are strictly increasing.
func (s WeatherSeries) Validate() error {
	v := &simerr.ValidationError{Component: "weather"}
	for i := 1; i < len(s.Days); i++ {
		if !s.Days[i].Date.After(s.Days[i-1].Date) {
			v.Add(fmt.Sprintf("weather_data[%d].Date", i), "%s does not follow %s",
				s.Days[i].Date.Format(DateLayout), s.Days[i-1].Date.Format(DateLayout))
		}
	}
	if s.WindHeight < 0 {
		v.Add("wind_height", "must be positive, got %g", s.WindHeight)
	}
	return v.Err()
}

// IndexOf returns the position of date d, or -1.
func (s WeatherSeries) IndexOf(d time.Time) int {
	d = Day(d)
	for i := range s.Days {
		if s.Days[i].Date.Equal(d) {
			return i
		}
	}
	return -1
}

// Covers reports whether every day in [start,end] is present.
func (s WeatherSeries) Covers(start, end time.Time) bool {
	i, j := s.IndexOf(start), s.IndexOf(end)
	if i < 0 || j < 0 || j < i {
		return false
	}
	return j-i == int(Day(end).Sub(Day(start)).Hours()/24)
}

// Window returns the records dated within [start,end]. The slice aliases s.Days.
func (s WeatherSeries) Window(start, end time.Time) []DailyWeather {
	start, end = Day(start), Day(end)
	lo, hi := -1, -1
	for i := range s.Days {
		d := s.Days[i].Date
		if d.Before(start) || d.After(end) {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 {
		return nil
	}
	return s.Days[lo : hi+1]
}
