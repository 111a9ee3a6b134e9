package app

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ---------- Upstream payloads ----------

// RunSummary is one entry of persistence GET /runs/recent.
type RunSummary struct {
	RunID   string  `json:"run_id"`
	FieldID string  `json:"field_id"`
	Crop    string  `json:"crop"`
	Status  string  `json:"status"`
	Irrig   float64 `json:"irrig"`
	ETcadj  float64 `json:"etcadj"`
	Rain    float64 `json:"rain"`
	Time    string  `json:"time"` // RFC3339
}

// UnmarshalJSON accepts numbers sent as strings and "timestamp" for "time".
func (r *RunSummary) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	str := func(k string) string {
		s, _ := m[k].(string)
		return s
	}
	num := func(k string) float64 {
		switch x := m[k].(type) {
		case float64:
			return x
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
		return 0
	}
	r.RunID, r.FieldID, r.Crop, r.Status = str("run_id"), str("field_id"), str("crop"), str("status")
	r.Irrig, r.ETcadj, r.Rain = num("irrig"), num("etcadj"), num("rain")
	if r.Time = str("time"); r.Time == "" {
		r.Time = str("timestamp")
	}
	return nil
}

type CropList struct {
	Crops []string `json:"crops"`
}

type Stats struct {
	Runs       int     `json:"runs"`
	Failed     int     `json:"failed"`
	MeanIrrig  float64 `json:"mean_irrig"`
	MaxIrrig   float64 `json:"max_irrig"`
	MeanETcadj float64 `json:"mean_etcadj"`
}

type DashboardData struct {
	Runs  []RunSummary `json:"runs"`
	Crops []string     `json:"crops"`
	Stats Stats        `json:"stats"`
	Stale bool         `json:"stale,omitempty"` // runs served from the last good answer
}
