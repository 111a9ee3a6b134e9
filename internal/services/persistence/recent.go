package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// RecentRun is a season_summary row read back from Influx.
type RecentRun struct {
	RunID   string  `json:"run_id"`
	FieldID string  `json:"field_id"`
	Crop    string  `json:"crop"`
	Status  string  `json:"status"`
	Irrig   float64 `json:"irrig"`
	ETcadj  float64 `json:"etcadj"`
	Rain    float64 `json:"rain"`
	Time    string  `json:"time"` // RFC3339
}

type RecentQuery struct {
	FieldID string
	Minutes int
	Limit   int
}

type RecentSource interface {
	Recent(ctx context.Context, q RecentQuery) ([]RecentRun, error)
}

type InfluxReader struct {
	influx influxdb2.Client
	org    string
	bucket string
}

var _ RecentSource = (*InfluxReader)(nil)

func NewInfluxReader(c influxdb2.Client, org, bucket string) *InfluxReader {
	return &InfluxReader{influx: c, org: org, bucket: bucket}
}

func buildFlux(bucket string, q RecentQuery) string {
	var field string
	if q.FieldID != "" {
		field = fmt.Sprintf("\n  |> filter(fn: (r) => r.field_id == %q)", q.FieldID)
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)%s
  |> filter(fn: (r) => r._field == "status" or r._field == "irrig" or r._field == "etcadj" or r._field == "rain")
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, q.Minutes, MeasurementSummary, field, q.Limit)
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	}
	return 0
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func (r *InfluxReader) Recent(ctx context.Context, q RecentQuery) ([]RecentRun, error) {
	res, err := r.influx.QueryAPI(r.org).Query(ctx, buildFlux(r.bucket, q))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer res.Close()

	out := make([]RecentRun, 0, q.Limit)
	for res.Next() {
		rec := res.Record()
		out = append(out, RecentRun{
			RunID:   asString(rec.ValueByKey("run_id")),
			FieldID: asString(rec.ValueByKey("field_id")),
			Crop:    asString(rec.ValueByKey("crop")),
			Status:  asString(rec.ValueByKey("status")),
			Irrig:   asFloat(rec.ValueByKey("irrig")),
			ETcadj:  asFloat(rec.ValueByKey("etcadj")),
			Rain:    asFloat(rec.ValueByKey("rain")),
			Time:    rec.Time().UTC().Format(time.RFC3339),
		})
	}
	if err := res.Err(); err != nil {
		return out, fmt.Errorf("influx iterate: %w", err)
	}
	return out, nil
}
