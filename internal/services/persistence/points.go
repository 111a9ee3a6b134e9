package persistence

import (
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/cropwater/internal/model/messages"
)

const (
	MeasurementDaily   = "water_balance"
	MeasurementSummary = "season_summary"
)

func runTags(ev messages.SimulationCompletedEvent) map[string]string {
	crop := ev.Crop
	if crop == "" {
		crop = "unknown"
	}
	return map[string]string{
		"field_id": ev.FieldID,
		"run_id":   ev.RunID,
		"crop":     sanitizeTag(crop),
	}
}

// Points maps an event to one water_balance point per simulated day
// plus a season_summary point stamped with the event time.
// A FAIL event yields only the summary point.
func Points(ev messages.SimulationCompletedEvent) []*write.Point {
	tags := runTags(ev)
	out := make([]*write.Point, 0, len(ev.Daily)+1)

	if ev.Status == messages.StatusOK {
		for _, d := range ev.Daily {
			out = append(out, influxdb2.NewPoint(MeasurementDaily, tags, map[string]interface{}{
				"etref":  d.ETref,
				"kcb":    d.Kcb,
				"ks":     d.Ks,
				"etcadj": d.ETcadj,
				"zr":     d.Zr,
				"taw":    d.TAW,
				"raw":    d.RAW,
				"dr":     d.Dr,
				"fdr":    d.FDr,
				"dp":     d.DP,
				"irrig":  d.Irrig,
				"rain":   d.Rain,
				"runoff": d.Runoff,
			}, d.Date()))
		}
	}

	fields := map[string]interface{}{"status": ev.Status}
	if ev.Reason != "" {
		fields["reason"] = ev.Reason
	}
	if ev.Plan != "" {
		fields["plan"] = string(ev.Plan)
	}
	if s := ev.Summary; s != nil {
		fields["etref"] = s.ETref
		fields["etc"] = s.ETc
		fields["etcadj"] = s.ETcadj
		fields["e"] = s.E
		fields["t"] = s.T
		fields["rain"] = s.Rain
		fields["irrig"] = s.Irrig
		fields["irrig_count"] = s.IrrigCount
		fields["irrloss"] = s.IrrLoss
		fields["runoff"] = s.Runoff
		fields["dp"] = s.DP
	}
	out = append(out, influxdb2.NewPoint(MeasurementSummary, tags, fields, ev.Timestamp))
	return out
}

func sanitizeTag(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z',
			r >= '0' && r <= '9',
			r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
