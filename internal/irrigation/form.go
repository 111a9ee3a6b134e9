package irrigation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

// FromForm reads the irrigation section of an HTML form submission.
func FromForm(form url.Values) (Raw, error) {
	raw := Raw{Type: strings.TrimSpace(form.Get("irrigation_type"))}
	switch raw.Type {
	case TypeManual:
		n := 0
		if s := strings.TrimSpace(form.Get("num_events")); s != "" {
			var err error
			if n, err = strconv.Atoi(s); err != nil || n < 0 {
				return Raw{}, simerr.Invalid(component, "num_events", "not a non-negative integer: %q", s)
			}
		}
		for i := 1; i <= n; i++ {
			raw.Events = append(raw.Events, RawEvent{
				Date:     form.Get(fmt.Sprintf("manual_date_%d", i)),
				Amount:   Value(form.Get(fmt.Sprintf("manual_amount_%d", i))),
				Fraction: Value(form.Get(fmt.Sprintf("manual_fraction_%d", i))),
			})
		}
	case TypeAuto:
		raw.Auto = &RawAuto{
			Start:              form.Get("auto_start"),
			End:                form.Get("auto_end"),
			Trigger:            form.Get("trigger"),
			Fraction:           Value(form.Get("auto_fraction")),
			DepletionThreshold: Value(form.Get("depletion_threshold")),
			DepletionUpper:     Value(form.Get("depletion_upper")),
			ETDays:             Value(form.Get("et_days")),
			ETType:             form.Get("et_type"),
			ETUpper:            Value(form.Get("et_upper")),
		}
	}
	return raw, nil
}

// ReadEventsCSV parses an uploaded event table with a Date,Amount[,Fraction]
// header. Rows are returned as typed; BuildFixed rejects the bad ones.
func ReadEventsCSV(r io.Reader) ([]RawEvent, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, simerr.Invalid(component, "file", "empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read irrigation csv header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	v := &simerr.ValidationError{Component: component}
	for _, req := range []string{"Date", "Amount"} {
		if _, ok := col[req]; !ok {
			v.Add("file", "missing required column %s", req)
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	cell := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []RawEvent
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read irrigation csv: %w", err)
		}
		if strings.TrimSpace(strings.Join(rec, "")) == "" {
			continue
		}
		out = append(out, RawEvent{
			Date:     cell(rec, "Date"),
			Amount:   Value(cell(rec, "Amount")),
			Fraction: Value(cell(rec, "Fraction")),
		})
	}
	return out, nil
}
