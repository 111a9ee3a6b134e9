package weather

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

// RequiredUploadColumns must appear in an uploaded weather table.
var RequiredUploadColumns = []string{"Date", "srad", "tmmx", "tmmn", "rmax", "rmin", "vs", "pr"}

// ReadCSV parses an uploaded daily weather table. Unparseable numbers become
// missing values; unparseable dates reject the upload.
func ReadCSV(r io.Reader) ([]entities.DailyWeather, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, simerr.Invalid("weather", "file", "empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read weather csv header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	v := &simerr.ValidationError{Component: "weather"}
	var missing []string
	for _, c := range RequiredUploadColumns {
		if _, ok := col[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		v.Add("file", "missing required columns: %s", strings.Join(missing, ", "))
		return nil, v
	}

	cell := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(rec []string, name string) float64 { return entities.ParseNumber(cell(rec, name)) }

	var out []entities.DailyWeather
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read weather csv: %w", err)
		}
		line++
		d, err := entities.ParseDate(cell(rec, "Date"))
		if err != nil {
			v.Add(fmt.Sprintf("line %d.Date", line), "%v", err)
			continue
		}
		w := entities.MissingDay(d)
		w.Srad, w.Tmax, w.Tmin = num(rec, "srad"), num(rec, "tmmx"), num(rec, "tmmn")
		w.RHmax, w.RHmin = num(rec, "rmax"), num(rec, "rmin")
		w.Wind, w.Rain = num(rec, "vs"), num(rec, "pr")
		w.Vapr, w.Tdew, w.ETref = num(rec, "vpar"), num(rec, "tdew"), num(rec, "ET")
		w.MorP = cell(rec, "MorP")
		out = append(out, w)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
