package simulator

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
)

// DailyColumns is the header of the exported daily table.
var DailyColumns = []string{
	"Year", "DOY", "ETref", "Kcb", "Ke", "Kc", "ETc", "Ks", "Kcadj", "ETcadj", "E", "T",
	"Zr", "p", "TAW", "RAW", "Dr", "fDr", "DP", "Irrig", "IrrLoss", "Rain", "Runoff",
}

// WriteDailyCSV writes the daily table with DailyColumns as header.
func WriteDailyCSV(w io.Writer, rows []entities.DailyOutput) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DailyColumns); err != nil {
		return err
	}
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', 4, 64) }
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Year), strconv.Itoa(r.DOY),
			f(r.ETref), f(r.Kcb), f(r.Ke), f(r.Kc), f(r.ETc), f(r.Ks), f(r.Kcadj), f(r.ETcadj), f(r.E), f(r.T),
			f(r.Zr), f(r.P), f(r.TAW), f(r.RAW), f(r.Dr), f(r.FDr), f(r.DP), f(r.Irrig), f(r.IrrLoss), f(r.Rain), f(r.Runoff),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
