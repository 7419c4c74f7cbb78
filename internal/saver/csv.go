package saver

import (
	"encoding/csv"
	"io"
	"strconv"

	"marketfeed/internal/market"
)

// CSVSaver writes one header row then one row per bar. Prices keep their
// exact decimal text.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(w io.Writer, s market.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range s.Bars() {
		rec := []string{
			strconv.FormatInt(b.Timestamp.UnixMilli(), 10),
			b.Timestamp.UTC().Format(timeLayout),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.Volume.String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
