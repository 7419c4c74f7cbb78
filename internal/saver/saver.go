// Package saver writes series and raw provider payloads to files.
package saver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"marketfeed/internal/market"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// Saver encodes one series.
type Saver interface {
	Save(w io.Writer, s market.Series) error
	Extension() string
}

// Formats lists the accepted format names.
func Formats() []string { return []string{"json", "csv", "yaml", "parquet"} }

// New returns the Saver for format (json, csv, yaml, parquet).
func New(format string) (Saver, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "":
		return JSONSaver{}, nil
	case "csv":
		return CSVSaver{}, nil
	case "yaml", "yml":
		return YAMLSaver{}, nil
	case "parquet":
		return ParquetSaver{}, nil
	default:
		return nil, fmt.Errorf("%w %q (use: %s)", ErrUnsupportedFormat, format, strings.Join(Formats(), ", "))
	}
}

// SaveFile writes s to path, replacing any existing file.
func SaveFile(sv Saver, path string, s market.Series) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return sv.Save(f, s)
}

// Row is the flat bar layout shared by the tabular formats.
type Row struct {
	Timestamp int64   `parquet:"t"`
	Time      string  `parquet:"time"`
	Open      float64 `parquet:"o"`
	High      float64 `parquet:"h"`
	Low       float64 `parquet:"l"`
	Close     float64 `parquet:"c"`
	Volume    float64 `parquet:"v"`
}

func rows(s market.Series) []Row {
	out := make([]Row, 0, s.Len())
	for _, b := range s.Bars() {
		out = append(out, Row{
			Timestamp: b.Timestamp.UnixMilli(),
			Time:      b.Timestamp.UTC().Format(timeLayout),
			Open:      b.Open.InexactFloat64(),
			High:      b.High.InexactFloat64(),
			Low:       b.Low.InexactFloat64(),
			Close:     b.Close.InexactFloat64(),
			Volume:    b.Volume.InexactFloat64(),
		})
	}
	return out
}

const timeLayout = "2006-01-02T15:04:05Z"
