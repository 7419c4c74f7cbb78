package saver

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"marketfeed/internal/market"
)

// ParquetSaver writes Row records; prices are float64.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(w io.Writer, s market.Series) error {
	return parquet.Write(w, rows(s))
}
