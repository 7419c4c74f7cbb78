package saver

import (
	"encoding/json"
	"io"

	"marketfeed/internal/market"
)

// JSONSaver writes the series document, indented.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(w io.Writer, s market.Series) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
