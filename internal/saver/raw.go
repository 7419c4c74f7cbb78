package saver

import (
	"bytes"
	"encoding/json"
	"io"

	"marketfeed/internal/provider"
)

// WriteRaw dumps the provider body as received. JSON bodies are indented.
func WriteRaw(w io.Writer, p provider.Payload) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, p.Body, "", "  "); err != nil {
		_, werr := w.Write(p.Body)
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
