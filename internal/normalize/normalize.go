// Package normalize turns raw provider payloads into canonical series.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"marketfeed/internal/logger"
	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

var errMissingField = errors.New("missing field")

// record is one provider row before validation. Values stay as gjson
// results so numbers keep their original text.
type record struct {
	ts     time.Time
	tsErr  error
	open   gjson.Result
	high   gjson.Result
	low    gjson.Result
	close  gjson.Result
	volume gjson.Result
}

type extractor func(body gjson.Result, p provider.Payload) ([]record, error)

// Normalizer validates and converts payloads. It is safe for concurrent use.
type Normalizer struct {
	schemas    map[market.Source]*jsonschema.Schema
	extractors map[market.Source]extractor
}

func New() (*Normalizer, error) {
	schemas, err := compileEnvelopes()
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		schemas: schemas,
		extractors: map[market.Source]extractor{
			market.SourceAlphaVantage: extractAlphaVantage,
			market.SourcePolygon:      extractPolygon,
			market.SourceBinance:      extractBinance,
			market.SourceYahoo:        extractYahoo,
		},
	}, nil
}

// Normalize converts p into an ascending, de-duplicated series of valid
// bars. Structural problems fail with *provider.SchemaError; bad records
// are dropped and logged.
func (n *Normalizer) Normalize(p provider.Payload, desc provider.Descriptor) (market.Series, error) {
	src := desc.Source
	if src == "" {
		src = p.Source
	}
	extract, ok := n.extractors[src]
	if !ok {
		return market.Series{}, &provider.SchemaError{Source: src, Reason: "no normalizer for source"}
	}
	if !p.Interval.Valid() {
		return market.Series{}, &provider.SchemaError{Source: src, Reason: fmt.Sprintf("invalid interval %q", p.Interval)}
	}

	if err := n.checkEnvelope(src, p.Body); err != nil {
		return market.Series{}, err
	}

	recs, err := extract(gjson.ParseBytes(p.Body), p)
	if err != nil {
		return market.Series{}, &provider.SchemaError{Source: src, Reason: "extracting records", Err: err}
	}

	bars := make([]market.Bar, 0, len(recs))
	for i, r := range recs {
		b, err := toBar(r, p.Interval)
		if err != nil {
			logger.Warnf("[normalize] %s %s@%s: dropping record %d: %v", src, p.Symbol, p.Interval, i, err)
			continue
		}
		bars = append(bars, b)
	}
	if dropped := len(recs) - len(bars); dropped > 0 {
		logger.Infof("[normalize] %s %s@%s: kept %d of %d records", src, p.Symbol, p.Interval, len(bars), len(recs))
	}

	return market.NewSeries(p.Symbol, p.Interval, src, sortUnique(bars)), nil
}

func (n *Normalizer) checkEnvelope(src market.Source, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return &provider.SchemaError{Source: src, Reason: "empty body"}
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return &provider.SchemaError{Source: src, Reason: "body is not JSON", Err: err}
	}
	if s := n.schemas[src]; s != nil {
		if err := s.Validate(doc); err != nil {
			return &provider.SchemaError{Source: src, Reason: "unexpected payload layout", Err: err}
		}
	}
	return nil
}

func toBar(r record, iv market.Interval) (market.Bar, error) {
	if r.tsErr != nil {
		return market.Bar{}, fmt.Errorf("timestamp: %w", r.tsErr)
	}
	if r.ts.IsZero() {
		return market.Bar{}, fmt.Errorf("timestamp: %w", errMissingField)
	}
	var b market.Bar
	b.Timestamp = iv.Align(r.ts)
	fields := []struct {
		name string
		in   gjson.Result
		out  *decimal.Decimal
	}{
		{"open", r.open, &b.Open},
		{"high", r.high, &b.High},
		{"low", r.low, &b.Low},
		{"close", r.close, &b.Close},
		{"volume", r.volume, &b.Volume},
	}
	for _, f := range fields {
		d, err := parseNumber(f.in)
		if err != nil {
			return market.Bar{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.out = d
	}
	if err := b.Validate(); err != nil {
		return market.Bar{}, err
	}
	return b, nil
}

// parseNumber accepts JSON numbers and numeric strings and rejects
// NaN and infinities.
func parseNumber(r gjson.Result) (decimal.Decimal, error) {
	var s string
	switch r.Type {
	case gjson.Number:
		s = r.Raw
	case gjson.String:
		s = strings.TrimSpace(r.Str)
	default:
		return decimal.Decimal{}, errMissingField
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not numeric: %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, fmt.Errorf("not finite: %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NewFromFloat(f), nil
	}
	return d, nil
}

// sortUnique orders bars ascending. For equal timestamps the bar that came
// later in the payload wins.
func sortUnique(bars []market.Bar) []market.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && out[len(out)-1].Timestamp.Equal(b.Timestamp) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
