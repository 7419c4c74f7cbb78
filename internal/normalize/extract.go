package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketfeed/internal/provider"
)

const alphaVantageDefaultZone = "US/Eastern"

// extractAlphaVantage reads {"Meta Data": {...}, "Time Series (...)": {"<local time>": {"1. open": "..."}}}.
func extractAlphaVantage(body gjson.Result, _ provider.Payload) ([]record, error) {
	loc, err := alphaVantageZone(body.Get("Meta Data"))
	if err != nil {
		return nil, err
	}

	var series gjson.Result
	body.ForEach(func(k, v gjson.Result) bool {
		if strings.Contains(k.Str, "Time Series") {
			series = v
			return false
		}
		return true
	})
	if !series.Exists() {
		return nil, errors.New("no time series object")
	}

	var out []record
	series.ForEach(func(k, v gjson.Result) bool {
		r := record{}
		r.ts, r.tsErr = parseLocal(k.Str, loc)
		v.ForEach(func(fk, fv gjson.Result) bool {
			switch {
			case strings.HasSuffix(fk.Str, "open"):
				r.open = fv
			case strings.HasSuffix(fk.Str, "high"):
				r.high = fv
			case strings.HasSuffix(fk.Str, "low"):
				r.low = fv
			case strings.HasSuffix(fk.Str, "close") && !strings.Contains(fk.Str, "adjusted"):
				r.close = fv
			case strings.HasSuffix(fk.Str, "volume"):
				r.volume = fv
			}
			return true
		})
		out = append(out, r)
		return true
	})
	return out, nil
}

func alphaVantageZone(meta gjson.Result) (*time.Location, error) {
	name := alphaVantageDefaultZone
	meta.ForEach(func(k, v gjson.Result) bool {
		if strings.HasSuffix(k.Str, "Time Zone") && v.Str != "" {
			name = v.Str
			return false
		}
		return true
	})
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", name, err)
	}
	return loc, nil
}

func parseLocal(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{time.DateTime, "2006-01-02 15:04", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}

// extractPolygon reads {"results": [{"t": ms, "o": .., "h": .., "l": .., "c": .., "v": ..}]}.
func extractPolygon(body gjson.Result, _ provider.Payload) ([]record, error) {
	rows := body.Get("results").Array()
	out := make([]record, 0, len(rows))
	for _, row := range rows {
		r := record{
			open:   row.Get("o"),
			high:   row.Get("h"),
			low:    row.Get("l"),
			close:  row.Get("c"),
			volume: row.Get("v"),
		}
		r.ts, r.tsErr = epoch(row.Get("t"), time.Millisecond)
		out = append(out, r)
	}
	return out, nil
}

// extractBinance reads {"klines": [{"openTime": ms, "open": "..", ...}]}.
func extractBinance(body gjson.Result, _ provider.Payload) ([]record, error) {
	rows := body.Get("klines").Array()
	out := make([]record, 0, len(rows))
	for _, row := range rows {
		r := record{
			open:   row.Get("open"),
			high:   row.Get("high"),
			low:    row.Get("low"),
			close:  row.Get("close"),
			volume: row.Get("volume"),
		}
		r.ts, r.tsErr = epoch(row.Get("openTime"), time.Millisecond)
		out = append(out, r)
	}
	return out, nil
}

// extractYahoo reads the columnar chart layout. Nulls inside the quote
// columns become missing fields and drop their row.
func extractYahoo(body gjson.Result, _ provider.Payload) ([]record, error) {
	result := body.Get("chart.result.0")
	stamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	at := func(col []gjson.Result, i int) gjson.Result {
		if i < len(col) {
			return col[i]
		}
		return gjson.Result{}
	}
	out := make([]record, 0, len(stamps))
	for i, ts := range stamps {
		r := record{
			open:   at(opens, i),
			high:   at(highs, i),
			low:    at(lows, i),
			close:  at(closes, i),
			volume: at(volumes, i),
		}
		r.ts, r.tsErr = epoch(ts, time.Second)
		out = append(out, r)
	}
	return out, nil
}

func epoch(v gjson.Result, unit time.Duration) (time.Time, error) {
	if v.Type != gjson.Number {
		return time.Time{}, errMissingField
	}
	n := v.Int()
	if n <= 0 {
		return time.Time{}, fmt.Errorf("non-positive epoch %d", n)
	}
	return time.Unix(0, n*int64(unit)).UTC(), nil
}
