package normalize_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"marketfeed/internal/market"
	"marketfeed/internal/normalize"
	"marketfeed/internal/provider"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func normalizer(t *testing.T) *normalize.Normalizer {
	t.Helper()
	n, err := normalize.New()
	require.NoError(t, err)
	return n
}

func payload(src market.Source, symbol string, iv market.Interval, body []byte) (provider.Payload, provider.Descriptor) {
	return provider.Payload{Source: src, Symbol: symbol, Interval: iv, Body: body, ReceivedAt: time.Now()},
		provider.Descriptor{Source: src}
}

// requireCanonical checks the invariants every normalized series must hold.
func requireCanonical(t *testing.T, s market.Series) {
	t.Helper()
	for i := 0; i < s.Len(); i++ {
		b := s.At(i)
		require.NoError(t, b.Validate())
		require.Equal(t, time.UTC, b.Timestamp.Location())
		require.True(t, b.Timestamp.Equal(s.Interval.Align(b.Timestamp)))
		if i > 0 {
			require.True(t, s.At(i-1).Timestamp.Before(b.Timestamp), "bars must be strictly ascending")
		}
	}
}

func TestNormalize_AlphaVantageIntraday(t *testing.T) {
	t.Parallel()

	// Arrange
	p, d := payload(market.SourceAlphaVantage, "IBM", market.Interval1h, fixture(t, "alpha_vantage_intraday.json"))

	// Act
	s, err := normalizer(t).Normalize(p, d)

	// Assert: the broken-ordering and NaN rows are dropped, times moved from US/Eastern to UTC
	require.NoError(t, err)
	requireCanonical(t, s)
	require.Equal(t, 2, s.Len())
	require.Equal(t, time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC), s.At(0).Timestamp)
	require.Equal(t, time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC), s.At(1).Timestamp)
	require.True(t, decimal.RequireFromString("191.1").Equal(s.At(1).Close))
	require.Equal(t, market.SourceAlphaVantage, s.Source)
	require.Equal(t, "IBM", s.Symbol)
}

func TestNormalize_AlphaVantageDaily(t *testing.T) {
	t.Parallel()

	p, d := payload(market.SourceAlphaVantage, "IBM", market.Interval1d, fixture(t, "alpha_vantage_daily.json"))

	s, err := normalizer(t).Normalize(p, d)

	require.NoError(t, err)
	requireCanonical(t, s)
	require.Equal(t, 2, s.Len())
	require.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), s.At(0).Timestamp)
	require.True(t, decimal.RequireFromString("8828184").Equal(s.At(1).Volume))
}

func TestNormalize_PolygonDedupesLastWins(t *testing.T) {
	t.Parallel()

	p, d := payload(market.SourcePolygon, "AAPL", market.Interval1d, fixture(t, "polygon_aggs.json"))

	s, err := normalizer(t).Normalize(p, d)

	// Assert: negative volume dropped, the later duplicate for Jan 8 replaces the earlier one
	require.NoError(t, err)
	requireCanonical(t, s)
	require.Equal(t, 2, s.Len())
	require.Equal(t, time.Date(2023, 1, 8, 0, 0, 0, 0, time.UTC), s.At(0).Timestamp)
	require.True(t, decimal.RequireFromString("127.5").Equal(s.At(0).Close))
	require.True(t, decimal.RequireFromString("130.465").Equal(s.At(1).Open))
}

func TestNormalize_Binance(t *testing.T) {
	t.Parallel()

	p, d := payload(market.SourceBinance, "BTC/USDT", market.Interval1h, fixture(t, "binance_klines.json"))

	s, err := normalizer(t).Normalize(p, d)

	require.NoError(t, err)
	requireCanonical(t, s)
	require.Equal(t, 2, s.Len())
	require.Equal(t, time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC), s.At(0).Timestamp)
	require.True(t, decimal.RequireFromString("1234.5678").Equal(s.At(0).Volume))
}

func TestNormalize_YahooDropsNulls(t *testing.T) {
	t.Parallel()

	p, d := payload(market.SourceYahoo, "MSFT", market.Interval1d, fixture(t, "yahoo_chart.json"))

	s, err := normalizer(t).Normalize(p, d)

	require.NoError(t, err)
	requireCanonical(t, s)
	require.Equal(t, 2, s.Len())
	require.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), s.At(0).Timestamp)
	require.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), s.At(1).Timestamp)
}

func TestNormalize_SchemaErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		src  market.Source
		body string
	}{
		"not json":            {market.SourcePolygon, `<html>oops</html>`},
		"empty body":          {market.SourceYahoo, ``},
		"polygon no results":  {market.SourcePolygon, `{"status":"OK"}`},
		"polygon bad results": {market.SourcePolygon, `{"results":{"t":1}}`},
		"av no meta":          {market.SourceAlphaVantage, `{"Time Series (Daily)":{}}`},
		"av no series":        {market.SourceAlphaVantage, `{"Meta Data":{},"Other":{}}`},
		"yahoo empty result":  {market.SourceYahoo, `{"chart":{"result":[],"error":null}}`},
		"binance no klines":   {market.SourceBinance, `{"klines":{"openTime":1}}`},
		"unknown source":      {market.SourceAuto, `{}`},
	}
	n := normalizer(t)
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, d := payload(tc.src, "X", market.Interval1d, []byte(tc.body))
			_, err := n.Normalize(p, d)

			var se *provider.SchemaError
			require.ErrorAs(t, err, &se)
		})
	}
}

func TestNormalize_AllRecordsInvalidYieldsEmptySeries(t *testing.T) {
	t.Parallel()

	body := `{"results":[{"t":1673240400000,"o":"x","h":1,"l":1,"c":1,"v":1},{"o":1,"h":1,"l":1,"c":1,"v":1}]}`
	p, d := payload(market.SourcePolygon, "AAPL", market.Interval1d, []byte(body))

	s, err := normalizer(t).Normalize(p, d)

	require.NoError(t, err)
	require.True(t, s.Empty())
}

func TestNormalize_OneBadRowDoesNotRejectBatch(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		src  market.Source
		body string
	}{
		"binance kline without openTime": {market.SourceBinance, `{"klines":[
			{"openTime":1710518400000,"open":"1","high":"2","low":"0.5","close":"1.5","volume":"10"},
			{"open":"1","high":"2","low":"0.5","close":"1.5","volume":"10"}]}`},
		"yahoo null timestamp": {market.SourceYahoo, `{"chart":{"result":[{"timestamp":[1710460800,null],
			"indicators":{"quote":[{"open":[1,1],"high":[2,2],"low":[0.5,0.5],"close":[1.5,1.5],"volume":[10,10]}]}}]}}`},
	}
	n := normalizer(t)
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			p, d := payload(tc.src, "X", market.Interval1d, []byte(tc.body))

			// Act
			s, err := n.Normalize(p, d)

			// Assert
			require.NoError(t, err)
			requireCanonical(t, s)
			require.Equal(t, 1, s.Len())
			require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), s.At(0).Timestamp)
		})
	}
}
