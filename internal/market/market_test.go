package market_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"marketfeed/internal/market"
)

func bar(ts time.Time, o, h, l, c, v string) market.Bar {
	return market.Bar{
		Timestamp: ts,
		Open:      decimal.RequireFromString(o),
		High:      decimal.RequireFromString(h),
		Low:       decimal.RequireFromString(l),
		Close:     decimal.RequireFromString(c),
		Volume:    decimal.RequireFromString(v),
	}
}

func TestParseInterval(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]market.Interval{
		"1m":  market.Interval1m,
		"1M":  market.Interval1M,
		"60m": market.Interval1h,
		"1wk": market.Interval1w,
		"1mo": market.Interval1M,
		" 4h": market.Interval4h,
	} {
		got, err := market.ParseInterval(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := market.ParseInterval("7m")
	require.Error(t, err)
}

func TestIntervalAlign(t *testing.T) {
	t.Parallel()

	// Arrange: a New York afternoon instant
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ts := time.Date(2024, 3, 15, 13, 47, 12, 0, ny)

	// Act + Assert: intraday truncation happens on the UTC instant
	require.Equal(t, time.Date(2024, 3, 15, 17, 45, 0, 0, time.UTC), market.Interval15m.Align(ts))
	require.Equal(t, time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC), market.Interval4h.Align(ts))

	// Assert: daily bars keep only the UTC date
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), market.Interval1d.Align(ts))
}

func TestIntervalAlignWeeksAndMonths(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		iv   market.Interval
		in   time.Time
		want time.Time
	}{
		"friday label to monday":       {market.Interval1w, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		"sunday belongs to prior week": {market.Interval1w, time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		"monday stays":                 {market.Interval1w, time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		"week across year end":         {market.Interval1w, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)},
		"month end label to first":     {market.Interval1M, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		"month uses the utc date":      {market.Interval1M, time.Date(2024, 3, 31, 22, 0, 0, 0, time.FixedZone("EST", -5*3600)), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := tc.iv.Align(tc.in)

			require.Equal(t, tc.want, got)
			require.Equal(t, got, tc.iv.Align(got))
		})
	}
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	src, err := market.ParseSource("ccxt")
	require.NoError(t, err)
	require.Equal(t, market.SourceBinance, src)

	src, err = market.ParseSource("YFinance")
	require.NoError(t, err)
	require.Equal(t, market.SourceYahoo, src)

	src, err = market.ParseSource("")
	require.NoError(t, err)
	require.Equal(t, market.SourceAuto, src)

	_, err = market.ParseSource("bloomberg")
	require.Error(t, err)
}

func TestBarValidate(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, bar(ts, "10", "12", "9", "11", "100").Validate())
	require.NoError(t, bar(ts, "10", "10", "10", "10", "0").Validate())

	require.ErrorIs(t, bar(ts, "10", "10.5", "9", "11", "1").Validate(), market.ErrBrokenOrdering)
	require.ErrorIs(t, bar(ts, "10", "12", "10.5", "11", "1").Validate(), market.ErrBrokenOrdering)
	require.ErrorIs(t, bar(ts, "10", "12", "9", "11", "-1").Validate(), market.ErrNegativeValue)
	require.ErrorIs(t, bar(time.Time{}, "10", "12", "9", "11", "1").Validate(), market.ErrZeroTimestamp)
}

func TestSeriesIsImmutable(t *testing.T) {
	t.Parallel()

	// Arrange
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	in := []market.Bar{bar(ts, "1", "2", "1", "2", "5")}
	s := market.NewSeries("AAPL", market.Interval1d, market.SourcePolygon, in)

	// Act: mutate both the input and the returned copy
	in[0].Close = decimal.NewFromInt(99)
	out := s.Bars()
	out[0].Close = decimal.NewFromInt(77)

	// Assert
	require.True(t, s.At(0).Close.Equal(decimal.NewFromInt(2)))
}

func TestSeriesTail(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []market.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, bar(base.Add(time.Duration(i)*time.Hour), "1", "1", "1", "1", "1"))
	}
	s := market.NewSeries("X", market.Interval1h, market.SourceBinance, bars)

	tail := s.Tail(2)
	require.Equal(t, 2, tail.Len())
	require.Equal(t, base.Add(3*time.Hour), tail.At(0).Timestamp)
	require.Equal(t, 5, s.Tail(10).Len())
	require.Equal(t, 5, s.Tail(0).Len())
}

func TestSeriesJSON(t *testing.T) {
	t.Parallel()

	// Arrange
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := market.NewSeries("AAPL", market.Interval1d, market.SourcePolygon, []market.Bar{bar(ts, "1.5", "2", "1", "2", "5")})

	// Act
	b, err := json.Marshal(s)
	require.NoError(t, err)
	var back market.Series
	require.NoError(t, json.Unmarshal(b, &back))

	// Assert
	require.Contains(t, string(b), `"symbol":"AAPL"`)
	require.Contains(t, string(b), `"open":"1.5"`)
	require.True(t, s.Equal(back))
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	ok := market.Request{Symbol: "AAPL", Interval: market.Interval1h, Limit: 100, Source: market.SourceAuto}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Limit = 0
	require.ErrorIs(t, bad.Validate(), market.ErrInvalidRequest)

	bad = ok
	bad.Symbol = " "
	require.ErrorIs(t, bad.Validate(), market.ErrInvalidRequest)

	bad = ok
	bad.Interval = "2h"
	require.ErrorIs(t, bad.Validate(), market.ErrInvalidRequest)
}
