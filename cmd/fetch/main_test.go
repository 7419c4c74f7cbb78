package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/market"
)

func TestOptionsParse(t *testing.T) {
	t.Parallel()

	req, sv, err := options{symbol: "BTC/USDT", interval: "60m", limit: 10, source: "ccxt", format: "csv"}.parse()

	require.NoError(t, err)
	require.Equal(t, market.Request{Symbol: "BTC/USDT", Interval: market.Interval1h, Limit: 10, Source: market.SourceBinance}, req)
	require.Equal(t, "csv", sv.Extension())
}

func TestOptionsParse_Errors(t *testing.T) {
	t.Parallel()

	base := options{symbol: "AAPL", interval: "1d", limit: 10, source: "auto", format: "json"}
	tests := map[string]func(o *options){
		"bad interval":       func(o *options) { o.interval = "7m" },
		"bad source":         func(o *options) { o.source = "bloomberg" },
		"raw without source": func(o *options) { o.raw = true },
		"zero limit":         func(o *options) { o.limit = 0 },
		"bad format":         func(o *options) { o.format = "xml" },
		"parquet to stdout":  func(o *options) { o.format = "parquet" },
	}
	for name, mutate := range tests {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			o := base
			mutate(&o)
			_, _, err := o.parse()
			require.Error(t, err)
		})
	}
}

func TestRootCmdRequiresSymbol(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--interval", "1d"})

	require.Error(t, cmd.Execute())
}
