package binance_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
	"marketfeed/internal/provider/binance"
	"marketfeed/internal/provider/mock"
)

func config(ctrl *gomock.Controller) *mock.MockConfigGetter {
	cfg := mock.NewMockConfigGetter(ctrl)
	cfg.EXPECT().GetConfig(gomock.Any(), gomock.Any()).Return("").AnyTimes()
	return cfg
}

func client(t *testing.T, handler http.HandlerFunc) *binance.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := binance.New(config(gomock.NewController(t)), binance.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestExchangeSymbol(t *testing.T) {
	t.Parallel()

	require.Equal(t, "BTCUSDT", binance.ExchangeSymbol("BTC/USDT"))
	require.Equal(t, "ETHUSDT", binance.ExchangeSymbol("eth-usdt"))
	require.Equal(t, "SOLUSDT", binance.ExchangeSymbol("SOL_USDT"))
}

func TestFetch(t *testing.T) {
	t.Parallel()

	// Arrange
	c := client(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/klines", r.URL.Path)
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		require.Equal(t, "4h", r.URL.Query().Get("interval"))
		require.Equal(t, "1000", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `[[1710518400000,"67000.10","67500.00","66800.00","67250.55","1234.5678",1710532799999,"0",100,"0","0","0"]]`)
	})

	// Act
	p, err := c.Fetch(testContext(t), market.Request{Symbol: "BTC/USDT", Interval: market.Interval4h, Limit: 5000})

	// Assert: rows are re-encoded as objects
	require.NoError(t, err)
	require.Equal(t, market.SourceBinance, p.Source)
	require.Equal(t, "BTC/USDT", p.Symbol)

	var doc struct {
		Symbol string `json:"symbol"`
		Klines []struct {
			OpenTime int64  `json:"openTime"`
			Close    string `json:"close"`
			Trades   int64  `json:"trades"`
		} `json:"klines"`
	}
	require.NoError(t, json.Unmarshal(p.Body, &doc))
	require.Equal(t, "BTCUSDT", doc.Symbol)
	require.Len(t, doc.Klines, 1)
	require.Equal(t, int64(1710518400000), doc.Klines[0].OpenTime)
	require.Equal(t, "67250.55", doc.Klines[0].Close)
	require.Equal(t, int64(100), doc.Klines[0].Trades)
}

func TestFetch_Classification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		target any
	}{
		{"invalid symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, new(*provider.UnsupportedSymbolError)},
		{"weight", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too much request weight used."}`, new(*provider.RateLimitError)},
		{"bad key", http.StatusUnauthorized, `{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`, new(*provider.AuthError)},
		{"gateway", http.StatusBadGateway, `<html>bad gateway</html>`, new(*provider.TransientNetworkError)},
		{"empty", http.StatusOK, `[]`, new(*provider.UnsupportedSymbolError)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := client(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := c.Fetch(testContext(t), market.Request{Symbol: "NOPE", Interval: market.Interval1h, Limit: 10})
			require.ErrorAs(t, err, tc.target)
		})
	}
}

func TestDescriptor(t *testing.T) {
	t.Parallel()

	c, err := binance.New(config(gomock.NewController(t)), binance.Config{BaseURL: "https://binance.test/"})
	require.NoError(t, err)

	d := c.Descriptor()
	require.Equal(t, market.SourceBinance, d.Source)
	require.Equal(t, "https://binance.test", d.BaseURL)
	require.True(t, d.CredentialOptional)
	require.Positive(t, d.RateLimit.RequestsPerMinute)
}

// testContext returns a context that is canceled when the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
