package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/httpx"
)

func TestDoFillsDefaultHeaders(t *testing.T) {
	t.Parallel()

	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, httpx.DefaultUserAgent, r.Header.Get("User-Agent"))
		require.Equal(t, "yes", r.Header.Get("X-Trace"))
		require.Equal(t, "mine", r.Header.Get("X-Keep"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := httpx.New(5 * time.Second)
	c.Headers = map[string]string{"X-Trace": "yes", "X-Keep": "default"}

	req, err := http.NewRequestWithContext(testContext(t), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("X-Keep", "mine")

	// Act
	res, err := c.Do(req)

	// Assert
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	require.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestNewTransportFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	tr := httpx.NewTransport(httpx.Pool{})
	require.Equal(t, httpx.DefaultPool().MaxIdleConns, tr.MaxIdleConns)
}

// testContext returns a context that is canceled when the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
