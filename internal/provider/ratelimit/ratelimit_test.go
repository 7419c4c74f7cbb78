package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
	"marketfeed/internal/provider/mock"
	"marketfeed/internal/provider/ratelimit"
)

var req = market.Request{Symbol: "AAPL", Interval: market.Interval1d, Limit: 10, Source: market.SourcePolygon}

func adapter(ctrl *gomock.Controller, rl provider.RateLimit) *mock.MockAdapter {
	a := mock.NewMockAdapter(ctrl)
	a.EXPECT().Descriptor().Return(provider.Descriptor{Source: market.SourcePolygon, RateLimit: rl}).AnyTimes()
	return a
}

func TestWrap_NoBudgetReturnsAdapter(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	a := adapter(ctrl, provider.RateLimit{})

	require.Same(t, a, ratelimit.Wrap(a))
}

func TestWrap_MinIntervalSpacesCalls(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	a := adapter(ctrl, provider.RateLimit{MinInterval: 40 * time.Millisecond})
	a.EXPECT().Fetch(gomock.Any(), req).Return(provider.Payload{}, nil).Times(3)
	limited := ratelimit.Wrap(a)

	// Act
	start := time.Now()
	for j := 0; j < 3; j++ {
		_, err := limited.Fetch(testContext(t), req)
		require.NoError(t, err)
	}

	// Assert
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestWrap_TokenBucketAllowsBurst(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	a := adapter(ctrl, provider.RateLimit{RequestsPerMinute: 60, Burst: 3})
	a.EXPECT().Fetch(gomock.Any(), req).Return(provider.Payload{}, nil).Times(3)
	limited := ratelimit.Wrap(a)

	start := time.Now()
	for j := 0; j < 3; j++ {
		_, err := limited.Fetch(testContext(t), req)
		require.NoError(t, err)
	}

	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWrap_RateLimitErrorPausesLimiter(t *testing.T) {
	t.Parallel()

	// Arrange: the first call is told to wait 100ms
	ctrl := gomock.NewController(t)
	a := adapter(ctrl, provider.RateLimit{RequestsPerMinute: 6000, Burst: 5})
	gomock.InOrder(
		a.EXPECT().Fetch(gomock.Any(), req).Return(provider.Payload{}, &provider.RateLimitError{Source: market.SourcePolygon, RetryAfter: 100 * time.Millisecond}),
		a.EXPECT().Fetch(gomock.Any(), req).Return(provider.Payload{}, nil),
	)
	limited := ratelimit.Wrap(a)

	// Act
	_, err := limited.Fetch(testContext(t), req)
	var rl *provider.RateLimitError
	require.ErrorAs(t, err, &rl)

	start := time.Now()
	_, err = limited.Fetch(testContext(t), req)

	// Assert
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestWrap_CanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	a := adapter(ctrl, provider.RateLimit{MinInterval: time.Hour})
	a.EXPECT().Fetch(gomock.Any(), req).Return(provider.Payload{}, nil).Times(1)
	limited := ratelimit.Wrap(a)

	_, err := limited.Fetch(testContext(t), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(testContext(t), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Fetch(ctx, req)

	var tn *provider.TransientNetworkError
	require.ErrorAs(t, err, &tn)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// testContext returns a context that is canceled when the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
