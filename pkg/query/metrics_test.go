package query

import (
	"context"
	"errors"
	"testing"

	"github.com/illmade-knight/go-query/pkg/policy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// Arrange
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	c := NewClient(DefaultConfig(), zerolog.Nop(), WithMetrics(m))
	t.Cleanup(func() { _ = c.Close(ctx) })
	calls := 0
	fetcher := func(context.Context) (string, error) {
		calls++
		if calls == 1 || calls == 4 {
			return "", errors.New("no internet")
		}
		return "Hello World", nil
	}
	q, err := New[string](ctx, c, Key{"metrics"}, fetcher,
		WithCacheMode(policy.CacheFirst),
		WithCacheTime(policy.Forever),
		WithRetryCount(2),
		WithRefetchOnLaunch(false))
	require.NoError(t, err)

	// Act: retry then success, then skip, then a masked failure.
	require.NoError(t, q.Fetch(ctx))
	q.settings.staleTime = policy.Forever
	require.NoError(t, q.Fetch(ctx))
	q.settings.staleTime = 0
	q.settings.retryCount = 1
	calls = 3
	require.NoError(t, q.Fetch(ctx))

	// Assert
	mode := policy.CacheFirst.String()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cyclesTotal.WithLabelValues(mode, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cyclesTotal.WithLabelValues(mode, OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cyclesTotal.WithLabelValues(mode, OutcomeFallback)))
	assert.Zero(t, testutil.ToFloat64(m.cyclesTotal.WithLabelValues(mode, OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues(mode)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.fetchDuration), "one series per mode")
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.recordCycle("CACHE_FIRST", OutcomeSuccess)
		m.recordFetchDuration("CACHE_FIRST", 0)
		m.recordRetry("CACHE_FIRST")
		m.recordPersistenceError("set")
	})
}
