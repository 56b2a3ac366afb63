package query_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/illmade-knight/go-query/pkg/persist"
	"github.com/illmade-knight/go-query/pkg/query"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errNoInternet = errors.New("no internet")

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingFetcher returns results in order, repeating the last one, and
// counts its calls.
type countingFetcher struct {
	calls   atomic.Int32
	mu      sync.Mutex
	results []fetchResult
}

type fetchResult struct {
	value string
	err   error
}

func succeeds(value string) fetchResult { return fetchResult{value: value} }
func fails(err error) fetchResult       { return fetchResult{err: err} }

func newCountingFetcher(results ...fetchResult) *countingFetcher {
	return &countingFetcher{results: results}
}

func (f *countingFetcher) Fetch(_ context.Context) (string, error) {
	n := int(f.calls.Add(1))
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[len(f.results)-1]
	if n <= len(f.results) {
		r = f.results[n-1]
	}
	return r.value, r.err
}

func (f *countingFetcher) Calls() int {
	return int(f.calls.Load())
}

// flakyPersistor wraps an in-memory store with injectable failures.
type flakyPersistor struct {
	*persist.InMemoryPersistor
	getErr error
	setErr error
}

func (p *flakyPersistor) GetItem(ctx context.Context, key string) (string, bool, error) {
	if p.getErr != nil {
		return "", false, p.getErr
	}
	return p.InMemoryPersistor.GetItem(ctx, key)
}

func (p *flakyPersistor) SetItem(ctx context.Context, key, value string) error {
	if p.setErr != nil {
		return p.setErr
	}
	return p.InMemoryPersistor.SetItem(ctx, key, value)
}

func newTestClient(t *testing.T, cfg query.Config, opts ...query.ClientOption) *query.Client {
	t.Helper()
	c := query.NewClient(cfg, zerolog.Nop(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func waitIdle[T any](t *testing.T, q *query.Query[T]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
}

// assertSettled checks the flags every finished cycle must leave behind.
func assertSettled[T any](t *testing.T, q *query.Query[T]) {
	t.Helper()
	require.False(t, q.IsLoading().Get(), "isLoading should be false once settled")
	require.False(t, q.IsFetching().Get(), "isFetching should be false once settled")
}
