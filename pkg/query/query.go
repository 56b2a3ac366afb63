// Package query decides, for one key and one fetcher, when to serve cached
// data and when to call the network, retries failed fetches, and keeps the
// persisted value and its last-fetch timestamp in step with what was served.
//
// State is exposed as observables. Their subscriber callbacks run
// synchronously on the fetch goroutine and must not call back into the same
// Query; use Wait, or hand off to another goroutine.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-query/pkg/observable"
	"github.com/illmade-knight/go-query/pkg/persist"
	"github.com/illmade-knight/go-query/pkg/policy"
	"github.com/illmade-knight/go-query/pkg/retry"
	"github.com/rs/zerolog"
)

// Fetcher produces the value for a query. It may be called many times.
type Fetcher[T any] func(ctx context.Context) (T, error)

var timestampCodec = persist.JSONCodec[int64]{}

// Query is the cache engine for one key. At most one fetch cycle runs at a
// time; Refetch and Invalidate calls made while one is running are dropped.
type Query[T any] struct {
	client     *Client
	settings   settings
	storageKey string
	timeKey    string
	fetcher    Fetcher[T]
	codec      persist.Codec[T]
	logger     zerolog.Logger

	mu            sync.Mutex
	fetching      bool
	done          chan struct{}
	lastFetchedAt time.Time

	data       *observable.Value[*T]
	err        *observable.Value[error]
	isLoading  *observable.Value[bool]
	isFetching *observable.Value[bool]
}

// New creates a query whose values are stored as JSON.
func New[T any](ctx context.Context, c *Client, key Key, fetcher Fetcher[T], opts ...Option) (*Query[T], error) {
	return NewWithCodec[T](ctx, c, key, fetcher, persist.JSONCodec[T]{}, opts...)
}

// NewWithCodec creates a query that stores values with codec.
//
// Creation reads the persisted timestamp and, if the cache is still within
// its lifetime, the persisted value; otherwise the stale value entry is
// deleted. Persistor failures are returned. If the query is enabled and
// refetches on launch, the first fetch cycle starts in the background before
// NewWithCodec returns.
func NewWithCodec[T any](ctx context.Context, c *Client, key Key, fetcher Fetcher[T], codec persist.Codec[T], opts ...Option) (*Query[T], error) {
	if c == nil {
		return nil, errors.New("query client cannot be nil")
	}
	if fetcher == nil {
		return nil, errors.New("query fetcher cannot be nil")
	}

	s := c.resolve(opts)
	storageKey := StorageKey(key)
	q := &Query[T]{
		client:     c,
		settings:   s,
		storageKey: storageKey,
		timeKey:    timestampKey(storageKey),
		fetcher:    fetcher,
		codec:      codec,
		logger: c.root.With().
			Str("component", "Query").
			Str("query_id", uuid.NewString()).
			Str("storage_key", storageKey).
			Str("mode", s.mode.String()).
			Logger(),
	}

	now := c.now()
	q.lastFetchedAt = now
	millis, ok, err := persist.GetObject(ctx, s.persistor, timestampCodec, q.timeKey)
	if err := q.readFailure(q.timeKey, err); err != nil {
		return nil, err
	}
	if ok {
		q.lastFetchedAt = time.UnixMilli(millis)
	}

	var initial *T
	if policy.IsCacheWithinLifetime(s.mode, s.cacheTime, q.lastFetchedAt, now) {
		value, ok, err := persist.GetObject(ctx, s.persistor, codec, storageKey)
		if err := q.readFailure(storageKey, err); err != nil {
			return nil, err
		}
		if ok {
			initial = &value
			q.logger.Debug().Msg("Loaded cached value.")
		}
	} else if err := s.persistor.RemoveItem(ctx, storageKey); err != nil {
		return nil, q.persistenceFailure("remove", storageKey, err)
	}

	q.data = observable.New(initial)
	q.err = observable.New[error](nil)
	q.isLoading = observable.New(false)
	q.isFetching = observable.New(false)

	if s.enabled && s.refetchOnLaunch {
		q.isLoading.Set(true)
		q.Refetch()
	}
	return q, nil
}

// readFailure maps a GetObject error. Decode failures are a cache miss.
func (q *Query[T]) readFailure(key string, err error) error {
	if err == nil {
		return nil
	}
	var decodeErr *persist.DecodeError
	if errors.As(err, &decodeErr) {
		q.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry.")
		return nil
	}
	return q.persistenceFailure("get", key, err)
}

func (q *Query[T]) persistenceFailure(op, key string, err error) error {
	q.client.metrics.recordPersistenceError(op)
	q.logger.Error().Err(err).Str("op", op).Str("key", key).Msg("Persistor failure.")
	return &PersistenceError{Op: op, Key: key, Err: err}
}

// Refetch starts a fetch cycle in the background. It is a no-op when the
// query is disabled, a cycle is already running or the client is closed.
func (q *Query[T]) Refetch() {
	if !q.settings.enabled || !q.begin() {
		return
	}
	started := q.client.spawn(func(ctx context.Context) {
		// Failures are logged inside the cycle.
		_ = q.cycle(ctx, false)
	})
	if !started {
		q.logger.Debug().Msg("Client closed, refetch dropped.")
		q.finish()
	}
}

// Fetch runs a fetch cycle on the calling goroutine and returns any Persistor
// failure. Fetch failures are published on Err, not returned. It returns nil
// without doing anything when the query is disabled or a cycle is running.
func (q *Query[T]) Fetch(ctx context.Context) error {
	if !q.settings.enabled || !q.begin() {
		return nil
	}
	return q.cycle(ctx, false)
}

// Invalidate drops the held data, removes the persisted value and fetches
// afresh in the background. If a cycle is already running only the in-memory
// data is dropped.
func (q *Query[T]) Invalidate() {
	if !q.settings.enabled {
		return
	}
	claimed := q.begin()
	q.data.Set(nil)
	if !claimed {
		return
	}
	started := q.client.spawn(func(ctx context.Context) {
		_ = q.cycle(ctx, true)
	})
	if !started {
		q.logger.Debug().Msg("Client closed, invalidate fetch dropped.")
		q.finish()
	}
}

// InvalidateWait is Invalidate on the calling goroutine.
func (q *Query[T]) InvalidateWait(ctx context.Context) error {
	if !q.settings.enabled {
		return nil
	}
	claimed := q.begin()
	q.data.Set(nil)
	if !claimed {
		return nil
	}
	return q.cycle(ctx, true)
}

// Wait blocks until the running cycle, if any, has finished.
func (q *Query[T]) Wait(ctx context.Context) error {
	q.mu.Lock()
	fetching, done := q.fetching, q.done
	q.mu.Unlock()
	if !fetching {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin claims the single in-flight slot.
func (q *Query[T]) begin() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fetching {
		return false
	}
	q.fetching = true
	q.done = make(chan struct{})
	q.isFetching.Set(true)
	return true
}

// finish releases the slot after every state change of the cycle.
func (q *Query[T]) finish() {
	if q.isLoading.Get() {
		q.isLoading.Set(false)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fetching = false
	q.isFetching.Set(false)
	close(q.done)
}

func (q *Query[T]) lastFetched() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastFetchedAt
}

func (q *Query[T]) setLastFetched(t time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastFetchedAt = t
}

// cycle is one fetch cycle. The caller must hold the slot from begin.
func (q *Query[T]) cycle(ctx context.Context, purge bool) error {
	defer q.finish()
	s := q.settings
	mode := s.mode.String()

	if purge {
		if err := s.persistor.RemoveItem(ctx, q.storageKey); err != nil {
			return q.persistenceFailure("remove", q.storageKey, err)
		}
	}

	fresh := policy.IsDataFresh(s.staleTime, q.lastFetched(), q.client.now())
	if policy.ShouldSkipFetch(s.mode, q.data.Get() != nil, fresh) {
		q.logger.Debug().Msg("Serving cached data, fetch skipped.")
		q.client.metrics.recordCycle(mode, OutcomeSkipped)
		return nil
	}

	if q.err.Get() != nil {
		q.err.Set(nil)
	}

	start := time.Now()
	value, err := retry.Run(ctx, s.retryCount, func(ctx context.Context) (T, error) {
		return q.fetcher(ctx)
	}, retry.WithNotify(func(attempt int, err error, wait time.Duration) {
		q.client.metrics.recordRetry(mode)
		q.logger.Debug().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("Fetch attempt failed, retrying.")
	}))
	q.client.metrics.recordFetchDuration(mode, time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			q.logger.Debug().Err(err).Msg("Fetch cancelled.")
			return err
		}
		q.settle(err)
		return nil
	}

	q.data.Set(&value)
	q.client.metrics.recordCycle(mode, OutcomeSuccess)
	q.logger.Debug().Msg("Fetch succeeded.")

	if s.mode == policy.NetworkOnly {
		return nil
	}

	fetchedAt := q.client.now()
	q.setLastFetched(fetchedAt)
	if err := persist.SetObject(ctx, s.persistor, q.codec, q.storageKey, &value); err != nil {
		return q.persistenceFailure("set", q.storageKey, err)
	}
	millis := fetchedAt.UnixMilli()
	if err := persist.SetObject(ctx, s.persistor, timestampCodec, q.timeKey, &millis); err != nil {
		return q.persistenceFailure("set", q.timeKey, err)
	}
	return nil
}

// settle applies an exhausted fetch failure: either the held data keeps
// being served, or it is dropped and the failure published.
func (q *Query[T]) settle(err error) {
	s := q.settings
	mode := s.mode.String()
	within := policy.IsCacheWithinLifetime(s.mode, s.cacheTime, q.lastFetched(), q.client.now())
	if policy.ShouldFallBackToCache(s.mode, q.data.Get() != nil, within) {
		q.logger.Warn().Err(err).Msg("Fetch failed, serving cached data.")
		q.client.metrics.recordCycle(mode, OutcomeFallback)
		return
	}

	q.data.Set(nil)
	q.err.Set(&FetchError{StorageKey: q.storageKey, Err: err})
	q.client.metrics.recordCycle(mode, OutcomeFailure)
	q.logger.Warn().Err(err).Msg("Fetch failed with no cached data to serve.")
}

// Data is the last known value; nil means absent.
func (q *Query[T]) Data() observable.Reader[*T] {
	return q.data
}

// Err is the last unmasked fetch failure, a *FetchError, or nil.
func (q *Query[T]) Err() observable.Reader[error] {
	return q.err
}

// IsLoading is true only while the first fetch cycle after creation runs.
func (q *Query[T]) IsLoading() observable.Reader[bool] {
	return q.isLoading
}

// IsFetching is true while any fetch cycle runs.
func (q *Query[T]) IsFetching() observable.Reader[bool] {
	return q.isFetching
}

// Value returns a copy of the held data and whether there is any.
func (q *Query[T]) Value() (T, bool) {
	if v := q.data.Get(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

// StorageKey is the persistor key of the cached value.
func (q *Query[T]) StorageKey() string {
	return q.storageKey
}

// LastFetchedAt is the time of the last successful persisted fetch, or the
// creation time if none was recorded.
func (q *Query[T]) LastFetchedAt() time.Time {
	return q.lastFetched()
}

// String identifies the query in logs.
func (q *Query[T]) String() string {
	return fmt.Sprintf("Query(%s, %s)", q.storageKey, q.settings.mode)
}
