package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/illmade-knight/go-query/pkg/persist"
	"github.com/illmade-knight/go-query/pkg/policy"
	"github.com/rs/zerolog"
)

// Client holds the defaults and the shared Persistor for the queries it
// creates. It also owns the context every background fetch cycle runs under.
type Client struct {
	config    Config
	persistor persist.Persistor
	root      zerolog.Logger
	logger    zerolog.Logger
	now       func() time.Time
	metrics   *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClock replaces time.Now; tests use it to move time forward.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// WithMetrics records fetch cycles on m.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a Client. A nil cfg.Persistor is replaced by an
// in-memory store and an unset cache mode by CacheFirst.
func NewClient(cfg Config, logger zerolog.Logger, opts ...ClientOption) *Client {
	if cfg.Persistor == nil {
		cfg.Persistor = persist.NewInMemoryPersistor()
	}
	if !cfg.CacheMode.Valid() {
		cfg.CacheMode = policy.CacheFirst
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:    cfg,
		persistor: cfg.Persistor,
		root:      logger,
		logger:    logger.With().Str("component", "QueryClient").Logger(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the client's resolved defaults.
func (c *Client) Config() Config {
	return c.config
}

// Persistor returns the shared Persistor.
func (c *Client) Persistor() persist.Persistor {
	return c.persistor
}

// ClearCache removes every entry from the shared Persistor. Queries already
// created keep the data they hold in memory.
func (c *Client) ClearCache(ctx context.Context) error {
	if err := c.persistor.Clear(ctx); err != nil {
		c.metrics.recordPersistenceError("clear")
		return &PersistenceError{Op: "clear", Err: err}
	}
	c.logger.Info().Msg("Query cache cleared.")
	return nil
}

// Close cancels in-flight background cycles and waits for them to end, or for
// ctx to expire. It does not close the Persistor.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info().Msg("Shutting down query client...")
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info().Msg("Query client shut down gracefully.")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for background fetches: %w", ctx.Err())
	}
}

// spawn runs fn on a new goroutine tracked by Close. It reports false, and
// does not run fn, once Close has been called.
func (c *Client) spawn(fn func(ctx context.Context)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
	return true
}

func (c *Client) resolve(opts []Option) settings {
	s := settings{
		mode:            c.config.CacheMode,
		cacheTime:       c.config.CacheTime,
		staleTime:       c.config.StaleTime,
		retryCount:      c.config.RetryCount,
		enabled:         true,
		refetchOnLaunch: c.config.RefetchOnLaunch,
		persistor:       c.persistor,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if !s.mode.Valid() {
		s.mode = policy.CacheFirst
	}
	if s.persistor == nil {
		s.persistor = c.persistor
	}
	return s
}
