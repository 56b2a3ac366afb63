package query

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/illmade-knight/go-query/pkg/persist"
	"github.com/illmade-knight/go-query/pkg/policy"
)

// Config holds the defaults a Client hands to every query it creates.
type Config struct {
	CacheMode       policy.CacheMode `env:"CACHE_MODE" envDefault:"CACHE_FIRST"`
	CacheTime       policy.Lifetime  `env:"CACHE_TIME" envDefault:"0s"`
	StaleTime       policy.Lifetime  `env:"STALE_TIME" envDefault:"0s"`
	RetryCount      int              `env:"RETRY_COUNT" envDefault:"0"`
	RefetchOnLaunch bool             `env:"REFETCH_ON_LAUNCH" envDefault:"true"`
	// Persistor is shared by every query. Nil selects an in-memory store.
	Persistor persist.Persistor `env:"-"`
}

// DefaultConfig returns CacheFirst with zero cache and stale time, no
// retries, and a fetch on launch.
func DefaultConfig() Config {
	return Config{
		CacheMode:       policy.CacheFirst,
		RefetchOnLaunch: true,
	}
}

// LoadConfig reads a Config from environment variables, each name prefixed
// with prefix (for example "QUERY_" gives QUERY_CACHE_MODE). The Persistor
// is left nil.
func LoadConfig(prefix string) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// settings is the resolved per-query configuration.
type settings struct {
	mode            policy.CacheMode
	cacheTime       policy.Lifetime
	staleTime       policy.Lifetime
	retryCount      int
	enabled         bool
	refetchOnLaunch bool
	persistor       persist.Persistor
}

// Option overrides one client default for a single query.
type Option func(*settings)

// WithCacheMode sets the cache mode.
func WithCacheMode(mode policy.CacheMode) Option {
	return func(s *settings) {
		s.mode = mode
	}
}

// WithCacheTime sets how long persisted data stays eligible for use.
func WithCacheTime(l policy.Lifetime) Option {
	return func(s *settings) {
		s.cacheTime = l
	}
}

// WithStaleTime sets how long data counts as fresh.
func WithStaleTime(l policy.Lifetime) Option {
	return func(s *settings) {
		s.staleTime = l
	}
}

// WithRetryCount sets the number of fetch attempts. n <= 0 means one.
func WithRetryCount(n int) Option {
	return func(s *settings) {
		s.retryCount = n
	}
}

// WithEnabled turns refetch and invalidate on or off.
func WithEnabled(enabled bool) Option {
	return func(s *settings) {
		s.enabled = enabled
	}
}

// WithRefetchOnLaunch controls whether creating the query starts a fetch.
func WithRefetchOnLaunch(refetch bool) Option {
	return func(s *settings) {
		s.refetchOnLaunch = refetch
	}
}

// WithPersistor overrides the client's shared persistor.
func WithPersistor(p persist.Persistor) Option {
	return func(s *settings) {
		s.persistor = p
	}
}
