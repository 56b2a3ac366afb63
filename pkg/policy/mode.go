// Package policy holds the pure cache decisions used by the query engine:
// which cache mode is in effect, whether cached data is still within its
// lifetime, and whether a fetch can be skipped or a failure masked.
package policy

import (
	"fmt"
	"strings"
)

// CacheMode selects how a query balances cached data against the network.
// The zero value is not a valid mode; callers resolve it to a default.
type CacheMode int

const (
	// NetworkOnly always fetches and never persists the result.
	// Cache and stale lifetimes are ignored.
	NetworkOnly CacheMode = iota + 1
	// CacheOnly serves cached data whenever it exists and only fetches when the
	// cache is empty. Cache and stale lifetimes are ignored.
	CacheOnly
	// NetworkFirst always fetches and falls back to whatever is cached when
	// the fetch fails.
	NetworkFirst
	// CacheFirst serves fresh cached data without fetching and refreshes it
	// once it goes stale.
	CacheFirst
)

var modeNames = map[CacheMode]string{
	NetworkOnly:  "NETWORK_ONLY",
	CacheOnly:    "CACHE_ONLY",
	NetworkFirst: "NETWORK_FIRST",
	CacheFirst:   "CACHE_FIRST",
}

// String returns the canonical upper snake case name of the mode.
func (m CacheMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("CacheMode(%d)", int(m))
}

// Valid reports whether m is one of the four known modes.
func (m CacheMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseCacheMode parses a mode name. Matching ignores case and accepts '-'
// in place of '_', so "network-first" and "NETWORK_FIRST" are equivalent.
func ParseCacheMode(s string) (CacheMode, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for mode, name := range modeNames {
		if name == normalized {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown cache mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m CacheMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid cache mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *CacheMode) UnmarshalText(text []byte) error {
	mode, err := ParseCacheMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
