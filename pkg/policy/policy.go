package policy

import "time"

// IsCacheWithinLifetime reports whether persisted data may be loaded into
// memory or served as a failure fallback.
func IsCacheWithinLifetime(mode CacheMode, cacheTime Lifetime, lastFetchedAt, now time.Time) bool {
	switch mode {
	case CacheOnly:
		return true
	case CacheFirst:
		return cacheTime.Covers(lastFetchedAt, now)
	default:
		return false
	}
}

// IsDataFresh reports whether the last successful fetch is recent enough that
// a CacheFirst query can skip the network.
func IsDataFresh(staleTime Lifetime, lastFetchedAt, now time.Time) bool {
	return staleTime.Covers(lastFetchedAt, now)
}

// ShouldSkipFetch decides whether a refetch cycle can end without calling the
// fetcher.
func ShouldSkipFetch(mode CacheMode, hasData, isFresh bool) bool {
	switch mode {
	case CacheOnly:
		return hasData
	case CacheFirst:
		return hasData && isFresh
	default:
		return false
	}
}

// ShouldFallBackToCache decides whether a failed fetch is masked by the data
// already held, in which case no error is surfaced.
func ShouldFallBackToCache(mode CacheMode, hasData, withinLifetime bool) bool {
	switch mode {
	case CacheOnly, NetworkFirst:
		return hasData
	case CacheFirst:
		return hasData && withinLifetime
	default:
		return false
	}
}
