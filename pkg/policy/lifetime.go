package policy

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Lifetime is a cache or stale window. Forever disables expiry.
type Lifetime time.Duration

// Forever is the +infinity lifetime.
const Forever Lifetime = math.MaxInt64

// IsForever reports whether l never expires.
func (l Lifetime) IsForever() bool {
	return l == Forever
}

// Covers reports whether now still falls inside the window that started at
// lastFetchedAt. A Forever lifetime covers every instant.
func (l Lifetime) Covers(lastFetchedAt, now time.Time) bool {
	if l.IsForever() {
		return true
	}
	return now.UnixMilli() < lastFetchedAt.UnixMilli()+time.Duration(l).Milliseconds()
}

// String formats the lifetime as a Go duration, or "forever".
func (l Lifetime) String() string {
	if l.IsForever() {
		return "forever"
	}
	return time.Duration(l).String()
}

// ParseLifetime accepts any time.ParseDuration input plus "forever",
// "infinite" and "inf". Negative durations are rejected.
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forever", "infinite", "inf":
		return Forever, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse lifetime %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("lifetime %q must not be negative", s)
	}
	return Lifetime(d), nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	parsed, err := ParseLifetime(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
