// Package cache stores processed cycle datasets keyed by source file path.
package cache

import (
	"time"

	"github.com/kacperjurak/gocvcore"
)

// DefaultMaxAge is how long a cached dataset stays fresh unless configured otherwise.
const DefaultMaxAge = time.Hour

// Cache is a dataset store. Get reports a miss with (nil, false, nil).
type Cache interface {
	Get(key string) (*gocvcore.CycleDataset, bool, error)
	Put(key string, ds *gocvcore.CycleDataset) error
}

// Remover is implemented by caches that can drop entries.
type Remover interface {
	Remove(keys ...string) error
}

// Staleness decides whether an entry written at storedAt may still be served at now.
type Staleness interface {
	Stale(storedAt, now time.Time) bool
}

// MaxAge treats entries older than the duration as stale.
type MaxAge time.Duration

func (m MaxAge) Stale(storedAt, now time.Time) bool {
	return now.Sub(storedAt) > time.Duration(m)
}

type never struct{}

func (never) Stale(time.Time, time.Time) bool { return false }

// Never returns a policy under which entries never expire.
func Never() Staleness { return never{} }

// Clock returns the current time.
type Clock func() time.Time

func orDefaults(s Staleness, now Clock) (Staleness, Clock) {
	if s == nil {
		s = MaxAge(DefaultMaxAge)
	}
	if now == nil {
		now = time.Now
	}
	return s, now
}
