// Package cache implements the read-through cache behind the aggregate
// insight views. Entries carry their own expiry so an expired value can still
// be served, marked stale, when recomputing it fails.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an insight view is served without recomputing.
const DefaultTTL = 30 * time.Second

// staleRetention bounds how long an expired entry is kept around as a
// fallback value.
const staleRetention = time.Hour

type Entry struct {
	Value     json.RawMessage `json:"value"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Store is a key/value backend. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	// Expire marks the entries under keys as expired at the given time. The
	// values stay readable as stale fallbacks; missing keys are ignored.
	Expire(ctx context.Context, at time.Time, keys ...string) error
}

// Key builds a tenant-scoped cache key: insights:<view>:<storeID>[:<part>...].
func Key(view string, storeID uuid.UUID, parts ...string) string {
	var b strings.Builder
	b.WriteString("insights:")
	b.WriteString(view)
	b.WriteByte(':')
	b.WriteString(storeID.String())
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
