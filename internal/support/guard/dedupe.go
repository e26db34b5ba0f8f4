// internal/support/guard/dedupe.go
package guard

import (
	"context"
	"strings"
	"time"
)

// messagePrefixLen bounds the dedup key so long messages with identical
// openings still collide.
const messagePrefixLen = 64

// Deduper rejects repeat submissions of the same message from the same
// client within a TTL.
type Deduper struct {
	store Store
	ttl   time.Duration
}

func NewDeduper(store Store, ttl time.Duration) *Deduper {
	return &Deduper{store: store, ttl: ttl}
}

// Check records the submission and reports whether it is fresh. A repeat key
// inside the TTL returns fresh=false. Store failures fail open.
func (d *Deduper) Check(ctx context.Context, appSlug, clientID, message string) (bool, error) {
	fresh, err := d.store.SetIfAbsent(ctx, DedupeKey(appSlug, clientID, message), d.ttl)
	if err != nil {
		return true, err
	}
	return fresh, nil
}

// DedupeKey derives the suppression key from app, client identity, and a
// truncated lowercase whitespace-stripped message prefix.
func DedupeKey(appSlug, clientID, message string) string {
	prefix := strings.ToLower(strings.Join(strings.Fields(message), ""))
	if len(prefix) > messagePrefixLen {
		prefix = prefix[:messagePrefixLen]
	}
	if clientID == "" {
		clientID = GlobalBucket
	}
	return "dedup:" + appSlug + ":" + clientID + ":" + prefix
}
