// Package windowstore maintains per-actor sliding windows of recent event
// timestamps and content fingerprints, used by rate/duplicate detection.
//
// Keys are opaque strings scoped by the caller (community/actor), plus a
// detector name. Entries older than the store's retention horizon are purged
// on every read and write, so memory use stays bounded without a background
// sweeper.
package windowstore

import (
	"context"
	"time"
)

// Entry is one recorded occurrence inside a window.
type Entry struct {
	Time time.Time
	// normalized-content hash, empty for purely rate-based windows
	Fingerprint string
}

type WindowStore interface {
	// Record appends an entry to the (key, detector) window.
	Record(ctx context.Context, key, detector string, e Entry) error
	// CountSince returns how many recorded entries have a timestamp at or
	// after the given instant.
	CountSince(ctx context.Context, key, detector string, since time.Time) (int, error)
	// CountMatchingSince is CountSince restricted to entries with the given
	// fingerprint.
	CountMatchingSince(ctx context.Context, key, detector, fingerprint string, since time.Time) (int, error)
	// PurgeExpired drops entries older than the given instant.
	PurgeExpired(ctx context.Context, key, detector string, before time.Time) error
}

func windowKey(key, detector string) string {
	return key + "/" + detector
}
