package windowstore

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemWindowStore keeps windows in process memory. Each (key, detector)
// window has its own lock, so actors never contend with each other.
type MemWindowStore struct {
	retention time.Duration
	windows   *xsync.MapOf[string, *window]
}

var _ WindowStore = (*MemWindowStore)(nil)

type window struct {
	mu sync.Mutex
	// ordered by Time ascending; per-actor event ordering is guaranteed
	// upstream, so appends keep this sorted
	entries []Entry
}

// NewMemWindowStore creates a store which retains entries for at most the
// given duration. Retention must cover the longest configured detector
// window.
func NewMemWindowStore(retention time.Duration) *MemWindowStore {
	return &MemWindowStore{
		retention: retention,
		windows:   xsync.NewMapOf[string, *window](),
	}
}

func (s *MemWindowStore) get(key, detector string) *window {
	w, _ := s.windows.LoadOrCompute(windowKey(key, detector), func() *window {
		return &window{}
	})
	return w
}

// caller must hold w.mu
func (w *window) prune(before time.Time) {
	i := 0
	for i < len(w.entries) && w.entries[i].Time.Before(before) {
		i++
	}
	if i > 0 {
		w.entries = append(w.entries[:0], w.entries[i:]...)
	}
}

func (s *MemWindowStore) Record(ctx context.Context, key, detector string, e Entry) error {
	w := s.get(key, detector)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(e.Time.Add(-s.retention))
	// keep timestamps monotonic within the window even if the caller's
	// clock stutters
	if n := len(w.entries); n > 0 && e.Time.Before(w.entries[n-1].Time) {
		e.Time = w.entries[n-1].Time
	}
	w.entries = append(w.entries, e)
	return nil
}

func (s *MemWindowStore) CountSince(ctx context.Context, key, detector string, since time.Time) (int, error) {
	w := s.get(key, detector)
	w.mu.Lock()
	defer w.mu.Unlock()
	count := 0
	for i := len(w.entries) - 1; i >= 0; i-- {
		if w.entries[i].Time.Before(since) {
			break
		}
		count++
	}
	return count, nil
}

func (s *MemWindowStore) CountMatchingSince(ctx context.Context, key, detector, fingerprint string, since time.Time) (int, error) {
	w := s.get(key, detector)
	w.mu.Lock()
	defer w.mu.Unlock()
	count := 0
	for i := len(w.entries) - 1; i >= 0; i-- {
		if w.entries[i].Time.Before(since) {
			break
		}
		if w.entries[i].Fingerprint == fingerprint {
			count++
		}
	}
	return count, nil
}

func (s *MemWindowStore) PurgeExpired(ctx context.Context, key, detector string, before time.Time) error {
	w := s.get(key, detector)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(before)
	return nil
}
