// Package history keeps the recently visited documents: at most MaxEntries,
// one entry per document, most recent first.
//
// The ordering rules are exported as pure functions so the server applies
// exactly the same rule when it persists visits.
package history

import (
	"slices"
	"sync"
	"time"

	"docsync/internal/document/model"
	"docsync/internal/notifier"
)

const MaxEntries = 10

// Record removes any entry for e.ID, puts e in front and truncates to limit.
// The input slice is not modified.
func Record(entries []model.HistoryEntry, e model.HistoryEntry, limit int) []model.HistoryEntry {
	if limit <= 0 {
		limit = MaxEntries
	}
	out := make([]model.HistoryEntry, 0, min(len(entries)+1, limit))
	out = append(out, e)
	for _, existing := range entries {
		if len(out) == limit {
			break
		}
		if existing.ID != e.ID {
			out = append(out, existing)
		}
	}
	return out
}

// Dedupe drops later entries whose id was already seen.
func Dedupe(entries []model.HistoryEntry) []model.HistoryEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]model.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Order sorts entries in place: selectedID first, the rest by descending
// timestamp. Equal timestamps keep their relative order.
func Order(entries []model.HistoryEntry, selectedID string) {
	slices.SortStableFunc(entries, func(a, b model.HistoryEntry) int {
		if selectedID != "" {
			if a.ID == selectedID && b.ID != selectedID {
				return -1
			}
			if b.ID == selectedID && a.ID != selectedID {
				return 1
			}
		}
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
}

// Clock returns milliseconds since epoch.
type Clock func() int64

func WallClock() int64 {
	return time.Now().UnixMilli()
}

// Cache is the client-side history view. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries []model.HistoryEntry
	limit   int
	clock   Clock
	last    int64
}

func NewCache(limit int, clock Clock) *Cache {
	if limit <= 0 {
		limit = MaxEntries
	}
	if clock == nil {
		clock = WallClock
	}
	return &Cache{limit: limit, clock: clock}
}

// RecordVisit stores a visit stamped with a timestamp strictly greater than
// any previous write from this cache.
func (c *Cache) RecordVisit(id, title string) model.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.clock()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts

	e := model.HistoryEntry{ID: id, Title: title, Timestamp: ts}
	c.entries = Record(c.entries, e, c.limit)
	return e
}

// Load replaces the cache with entries fetched from history persistence.
func (c *Cache) Load(entries []model.HistoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deduped := Dedupe(entries)
	Order(deduped, "")
	if len(deduped) > c.limit {
		deduped = deduped[:c.limit]
	}
	c.entries = deduped
	for _, e := range entries {
		c.last = max(c.last, e.Timestamp)
	}
}

// List returns a copy of the entries, deduplicated and ordered for display.
func (c *Cache) List(selectedID string) []model.HistoryEntry {
	c.mu.Lock()
	out := Dedupe(c.entries)
	c.mu.Unlock()

	Order(out, selectedID)
	return out
}

// Purge removes entries whose id is in deleted and returns how many were
// dropped.
func (c *Cache) Purge(deleted notifier.IDSet) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.entries)
	c.entries = slices.DeleteFunc(c.entries, func(e model.HistoryEntry) bool {
		return deleted.Has(e.ID)
	})
	return before - len(c.entries)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Attach purges the cache on every deletion published by n.
func (c *Cache) Attach(n *notifier.Notifier) func() {
	return n.Subscribe(func(deleted notifier.IDSet) {
		c.Purge(deleted)
	})
}
