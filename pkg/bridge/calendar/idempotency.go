package calendar

import (
	"context"
	"sync"
	"time"
)

const ledgerTTL = 5 * time.Minute

// createLedger deduplicates event creates. The AI occasionally issues
// the same create_appointment twice in quick succession; the ledger
// guarantees one remote write per key and hands the cached event to
// every duplicate. Failed creates are evicted so a later attempt can
// retry cleanly.
type createLedger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
	ttl     time.Duration
	now     func() time.Time
}

type ledgerEntry struct {
	done      chan struct{}
	event     Event
	err       error
	settled   bool
	settledAt time.Time
}

func newCreateLedger() *createLedger {
	return &createLedger{
		entries: make(map[string]*ledgerEntry),
		ttl:     ledgerTTL,
		now:     time.Now,
	}
}

// Do runs fn at most once per key within the TTL. Concurrent callers
// with the same key block until the first call settles and share its
// result.
func (l *createLedger) Do(ctx context.Context, key string, fn func(ctx context.Context) (Event, error)) (Event, error) {
	l.mu.Lock()
	l.pruneLocked()

	if entry, ok := l.entries[key]; ok {
		l.mu.Unlock()
		select {
		case <-entry.done:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
		l.mu.Lock()
		event, err := entry.event, entry.err
		l.mu.Unlock()
		return event, err
	}

	entry := &ledgerEntry{done: make(chan struct{})}
	l.entries[key] = entry
	l.mu.Unlock()

	event, err := fn(ctx)

	l.mu.Lock()
	entry.event = event
	entry.err = err
	entry.settled = true
	entry.settledAt = l.now()
	if err != nil {
		delete(l.entries, key)
	}
	l.mu.Unlock()
	close(entry.done)

	return event, err
}

// pruneLocked drops settled entries past the TTL. Called with mu held.
func (l *createLedger) pruneLocked() {
	cutoff := l.now().Add(-l.ttl)
	for key, entry := range l.entries {
		if entry.settled && entry.settledAt.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Deduper wraps a Gateway's create path with keyed deduplication. The
// key should identify the logical booking, not the request (session ID
// plus start plus end), so retried tool calls collapse onto one event.
type Deduper struct {
	gw     Gateway
	ledger *createLedger
}

func NewDeduper(gw Gateway) *Deduper {
	return &Deduper{gw: gw, ledger: newCreateLedger()}
}

func (d *Deduper) Create(ctx context.Context, key string, req EventRequest) (Event, error) {
	return d.ledger.Do(ctx, key, func(ctx context.Context) (Event, error) {
		return d.gw.CreateEvent(ctx, req)
	})
}
