package calendar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCreateLedger_SecondCallHitsCache(t *testing.T) {
	ledger := newCreateLedger()
	var calls int32
	fn := func(ctx context.Context) (Event, error) {
		atomic.AddInt32(&calls, 1)
		return Event{ID: "evt_1"}, nil
	}

	first, err := ledger.Do(context.Background(), "s1|10:00|10:30", fn)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := ledger.Do(context.Background(), "s1|10:00|10:30", fn)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 remote create, got %d", calls)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate calls must share the event id: %q vs %q", first.ID, second.ID)
	}
}

func TestCreateLedger_DistinctKeysDoNotShare(t *testing.T) {
	ledger := newCreateLedger()
	var calls int32
	fn := func(ctx context.Context) (Event, error) {
		n := atomic.AddInt32(&calls, 1)
		return Event{ID: string(rune('a' + n))}, nil
	}
	ledger.Do(context.Background(), "k1", fn)
	ledger.Do(context.Background(), "k2", fn)
	if calls != 2 {
		t.Fatalf("expected 2 creates for distinct keys, got %d", calls)
	}
}

func TestCreateLedger_FailureEvicts(t *testing.T) {
	ledger := newCreateLedger()
	boom := errors.New("upstream down")
	var calls int32

	_, err := ledger.Do(context.Background(), "k", func(ctx context.Context) (Event, error) {
		atomic.AddInt32(&calls, 1)
		return Event{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected failure, got %v", err)
	}

	ev, err := ledger.Do(context.Background(), "k", func(ctx context.Context) (Event, error) {
		atomic.AddInt32(&calls, 1)
		return Event{ID: "evt_retry"}, nil
	})
	if err != nil || ev.ID != "evt_retry" {
		t.Fatalf("retry after failure must run: %v %+v", err, ev)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestCreateLedger_TTLExpiry(t *testing.T) {
	ledger := newCreateLedger()
	current := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return current }

	var calls int32
	fn := func(ctx context.Context) (Event, error) {
		atomic.AddInt32(&calls, 1)
		return Event{ID: "evt"}, nil
	}

	ledger.Do(context.Background(), "k", fn)
	current = current.Add(90 * time.Second)
	ledger.Do(context.Background(), "k", fn)
	if calls != 1 {
		t.Fatalf("inside TTL should dedupe, got %d calls", calls)
	}

	current = current.Add(ledgerTTL)
	ledger.Do(context.Background(), "k", fn)
	if calls != 2 {
		t.Fatalf("after TTL a new create must run, got %d calls", calls)
	}
}

func TestCreateLedger_ConcurrentCallersShareInflight(t *testing.T) {
	ledger := newCreateLedger()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (Event, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return Event{ID: "evt_shared"}, nil
	}

	var wg sync.WaitGroup
	results := make([]Event, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = ledger.Do(context.Background(), "k", fn)
	}()

	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = ledger.Do(context.Background(), "k", func(ctx context.Context) (Event, error) {
			atomic.AddInt32(&calls, 1)
			return Event{ID: "evt_wrong"}, nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected a single inflight create, got %d", calls)
	}
	if results[0].ID != "evt_shared" || results[1].ID != "evt_shared" {
		t.Fatalf("both callers must see the inflight result: %+v", results)
	}
}
