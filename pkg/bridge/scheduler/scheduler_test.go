package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

type fakeOriginator struct {
	mu    sync.Mutex
	calls []string
	err   error
	next  int
}

func (f *fakeOriginator) Originate(ctx context.Context, user store.User) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.next++
	f.calls = append(f.calls, user.ID)
	return fmt.Sprintf("CA_out_%d", f.next), nil
}

func TestRunOnce_CallsDueUsersAndReschedules(t *testing.T) {
	mem := store.NewMemory()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mem.PutUser(store.User{ID: "due", Phone: "+15551230001", Active: true, NextCallAt: now.Add(-time.Minute)})
	mem.PutUser(store.User{ID: "later", Phone: "+15551230002", Active: true, NextCallAt: now.Add(time.Hour)})

	origin := &fakeOriginator{}
	sched := New(mem, origin, Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return now },
	})

	sched.RunOnce(context.Background())

	origin.mu.Lock()
	called := append([]string(nil), origin.calls...)
	origin.mu.Unlock()
	if len(called) != 1 || called[0] != "due" {
		t.Fatalf("expected one call to the due user, got %v", called)
	}

	user, _ := mem.GetUser(context.Background(), "due")
	if !user.NextCallAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("user must be rescheduled 24h out, got %v", user.NextCallAt)
	}

	log, err := mem.GetCallLog(context.Background(), "CA_out_1")
	if err != nil || log.UserID != "due" || log.Mode != "coaching" {
		t.Fatalf("call log not written: %+v %v", log, err)
	}

	// Second sweep: nobody is due anymore.
	sched.RunOnce(context.Background())
	origin.mu.Lock()
	defer origin.mu.Unlock()
	if len(origin.calls) != 1 {
		t.Fatalf("rescheduled user must not be called again: %v", origin.calls)
	}
}

func TestRunOnce_QuietHoursDeferCalls(t *testing.T) {
	mem := store.NewMemory()
	// 03:00 in New York, 08:00 UTC.
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mem.PutUser(store.User{ID: "sleeping", Phone: "+15551230001", Timezone: "America/New_York", Active: true, NextCallAt: now.Add(-time.Minute)})

	origin := &fakeOriginator{}
	sched := New(mem, origin, Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return now },
	})

	sched.RunOnce(context.Background())
	origin.mu.Lock()
	skipped := len(origin.calls)
	origin.mu.Unlock()
	if skipped != 0 {
		t.Fatalf("user in quiet hours must not be called: %v", origin.calls)
	}

	user, _ := mem.GetUser(context.Background(), "sleeping")
	if !user.NextCallAt.Equal(now.Add(-time.Minute)) {
		t.Fatalf("deferred user must stay due: %v", user.NextCallAt)
	}

	// Same sweep later in the day goes through.
	now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) // 10:00 in New York
	sched.RunOnce(context.Background())
	origin.mu.Lock()
	defer origin.mu.Unlock()
	if len(origin.calls) != 1 || origin.calls[0] != "sleeping" {
		t.Fatalf("expected the call once the window opens, got %v", origin.calls)
	}
}

func TestRunOnce_FailedOriginationLeavesUserDue(t *testing.T) {
	mem := store.NewMemory()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mem.PutUser(store.User{ID: "due", Phone: "+15551230001", Active: true, NextCallAt: now.Add(-time.Minute)})

	origin := &fakeOriginator{err: errors.New("provider down")}
	sched := New(mem, origin, Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return now },
	})

	sched.RunOnce(context.Background())

	user, _ := mem.GetUser(context.Background(), "due")
	if !user.NextCallAt.Equal(now.Add(-time.Minute)) {
		t.Fatalf("failed origination must not reschedule: %v", user.NextCallAt)
	}

	// Retry succeeds on the next sweep.
	origin.err = nil
	sched.RunOnce(context.Background())
	origin.mu.Lock()
	defer origin.mu.Unlock()
	if len(origin.calls) != 1 {
		t.Fatalf("expected retry to place the call: %v", origin.calls)
	}
}
