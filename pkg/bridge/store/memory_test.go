package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_UserLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetUser(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	m.PutUser(User{ID: "u1", Name: "Pat", Phone: "+15551230001", Active: true})
	user, err := m.GetUser(ctx, "u1")
	if err != nil || user.Name != "Pat" {
		t.Fatalf("unexpected user: %+v %v", user, err)
	}

	if err := m.SetUserActive(ctx, "u1", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	user, _ = m.GetUser(ctx, "u1")
	if user.Active {
		t.Fatalf("user should be inactive")
	}

	if err := m.SetUserActive(ctx, "missing", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestMemory_DueUsers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	m.PutUser(User{ID: "due", Active: true, NextCallAt: now.Add(-time.Minute)})
	m.PutUser(User{ID: "later", Active: true, NextCallAt: now.Add(time.Hour)})
	m.PutUser(User{ID: "inactive", Active: false, NextCallAt: now.Add(-time.Minute)})
	m.PutUser(User{ID: "unscheduled", Active: true})

	due, err := m.DueUsers(ctx, now)
	if err != nil {
		t.Fatalf("due users: %v", err)
	}
	if len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("expected only the overdue active user, got %+v", due)
	}

	if err := m.SetUserNextCall(ctx, "due", now.Add(24*time.Hour)); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	due, _ = m.DueUsers(ctx, now)
	if len(due) != 0 {
		t.Fatalf("rescheduled user must not be due: %+v", due)
	}
}

func TestMemory_CallLogs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if err := m.UpsertCallLog(ctx, CallLog{CallSID: "CA1", UserID: "u1", Mode: "receptionist", StartedAt: started}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.UpdateCallOutcome(ctx, "CA1", "completed", started.Add(2*time.Minute)); err != nil {
		t.Fatalf("outcome: %v", err)
	}

	log, err := m.GetCallLog(ctx, "CA1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if log.Outcome != "completed" || log.UserID != "u1" || !log.EndedAt.Equal(started.Add(2*time.Minute)) {
		t.Fatalf("unexpected log: %+v", log)
	}

	// An outcome for an unseen call still creates a record.
	if err := m.UpdateCallOutcome(ctx, "CA2", "no-answer", started); err != nil {
		t.Fatalf("outcome for unseen call: %v", err)
	}
	if log, err := m.GetCallLog(ctx, "CA2"); err != nil || log.Outcome != "no-answer" {
		t.Fatalf("unexpected log: %+v %v", log, err)
	}
}
