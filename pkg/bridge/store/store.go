// Package store persists users and call logs. Two implementations share
// the interface: Postgres for production, in-memory for development and
// tests, selected at startup.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// User is a person the scheduler may call, with optional per-user
// prompt customization.
type User struct {
	ID           string
	Name         string
	Phone        string
	Timezone     string
	Instructions string
	Active       bool
	NextCallAt   time.Time
	CreatedAt    time.Time
}

// CallLog is one call's persisted record.
type CallLog struct {
	CallSID   string
	UserID    string
	From      string
	To        string
	Mode      string
	Outcome   string
	StartedAt time.Time
	EndedAt   time.Time
}

type Store interface {
	GetUser(ctx context.Context, id string) (User, error)
	// DueUsers returns active users whose next scheduled call is at or
	// before now.
	DueUsers(ctx context.Context, now time.Time) ([]User, error)
	SetUserActive(ctx context.Context, id string, active bool) error
	SetUserNextCall(ctx context.Context, id string, at time.Time) error

	UpsertCallLog(ctx context.Context, log CallLog) error
	UpdateCallOutcome(ctx context.Context, callSID, outcome string, at time.Time) error
	GetCallLog(ctx context.Context, callSID string) (CallLog, error)

	Close()
}
