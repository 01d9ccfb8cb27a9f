// Package calendar talks to the external calendar service. The Gateway
// interface is the uniform surface the booking service depends on;
// idempotency and retry are layered here so callers never see duplicate
// writes or transient rate-limit failures.
package calendar

import (
	"context"
	"time"
)

// Event is one calendar appointment as the rest of the system sees it.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// BusyInterval is a half-open occupied range from a free/busy query.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// EventRequest carries the fields for a create or update. For updates,
// zero-valued fields are left unchanged.
type EventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Gateway is the uniform calendar interface. Implementations must be
// safe for concurrent use; one Gateway is shared across all sessions.
type Gateway interface {
	// FreeBusy returns occupied intervals overlapping [start, end).
	FreeBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error)

	// CreateEvent writes a new event and returns it with the remote ID
	// populated. An empty returned ID is a gateway bug; callers treat it
	// as a failed booking.
	CreateEvent(ctx context.Context, req EventRequest) (Event, error)

	// ListEvents returns events overlapping [start, end) ordered by
	// start time.
	ListEvents(ctx context.Context, start, end time.Time) ([]Event, error)

	// UpdateEvent moves or retitles an existing event.
	UpdateEvent(ctx context.Context, eventID string, req EventRequest) (Event, error)

	// CancelEvent deletes an event. Deleting an already-deleted event is
	// not an error.
	CancelEvent(ctx context.Context, eventID string) error
}
