package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by every operation of the unconfigured
// gateway. The wording matters: downstream classification keys on the
// credential-missing text.
var ErrNotConfigured = errors.New("calendar credentials missing")

// Unconfigured stands in when no calendar backend was set up. It lets
// the rest of the call flow run while every calendar tool fails with a
// classifiable error.
type Unconfigured struct{}

func (Unconfigured) FreeBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) CreateEvent(ctx context.Context, req EventRequest) (Event, error) {
	return Event{}, ErrNotConfigured
}

func (Unconfigured) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) UpdateEvent(ctx context.Context, eventID string, req EventRequest) (Event, error) {
	return Event{}, ErrNotConfigured
}

func (Unconfigured) CancelEvent(ctx context.Context, eventID string) error {
	return ErrNotConfigured
}
