package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string
	Timezone        string

	// OAuth client credentials with a long-lived refresh token. When all
	// three are set they take precedence over CredentialsFile.
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// GoogleGateway implements Gateway against the Google Calendar API.
type GoogleGateway struct {
	svc        *gcal.Service
	calendarID string
	tz         string
}

func NewGoogleGateway(ctx context.Context, cfg GoogleConfig) (*GoogleGateway, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, fmt.Errorf("calendar id is required")
	}
	opts := []option.ClientOption{option.WithScopes(gcal.CalendarScope)}
	switch {
	case cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.RefreshToken != "":
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarScope},
		}
		ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		opts = append(opts, option.WithTokenSource(ts))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleGateway{svc: svc, calendarID: cfg.CalendarID, tz: cfg.Timezone}, nil
}

func (g *GoogleGateway) FreeBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}

	var resp *gcal.FreeBusyResponse
	err := withRetry(ctx, func() error {
		var doErr error
		resp, doErr = g.svc.Freebusy.Query(req).Context(ctx).Do()
		return doErr
	})
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}
	intervals := make([]BusyInterval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		bs, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start %q: %w", period.Start, err)
		}
		be, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end %q: %w", period.End, err)
		}
		intervals = append(intervals, BusyInterval{Start: bs, End: be})
	}
	return intervals, nil
}

func (g *GoogleGateway) CreateEvent(ctx context.Context, req EventRequest) (Event, error) {
	body := &gcal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       g.eventTime(req.Start),
		End:         g.eventTime(req.End),
	}

	var created *gcal.Event
	err := withRetry(ctx, func() error {
		var doErr error
		created, doErr = g.svc.Events.Insert(g.calendarID, body).Context(ctx).Do()
		return doErr
	})
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	return g.fromAPI(created), nil
}

func (g *GoogleGateway) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	var resp *gcal.Events
	err := withRetry(ctx, func() error {
		var doErr error
		resp, doErr = g.svc.Events.List(g.calendarID).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).Do()
		return doErr
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		// All-day events carry no DateTime and never conflict with a
		// timed appointment slot.
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		events = append(events, g.fromAPI(item))
	}
	return events, nil
}

func (g *GoogleGateway) UpdateEvent(ctx context.Context, eventID string, req EventRequest) (Event, error) {
	patch := &gcal.Event{}
	if req.Summary != "" {
		patch.Summary = req.Summary
	}
	if req.Description != "" {
		patch.Description = req.Description
	}
	if !req.Start.IsZero() {
		patch.Start = g.eventTime(req.Start)
	}
	if !req.End.IsZero() {
		patch.End = g.eventTime(req.End)
	}

	var updated *gcal.Event
	err := withRetry(ctx, func() error {
		var doErr error
		updated, doErr = g.svc.Events.Patch(g.calendarID, eventID, patch).Context(ctx).Do()
		return doErr
	})
	if err != nil {
		return Event{}, fmt.Errorf("patch event %s: %w", eventID, err)
	}
	return g.fromAPI(updated), nil
}

func (g *GoogleGateway) CancelEvent(ctx context.Context, eventID string) error {
	err := withRetry(ctx, func() error {
		return g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	})
	if err != nil && !isGone(err) {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleGateway) eventTime(t time.Time) *gcal.EventDateTime {
	edt := &gcal.EventDateTime{DateTime: t.Format(time.RFC3339)}
	if g.tz != "" {
		edt.TimeZone = g.tz
	}
	return edt
}

func (g *GoogleGateway) fromAPI(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
	}
	if item.Start != nil && item.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			ev.Start = t
		}
	}
	if item.End != nil && item.End.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			ev.End = t
		}
	}
	return ev
}

// isGone reports whether the event was already deleted.
func isGone(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}
