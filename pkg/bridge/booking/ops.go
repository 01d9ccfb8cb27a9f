package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/availability"
	"github.com/nimbletel/voicedesk/pkg/bridge/calendar"
)

const (
	defaultSearchDays = 7
	defaultFindDays   = 30
)

type Config struct {
	Location          *time.Location
	BusinessStartHour int
	BusinessEndHour   int
	SlotDuration      time.Duration
	Buffer            time.Duration
	Logger            *slog.Logger
	Now               func() time.Time
}

// Service translates validated tool calls into calendar operations.
// One Service is shared across all sessions.
type Service struct {
	gw     calendar.Gateway
	dedupe *calendar.Deduper
	cfg    Config
}

func NewService(gw calendar.Gateway, cfg Config) *Service {
	if gw == nil {
		gw = calendar.Unconfigured{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BusinessStartHour == 0 && cfg.BusinessEndHour == 0 {
		cfg.BusinessStartHour, cfg.BusinessEndHour = 9, 17
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = 30 * time.Minute
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{gw: gw, dedupe: calendar.NewDeduper(gw), cfg: cfg}
}

// Execute runs one tool call end to end: decode, validate, dispatch,
// classify. It never returns a raw gateway error.
func (s *Service) Execute(ctx context.Context, sessionID, name string, rawArgs []byte) (map[string]any, *Error) {
	decoded, terr := DecodeToolCall(name, rawArgs)
	if terr != nil {
		return nil, terr
	}

	switch args := decoded.(type) {
	case *CheckAvailabilityArgs:
		return s.CheckAvailability(ctx, args)
	case *CreateAppointmentArgs:
		return s.CreateAppointment(ctx, sessionID, args)
	case *FindEventArgs:
		return s.FindAppointment(ctx, args)
	case *UpdateEventArgs:
		return s.UpdateAppointment(ctx, args)
	case *CancelEventArgs:
		return s.CancelAppointment(ctx, args)
	default:
		return nil, NewError(CodeUnknownTool, "unknown tool: "+name)
	}
}

// CheckAvailability returns up to two candidate slots, or confirms a
// single exact slot when one was requested.
func (s *Service) CheckAvailability(ctx context.Context, args *CheckAvailabilityArgs) (map[string]any, *Error) {
	loc := s.location(args.Timezone)
	duration := s.cfg.SlotDuration
	if args.DurationMinutes > 0 {
		duration = time.Duration(args.DurationMinutes) * time.Minute
	}
	startHour, endHour := s.cfg.BusinessStartHour, s.cfg.BusinessEndHour
	if args.Window != nil && args.Window.EndHour > args.Window.StartHour {
		startHour, endHour = args.Window.StartHour, args.Window.EndHour
	}

	// Exact start requested: answer yes or no for that one slot.
	if args.StartISO != "" {
		start, err := parseTime(args.StartISO, loc)
		if err != nil {
			return nil, NewError(CodeInvalidArguments, "startISO is not a valid timestamp")
		}
		end := start.Add(duration)
		if args.EndISO != "" {
			end, err = parseTime(args.EndISO, loc)
			if err != nil {
				return nil, NewError(CodeInvalidArguments, "endISO is not a valid timestamp")
			}
		}

		busy, gerr := s.gw.FreeBusy(ctx, start.Add(-s.cfg.Buffer), end.Add(s.cfg.Buffer))
		if gerr != nil {
			return nil, s.classify(gerr, "freebusy")
		}
		slots := availability.Resolve(availability.Query{
			WindowStart:       start,
			WindowEnd:         end,
			Duration:          end.Sub(start),
			Buffer:            s.cfg.Buffer,
			Busy:              toIntervals(busy),
			Location:          loc,
			BusinessStartHour: 0,
			BusinessEndHour:   24,
			Preference:        availability.PreferenceExact,
			ExactHour:         start.In(loc).Hour(),
			ExactMinute:       start.In(loc).Minute(),
		})
		return map[string]any{"slots": slotsPayload(slots), "timezone": loc.String()}, nil
	}

	windowStart, windowEnd := s.searchWindow(args.DayISO, loc)
	busy, gerr := s.gw.FreeBusy(ctx, windowStart, windowEnd)
	if gerr != nil {
		return nil, s.classify(gerr, "freebusy")
	}

	slots := availability.Resolve(availability.Query{
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
		Duration:          duration,
		Buffer:            s.cfg.Buffer,
		Busy:              toIntervals(busy),
		Location:          loc,
		BusinessStartHour: startHour,
		BusinessEndHour:   endHour,
		MaxSlots:          2,
	})
	return map[string]any{"slots": slotsPayload(slots), "timezone": loc.String()}, nil
}

// CreateAppointment writes one event. Duplicate requests for the same
// session and times collapse onto a single remote create.
func (s *Service) CreateAppointment(ctx context.Context, sessionID string, args *CreateAppointmentArgs) (map[string]any, *Error) {
	loc := s.location(args.Timezone)
	start, err := parseTime(args.StartISO, loc)
	if err != nil {
		return nil, NewError(CodeInvalidArguments, "startISO is not a valid timestamp")
	}
	end, err := parseTime(args.EndISO, loc)
	if err != nil {
		return nil, NewError(CodeInvalidArguments, "endISO is not a valid timestamp")
	}
	if !end.After(start) {
		return nil, NewError(CodeInvalidArguments, "endISO must be after startISO")
	}

	description := "Reason: " + strings.TrimSpace(args.Reason)
	if strings.TrimSpace(args.Phone) != "" {
		description += "\nPhone: " + strings.TrimSpace(args.Phone)
	}

	key := dedupeKey(sessionID, start, end)
	event, gerr := s.dedupe.Create(ctx, key, calendar.EventRequest{
		Summary:     "Appointment: " + strings.TrimSpace(args.Name),
		Description: description,
		Start:       start,
		End:         end,
	})
	if gerr != nil {
		return nil, s.classify(gerr, "create")
	}
	if event.ID == "" {
		// The remote returned success without an identifier. Treat as a
		// failed booking so the caller is never told a phantom event exists.
		s.cfg.Logger.Error("calendar create returned no event id", "session", sessionID)
		return nil, NewError(CodeBookingError, "the calendar did not confirm the appointment")
	}

	return map[string]any{
		"created":  true,
		"eventId":  event.ID,
		"startISO": start.Format(time.RFC3339),
		"endISO":   end.Format(time.RFC3339),
	}, nil
}

// FindAppointment lists upcoming events matching an exact start time
// and/or a name fragment.
func (s *Service) FindAppointment(ctx context.Context, args *FindEventArgs) (map[string]any, *Error) {
	loc := s.location(args.Timezone)
	daysAhead := args.DaysAhead
	if daysAhead <= 0 {
		daysAhead = defaultFindDays
	}

	now := s.cfg.Now().In(loc)
	events, gerr := s.gw.ListEvents(ctx, now, now.AddDate(0, 0, daysAhead))
	if gerr != nil {
		return nil, s.classify(gerr, "list")
	}

	var exactStart time.Time
	if args.StartISO != "" {
		parsed, perr := parseTime(args.StartISO, loc)
		if perr != nil {
			return nil, NewError(CodeInvalidArguments, "startISO is not a valid timestamp")
		}
		exactStart = parsed
	}
	nameNeedle := strings.ToLower(strings.TrimSpace(args.Name))

	matches := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		if !exactStart.IsZero() && !ev.Start.Truncate(time.Minute).Equal(exactStart.Truncate(time.Minute)) {
			continue
		}
		if nameNeedle != "" &&
			!strings.Contains(strings.ToLower(ev.Summary), nameNeedle) &&
			!strings.Contains(strings.ToLower(ev.Description), nameNeedle) {
			continue
		}
		matches = append(matches, map[string]any{
			"eventId":  ev.ID,
			"summary":  ev.Summary,
			"startISO": ev.Start.Format(time.RFC3339),
			"endISO":   ev.End.Format(time.RFC3339),
		})
	}
	return map[string]any{"events": matches}, nil
}

func (s *Service) UpdateAppointment(ctx context.Context, args *UpdateEventArgs) (map[string]any, *Error) {
	loc := s.location(args.Timezone)
	start, err := parseTime(args.StartISO, loc)
	if err != nil {
		return nil, NewError(CodeInvalidArguments, "startISO is not a valid timestamp")
	}
	end, err := parseTime(args.EndISO, loc)
	if err != nil {
		return nil, NewError(CodeInvalidArguments, "endISO is not a valid timestamp")
	}
	if !end.After(start) {
		return nil, NewError(CodeInvalidArguments, "endISO must be after startISO")
	}

	event, gerr := s.gw.UpdateEvent(ctx, args.EventID, calendar.EventRequest{
		Summary:     args.Summary,
		Description: args.Description,
		Start:       start,
		End:         end,
	})
	if gerr != nil {
		return nil, s.classify(gerr, "update")
	}
	return map[string]any{
		"updated":  true,
		"eventId":  event.ID,
		"startISO": start.Format(time.RFC3339),
		"endISO":   end.Format(time.RFC3339),
	}, nil
}

func (s *Service) CancelAppointment(ctx context.Context, args *CancelEventArgs) (map[string]any, *Error) {
	if gerr := s.gw.CancelEvent(ctx, args.EventID); gerr != nil {
		return nil, s.classify(gerr, "cancel")
	}
	return map[string]any{"cancelled": true, "eventId": args.EventID}, nil
}

func (s *Service) classify(err error, op string) *Error {
	terr := Classify(err)
	// The underlying cause is for operators only; the caller hears the
	// classified message.
	s.cfg.Logger.Error("calendar operation failed", "op", op, "code", terr.Code, "err", err)
	return terr
}

func (s *Service) location(tz string) *time.Location {
	if strings.TrimSpace(tz) == "" {
		return s.cfg.Location
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return s.cfg.Location
	}
	return loc
}

// searchWindow picks the range to scan: one day when dayISO is given,
// otherwise the next seven days starting now.
func (s *Service) searchWindow(dayISO string, loc *time.Location) (time.Time, time.Time) {
	if dayISO != "" {
		if day, err := time.ParseInLocation("2006-01-02", dayISO, loc); err == nil {
			return day, day.AddDate(0, 0, 1)
		}
	}
	now := s.cfg.Now().In(loc)
	return now, now.AddDate(0, 0, defaultSearchDays)
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func dedupeKey(sessionID string, start, end time.Time) string {
	return sessionID + "|" + start.UTC().Format(time.RFC3339) + "|" + end.UTC().Format(time.RFC3339)
}

func toIntervals(busy []calendar.BusyInterval) []availability.Interval {
	out := make([]availability.Interval, len(busy))
	for i, b := range busy {
		out[i] = availability.Interval{Start: b.Start, End: b.End}
	}
	return out
}

func slotsPayload(slots []availability.Slot) []map[string]any {
	out := make([]map[string]any, len(slots))
	for i, s := range slots {
		out[i] = map[string]any{
			"startISO": s.Start.Format(time.RFC3339),
			"endISO":   s.End.Format(time.RFC3339),
		}
	}
	return out
}
