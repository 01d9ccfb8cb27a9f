package booking

import (
	"encoding/json"
	"strings"
)

// Tool names surfaced to the AI. Field names in the argument structs are
// part of the same contract.
const (
	ToolCheckAvailability = "check_availability"
	ToolCreateAppointment = "create_appointment"
	ToolFindEvent         = "find_event"
	ToolUpdateEvent       = "update_event"
	ToolCancelEvent       = "cancel_event"
)

// IsCalendarTool reports whether the tool reaches the remote calendar.
// The session bridge plays a filler utterance for these to cover the
// remote latency.
func IsCalendarTool(name string) bool {
	switch name {
	case ToolCheckAvailability, ToolCreateAppointment, ToolFindEvent, ToolUpdateEvent, ToolCancelEvent:
		return true
	}
	return false
}

type WindowSpec struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

type CheckAvailabilityArgs struct {
	DayISO          string      `json:"dayISO"`
	StartISO        string      `json:"startISO"`
	EndISO          string      `json:"endISO"`
	Timezone        string      `json:"timezone"`
	Window          *WindowSpec `json:"window"`
	DurationMinutes int         `json:"durationMinutes"`
}

type CreateAppointmentArgs struct {
	StartISO string `json:"startISO"`
	EndISO   string `json:"endISO"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
	Phone    string `json:"phone"`
	Timezone string `json:"timezone"`
}

type FindEventArgs struct {
	StartISO  string `json:"startISO"`
	Timezone  string `json:"timezone"`
	Name      string `json:"name"`
	DaysAhead int    `json:"daysAhead"`
}

type UpdateEventArgs struct {
	EventID     string `json:"eventId"`
	StartISO    string `json:"startISO"`
	EndISO      string `json:"endISO"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Timezone    string `json:"timezone"`
}

type CancelEventArgs struct {
	EventID string `json:"eventId"`
}

// DecodeToolCall parses and validates one tool call's arguments. Nothing
// past this boundary sees unchecked fields. The returned value is one of
// the *Args types above.
func DecodeToolCall(name string, rawArgs []byte) (any, *Error) {
	if len(rawArgs) == 0 || strings.TrimSpace(string(rawArgs)) == "" {
		rawArgs = []byte("{}")
	}

	switch name {
	case ToolCheckAvailability:
		var args CheckAvailabilityArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, NewError(CodeInvalidArguments, "arguments are not valid JSON")
		}
		return &args, nil

	case ToolCreateAppointment:
		var args CreateAppointmentArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, NewError(CodeInvalidArguments, "arguments are not valid JSON")
		}
		if missing := firstMissing(map[string]string{
			"startISO": args.StartISO,
			"endISO":   args.EndISO,
			"name":     args.Name,
			"reason":   args.Reason,
		}); missing != "" {
			return nil, NewError(CodeInvalidArguments, missing+" is required")
		}
		return &args, nil

	case ToolFindEvent:
		var args FindEventArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, NewError(CodeInvalidArguments, "arguments are not valid JSON")
		}
		return &args, nil

	case ToolUpdateEvent:
		var args UpdateEventArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, NewError(CodeInvalidArguments, "arguments are not valid JSON")
		}
		if missing := firstMissing(map[string]string{
			"eventId":  args.EventID,
			"startISO": args.StartISO,
			"endISO":   args.EndISO,
		}); missing != "" {
			return nil, NewError(CodeInvalidArguments, missing+" is required")
		}
		return &args, nil

	case ToolCancelEvent:
		var args CancelEventArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, NewError(CodeInvalidArguments, "arguments are not valid JSON")
		}
		if strings.TrimSpace(args.EventID) == "" {
			return nil, NewError(CodeInvalidArguments, "eventId is required")
		}
		return &args, nil

	default:
		return nil, NewError(CodeUnknownTool, "unknown tool: "+name)
	}
}

// firstMissing returns the name of one empty required field, checked in
// a stable order so error messages are deterministic.
func firstMissing(fields map[string]string) string {
	order := []string{"eventId", "startISO", "endISO", "name", "reason"}
	for _, key := range order {
		if value, ok := fields[key]; ok && strings.TrimSpace(value) == "" {
			return key
		}
	}
	return ""
}
