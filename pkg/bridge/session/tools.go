package session

import (
	"github.com/nimbletel/voicedesk/pkg/bridge/booking"
	"github.com/nimbletel/voicedesk/pkg/bridge/realtime"
)

const receptionistInstructions = "You are a friendly phone receptionist for a small business. " +
	"Keep answers short and natural for speech; never read out raw data or codes. " +
	"Help callers book, move, or cancel appointments using the provided tools. " +
	"Always check availability before offering times, and offer at most two options. " +
	"Never tell a caller an appointment is booked unless the tool result confirms it. " +
	"If booking is unavailable, apologize and offer to take a message."

const coachingInstructions = "You are a patient Spanish conversation coach on a phone call. " +
	"Speak mostly in simple Spanish, switching to English only to explain. " +
	"Ask one short question at a time and wait for the learner's answer. " +
	"When the learner struggles, say \"let's try a simpler phrase\" and rephrase. " +
	"When the answer is close, say \"let's try that again\" and have them repeat. " +
	"If the learner asks to stop practicing, say \"switching back to English\" and continue in English."

const fillerInstruction = "Say one short natural filler sentence right now, such as " +
	"\"One moment while I check the calendar.\" Do not mention tools."

const greetingInstruction = "Greet the caller now with a short friendly opening and ask how you can help."

func instructionsForMode(mode, custom string) string {
	base := receptionistInstructions
	if mode == "coaching" {
		base = coachingInstructions
	}
	if custom != "" {
		base += "\n\nAdditional notes for this caller: " + custom
	}
	return base
}

// calendarTools declares the structured-call surface. Field names here
// are load-bearing; the AI emits arguments against these schemas.
func calendarTools() []realtime.Tool {
	timezone := map[string]any{"type": "string", "description": "IANA timezone name"}
	return []realtime.Tool{
		{
			Type:        "function",
			Name:        booking.ToolCheckAvailability,
			Description: "Find open appointment slots. Give a day or an exact start time.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"dayISO":   map[string]any{"type": "string", "description": "Day to search, YYYY-MM-DD"},
					"startISO": map[string]any{"type": "string", "description": "Exact start time to test, RFC3339"},
					"endISO":   map[string]any{"type": "string", "description": "Exact end time, RFC3339"},
					"timezone": timezone,
					"window": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"startHour": map[string]any{"type": "integer"},
							"endHour":   map[string]any{"type": "integer"},
						},
					},
					"durationMinutes": map[string]any{"type": "integer"},
				},
			},
		},
		{
			Type:        "function",
			Name:        booking.ToolCreateAppointment,
			Description: "Book an appointment after the caller confirms a time.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"startISO": map[string]any{"type": "string"},
					"endISO":   map[string]any{"type": "string"},
					"name":     map[string]any{"type": "string", "description": "Caller's name"},
					"reason":   map[string]any{"type": "string", "description": "Reason for the visit"},
					"phone":    map[string]any{"type": "string"},
					"timezone": timezone,
				},
				"required": []string{"startISO", "endISO", "name", "reason"},
			},
		},
		{
			Type:        "function",
			Name:        booking.ToolFindEvent,
			Description: "Look up an existing appointment by time or name.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"startISO":  map[string]any{"type": "string"},
					"timezone":  timezone,
					"name":      map[string]any{"type": "string"},
					"daysAhead": map[string]any{"type": "integer"},
				},
			},
		},
		{
			Type:        "function",
			Name:        booking.ToolUpdateEvent,
			Description: "Move an existing appointment to a new time.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"eventId":     map[string]any{"type": "string"},
					"startISO":    map[string]any{"type": "string"},
					"endISO":      map[string]any{"type": "string"},
					"summary":     map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"timezone":    timezone,
				},
				"required": []string{"eventId", "startISO", "endISO"},
			},
		},
		{
			Type:        "function",
			Name:        booking.ToolCancelEvent,
			Description: "Cancel an existing appointment.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"eventId": map[string]any{"type": "string"},
				},
				"required": []string{"eventId"},
			},
		},
	}
}
