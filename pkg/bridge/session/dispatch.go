package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/booking"
	"github.com/nimbletel/voicedesk/pkg/bridge/realtime"
)

// createDedupeWindow bounds how long two identical create requests in
// one session collapse onto a single booking. A repeat after the window
// is treated as a new intent (the caller really wants a second visit).
const createDedupeWindow = 2 * time.Minute

type recentCreate struct {
	at      time.Time
	attempt int
	pending bool
	output  string
	created bool
}

type toolOutcome struct {
	callID    string
	output    string
	isCreate  bool
	created   bool
	createKey string
	startISO  string
}

// handleToolCall implements the dispatch contract: cached identifiers
// replay their result, in-flight identifiers are dropped, everything
// else is validated and executed off-loop exactly once.
func (s *Session) handleToolCall(ev realtime.ToolCallEvent) {
	if cached, ok := s.toolCache[ev.CallID]; ok {
		s.replyTool(ev.CallID, cached)
		return
	}
	if _, busy := s.inFlight[ev.CallID]; busy {
		return
	}
	s.inFlight[ev.CallID] = struct{}{}

	if booking.IsCalendarTool(ev.Name) && s.aiConn != nil {
		// Cover the remote latency so the caller is not left in silence.
		_ = s.aiConn.InjectSystemMessage(fillerInstruction)
		_ = s.aiConn.CreateResponse()
	}

	decoded, terr := booking.DecodeToolCall(ev.Name, []byte(ev.ArgumentsJSON))
	if terr != nil {
		s.settleToolCall(toolOutcome{callID: ev.CallID, output: errorPayload(terr)})
		return
	}

	sessionKey := s.callSID
	var createKey, startISO string
	isCreate := false
	if args, ok := decoded.(*booking.CreateAppointmentArgs); ok {
		isCreate = true
		startISO = args.StartISO
		createKey = strings.TrimSpace(args.StartISO) + "|" + strings.TrimSpace(args.EndISO)

		if recent, seen := s.recentCreates[createKey]; seen {
			switch {
			case recent.pending:
				// A create for these exact times is still in flight. Reuse
				// its booking key so the calendar layer collapses the two
				// onto one remote call instead of issuing a second create.
				if recent.attempt > 1 {
					sessionKey = fmt.Sprintf("%s#%d", s.callSID, recent.attempt)
				}
			case recent.output != "" && s.now().Sub(recent.at) < createDedupeWindow:
				s.settleToolCall(toolOutcome{
					callID:    ev.CallID,
					output:    recent.output,
					isCreate:  true,
					created:   recent.created,
					createKey: createKey,
					startISO:  startISO,
				})
				return
			default:
				recent.attempt++
				recent.at = s.now()
				recent.pending = true
				recent.output = ""
				if recent.attempt > 1 {
					sessionKey = fmt.Sprintf("%s#%d", s.callSID, recent.attempt)
				}
			}
		} else {
			s.recentCreates[createKey] = &recentCreate{at: s.now(), attempt: 1, pending: true}
		}

		// A fresh booking attempt re-arms the claim correction.
		s.correctionIssued = false
		s.summary.AppointmentRequested = true
		s.summary.CallerName = strings.TrimSpace(args.Name)
		s.summary.Reason = strings.TrimSpace(args.Reason)
	}

	go func(callID, name, rawArgs, sessionKey string) {
		// Deliberately not derived from the session context. A booking
		// in flight when the caller hangs up must still reach the
		// calendar; only the timeout bounds it.
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ToolTimeout)
		defer cancel()

		result, terr := s.tools.Execute(ctx, sessionKey, name, []byte(rawArgs))
		out := toolOutcome{callID: callID, isCreate: isCreate, createKey: createKey, startISO: startISO}
		if terr != nil {
			out.output = errorPayload(terr)
		} else {
			out.output = resultPayload(result)
			if isCreate {
				out.created, _ = result["created"].(bool)
				if iso, ok := result["startISO"].(string); ok {
					out.startISO = iso
				}
			}
		}

		select {
		case s.toolCh <- out:
		case <-s.ctx.Done():
		}
	}(ev.CallID, ev.Name, ev.ArgumentsJSON, sessionKey)
}

// completeToolCall runs on the session loop once a dispatch finishes.
func (s *Session) completeToolCall(out toolOutcome) {
	s.settleToolCall(out)
}

func (s *Session) settleToolCall(out toolOutcome) {
	delete(s.inFlight, out.callID)
	s.toolCache[out.callID] = out.output

	if out.isCreate {
		s.lastBookingSeen = true
		s.lastBookingCreated = out.created
		if recent, ok := s.recentCreates[out.createKey]; ok {
			recent.pending = false
			if out.created {
				recent.output = out.output
				recent.created = true
				recent.at = s.now()
			}
		}
		if out.created {
			s.summary.AppointmentBooked = true
			if t, err := time.Parse(time.RFC3339, out.startISO); err == nil {
				s.summary.AppointmentTime = t
			}
		} else if s.summary.FollowUp == "" {
			s.summary.FollowUp = "Caller tried to book but the appointment was not confirmed."
		}
	}

	s.replyTool(out.callID, out.output)
}

func (s *Session) replyTool(callID, output string) {
	if s.aiConn == nil {
		return
	}
	if err := s.aiConn.SendToolResult(callID, output); err != nil {
		s.logger.Error("tool reply failed", "call", s.callSID, "tool_call", callID, "err", err)
		return
	}
	_ = s.aiConn.CreateResponse()
}

func errorPayload(terr *booking.Error) string {
	data, err := json.Marshal(map[string]any{"error": terr})
	if err != nil {
		return `{"error":{"code":"booking_error","message":"internal error"}}`
	}
	return string(data)
}

func resultPayload(result map[string]any) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"error":{"code":"booking_error","message":"internal error"}}`
	}
	return string(data)
}
