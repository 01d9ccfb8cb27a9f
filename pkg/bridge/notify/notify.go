// Package notify sends post-call SMS summaries to the business owner
// and, when reachable, to the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/session"
)

// SMSSender delivers one text message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// SentStore remembers which calls have already been notified.
// MarkSent returns true exactly once per call identifier.
type SentStore interface {
	MarkSent(ctx context.Context, callID string) (bool, error)
}

type Config struct {
	OwnerPhone    string
	BusinessName  string
	DefaultReason string
	Logger        *slog.Logger
}

// Service composes and dispatches the summaries. It implements the
// session bridge's Notifier.
type Service struct {
	sender SMSSender
	sent   SentStore
	cfg    Config
}

func NewService(sender SMSSender, sent SentStore, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BusinessName == "" {
		cfg.BusinessName = "the office"
	}
	if cfg.DefaultReason == "" {
		cfg.DefaultReason = "General inquiry."
	}
	return &Service{sender: sender, sent: sent, cfg: cfg}
}

// CallEnded sends at most one owner summary and one caller summary per
// call, even when the stream-stop event fires more than once.
func (s *Service) CallEnded(ctx context.Context, summary session.CallSummary) {
	if summary.CallSID == "" {
		return
	}
	first, err := s.sent.MarkSent(ctx, summary.CallSID)
	if err != nil {
		s.cfg.Logger.Error("sent-store check failed", "call", summary.CallSID, "err", err)
		return
	}
	if !first {
		return
	}

	if s.cfg.OwnerPhone != "" {
		if err := s.sender.Send(ctx, s.cfg.OwnerPhone, s.ownerBody(summary)); err != nil {
			s.cfg.Logger.Error("owner notification failed", "call", summary.CallSID, "err", err)
		}
	}

	if Dialable(summary.From) {
		if err := s.sender.Send(ctx, summary.From, s.callerBody(summary)); err != nil {
			s.cfg.Logger.Error("caller notification failed", "call", summary.CallSID, "err", err)
		}
	}
}

func (s *Service) ownerBody(summary session.CallSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Call summary (%s):\n", summary.CallSID)
	fmt.Fprintf(&b, "Caller: %s", callerIdentity(summary))
	b.WriteString("\nReason: " + NormalizeReason(summary.Reason, s.cfg.DefaultReason))
	b.WriteString("\n" + outcomeLine(summary))
	if summary.FollowUp != "" {
		b.WriteString("\nFollow up: " + summary.FollowUp)
	}
	fmt.Fprintf(&b, "\nDuration: %s", formatDuration(summary.Duration()))
	return b.String()
}

func (s *Service) callerBody(summary session.CallSummary) string {
	var b strings.Builder
	b.WriteString("Thanks for calling " + s.cfg.BusinessName + ".")
	if summary.AppointmentBooked {
		fmt.Fprintf(&b, " Your appointment is confirmed for %s.",
			summary.AppointmentTime.Format("Monday, Jan 2 at 3:04 PM"))
	} else {
		b.WriteString(" We were not able to finalize a booking on this call; we'll follow up with you.")
	}
	return b.String()
}

func callerIdentity(summary session.CallSummary) string {
	name := strings.TrimSpace(summary.CallerName)
	switch {
	case name != "" && summary.From != "":
		return name + " (" + summary.From + ")"
	case name != "":
		return name
	case summary.From != "":
		return summary.From
	default:
		return "unknown caller"
	}
}

func outcomeLine(summary session.CallSummary) string {
	if summary.AppointmentBooked {
		return "Outcome: appointment booked for " + summary.AppointmentTime.Format(time.RFC1123)
	}
	return "Outcome: no appointment booked"
}

// NormalizeReason trims, sentence-terminates, and defaults the caller's
// stated reason.
func NormalizeReason(reason, fallback string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fallback
	}
	switch reason[len(reason)-1] {
	case '.', '!', '?':
		return reason
	}
	return reason + "."
}

var dialablePattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// Dialable reports whether a caller number is plausibly reachable by
// SMS. Withheld caller IDs arrive as "anonymous".
func Dialable(number string) bool {
	number = strings.TrimSpace(number)
	if number == "" || strings.EqualFold(number, "anonymous") {
		return false
	}
	return dialablePattern.MatchString(number)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
