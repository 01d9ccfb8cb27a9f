// Package scheduler places outbound practice calls to users whose next
// scheduled call has come due.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

// CallOriginator starts one outbound call and returns the provider's
// call identifier.
type CallOriginator interface {
	Originate(ctx context.Context, user store.User) (string, error)
}

type Config struct {
	// Interval between due-user sweeps.
	Interval time.Duration
	// Reschedule is added to now after a call is placed.
	Reschedule time.Duration
	// CallStartHour and CallEndHour bound the user-local hours during
	// which calls are placed. A user due outside the window stays due
	// and is picked up by a later sweep.
	CallStartHour int
	CallEndHour   int
	Logger        *slog.Logger
	Now           func() time.Time
}

type Scheduler struct {
	store  store.Store
	origin CallOriginator
	cfg    Config
}

func New(st store.Store, origin CallOriginator, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Reschedule <= 0 {
		cfg.Reschedule = 24 * time.Hour
	}
	if cfg.CallStartHour == 0 && cfg.CallEndHour == 0 {
		cfg.CallStartHour, cfg.CallEndHour = 9, 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{store: st, origin: origin, cfg: cfg}
}

// Run sweeps until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce places calls for every due user. A failed origination leaves
// the user due so the next sweep retries; a placed call pushes the next
// call out by the reschedule interval.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.cfg.Now()
	due, err := s.store.DueUsers(ctx, now)
	if err != nil {
		s.cfg.Logger.Error("due-user sweep failed", "err", err)
		return
	}

	for _, user := range due {
		if !s.withinCallHours(user, now) {
			continue
		}
		callSID, err := s.origin.Originate(ctx, user)
		if err != nil {
			s.cfg.Logger.Error("outbound call failed", "user", user.ID, "err", err)
			continue
		}
		s.cfg.Logger.Info("outbound call placed", "user", user.ID, "call", callSID)

		if err := s.store.SetUserNextCall(ctx, user.ID, now.Add(s.cfg.Reschedule)); err != nil {
			s.cfg.Logger.Error("reschedule failed", "user", user.ID, "err", err)
		}
		if err := s.store.UpsertCallLog(ctx, store.CallLog{
			CallSID:   callSID,
			UserID:    user.ID,
			To:        user.Phone,
			Mode:      "coaching",
			StartedAt: now,
		}); err != nil {
			s.cfg.Logger.Error("call log write failed", "user", user.ID, "call", callSID, "err", err)
		}
	}
}

// withinCallHours checks the user's local clock against the calling
// window. An unparseable timezone falls back to UTC.
func (s *Scheduler) withinCallHours(user store.User, now time.Time) bool {
	loc := time.UTC
	if user.Timezone != "" {
		if l, err := time.LoadLocation(user.Timezone); err == nil {
			loc = l
		}
	}
	hour := now.In(loc).Hour()
	return hour >= s.cfg.CallStartHour && hour < s.cfg.CallEndHour
}
