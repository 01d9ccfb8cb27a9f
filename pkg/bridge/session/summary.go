package session

import "time"

// CallSummary accumulates the facts about one call. It is owned by the
// session loop and handed out only after the call ends.
type CallSummary struct {
	CallSID   string
	StreamSID string
	Mode      string
	From      string
	To        string
	UserID    string

	StartedAt time.Time
	EndedAt   time.Time

	CallerName           string
	Reason               string
	AppointmentRequested bool
	AppointmentBooked    bool
	AppointmentTime      time.Time
	FollowUp             string

	Coaching CoachingReport
}

func (s CallSummary) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// CoachingReport is the per-call language practice outcome.
type CoachingReport struct {
	TargetOnlyAnswers int
	TargetAnswers     int
	Simplifications   int
	Repeats           int
	OptedOut          bool
	Score             int
	Tier              int
}
