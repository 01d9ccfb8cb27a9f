package server

import (
	"context"
	"log/slog"

	"github.com/nimbletel/voicedesk/pkg/bridge/session"
	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

// callLogRecorder persists a call-log row when a session ends, then
// hands the summary to the next notifier. The status callback may later
// overwrite the outcome with the provider's final word.
type callLogRecorder struct {
	store  store.Store
	next   session.Notifier
	logger *slog.Logger
}

func (r *callLogRecorder) CallEnded(ctx context.Context, summary session.CallSummary) {
	if summary.CallSID != "" {
		err := r.store.UpsertCallLog(ctx, store.CallLog{
			CallSID:   summary.CallSID,
			UserID:    summary.UserID,
			From:      summary.From,
			To:        summary.To,
			Mode:      summary.Mode,
			Outcome:   "completed",
			StartedAt: summary.StartedAt,
			EndedAt:   summary.EndedAt,
		})
		if err != nil {
			r.logger.Error("call log write failed", "call", summary.CallSID, "err", err)
		}
	}
	if r.next != nil {
		r.next.CallEnded(ctx, summary)
	}
}
