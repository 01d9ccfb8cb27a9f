package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

// StatusHandler records call outcomes from the provider's status
// callback. A blocked outcome deactivates the user so the scheduler
// stops calling them.
type StatusHandler struct {
	Store  store.Store
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	callSID := r.FormValue("CallSid")
	status := r.FormValue("CallStatus")
	if callSID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	ctx := r.Context()
	if err := h.Store.UpdateCallOutcome(ctx, callSID, status, now()); err != nil {
		if h.Logger != nil {
			h.Logger.Error("record call outcome", "call", callSID, "err", err)
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if status == "blocked" {
		if log, err := h.Store.GetCallLog(ctx, callSID); err == nil && log.UserID != "" {
			if err := h.Store.SetUserActive(ctx, log.UserID, false); err != nil && h.Logger != nil {
				h.Logger.Error("deactivate blocked user", "user", log.UserID, "err", err)
			}
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
