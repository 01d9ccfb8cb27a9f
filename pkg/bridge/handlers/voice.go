// Package handlers holds the HTTP endpoints: the voice webhook that
// answers calls with stream markup, the media-stream WebSocket, the
// call-status callback, and the health probe.
package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/callcontrol"
)

// VoiceHandler answers the provider's inbound-call webhook with the
// call-control document that opens a media stream back to this server.
type VoiceHandler struct {
	StreamURL     string
	Greeting      string
	ForwardNumber string
	DialTimeout   time.Duration
	Logger        *slog.Logger
}

func (h *VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	doc, err := callcontrol.Render(callcontrol.Options{
		StreamURL:     h.StreamURL,
		Mode:          r.FormValue("mode"),
		From:          r.FormValue("From"),
		To:            r.FormValue("To"),
		CallSID:       r.FormValue("CallSid"),
		UserID:        r.FormValue("userId"),
		Greeting:      h.Greeting,
		ForwardNumber: h.ForwardNumber,
		DialTimeout:   h.DialTimeout,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("render call control", "err", err)
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	io.WriteString(w, doc)
}
