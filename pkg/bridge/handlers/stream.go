package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nimbletel/voicedesk/pkg/bridge/session"
	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

// StreamHandler upgrades the media-stream WebSocket and runs one
// session per connection.
type StreamHandler struct {
	logger   *slog.Logger
	deps     session.Dependencies
	upgrader websocket.Upgrader
}

// NewStreamHandler builds the handler around a dependency template.
// deps.Conn is ignored; every accepted connection gets its own session.
// When no CustomInstructions hook is set and a store is available, the
// stored per-user prompt text is looked up at stream start.
func NewStreamHandler(deps session.Dependencies, handshakeTimeout time.Duration, st store.Store) *StreamHandler {
	if deps.CustomInstructions == nil && st != nil {
		deps.CustomInstructions = func(ctx context.Context, userID string) string {
			user, err := st.GetUser(ctx, userID)
			if err != nil {
				return ""
			}
			return user.Instructions
		}
	}
	return &StreamHandler{
		logger: deps.Logger,
		deps:   deps,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			// The telephony provider sends no browser Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("stream upgrade failed", "err", err)
		}
		return
	}
	defer conn.Close()

	deps := h.deps
	deps.Conn = conn
	sess, err := session.New(deps)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("session setup failed", "err", err)
		}
		return
	}
	if err := sess.Run(); err != nil && h.logger != nil {
		h.logger.Info("session ended with error", "err", err)
	}
}
