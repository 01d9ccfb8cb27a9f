// Package server assembles the HTTP surface: the voice webhook, the
// media-stream WebSocket, the status callback, and the health probe.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/config"
	"github.com/nimbletel/voicedesk/pkg/bridge/handlers"
	"github.com/nimbletel/voicedesk/pkg/bridge/mw"
	"github.com/nimbletel/voicedesk/pkg/bridge/realtime"
	"github.com/nimbletel/voicedesk/pkg/bridge/session"
	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

type Dependencies struct {
	Store store.Store
	Tools session.ToolRunner
	AI    realtime.Dialer

	// Notifier is optional; nil disables post-call notifications.
	Notifier session.Notifier

	Logger *slog.Logger
	Now    func() time.Time
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
}

func New(cfg config.Config, deps Dependencies) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("tool runner is required")
	}
	if deps.AI == nil {
		return nil, fmt.Errorf("ai dialer is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	notifier := session.Notifier(&callLogRecorder{
		store:  deps.Store,
		next:   deps.Notifier,
		logger: deps.Logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Health())
	mux.Handle("/voice", &handlers.VoiceHandler{
		StreamURL:     "wss://" + cfg.PublicHost + "/stream",
		Greeting:      cfg.Greeting,
		ForwardNumber: cfg.ForwardingNumber,
		DialTimeout:   cfg.DialTimeout,
		Logger:        deps.Logger,
	})
	mux.Handle("/voice/status", &handlers.StatusHandler{
		Store:  deps.Store,
		Logger: deps.Logger,
		Now:    deps.Now,
	})
	mux.Handle("/stream", handlers.NewStreamHandler(session.Dependencies{
		Logger:   deps.Logger,
		AI:       deps.AI,
		Tools:    deps.Tools,
		Notifier: notifier,
		Config: session.Config{
			Voice:               cfg.RealtimeVoice,
			MaxAudioFrameBytes:  cfg.MaxAudioFrameBytes,
			MaxJSONMessageBytes: cfg.MaxJSONMessageBytes,
			ReadTimeout:         cfg.WSReadTimeout,
			WriteTimeout:        cfg.WSWriteTimeout,
			MaxSessionDuration:  cfg.MaxSessionDuration,
			ToolTimeout:         cfg.ToolTimeout,
		},
		Now: deps.Now,
	}, cfg.HandshakeTimeout, deps.Store))

	return &Server{cfg: cfg, logger: deps.Logger, mux: mux}, nil
}

// Handler wraps the mux with the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
