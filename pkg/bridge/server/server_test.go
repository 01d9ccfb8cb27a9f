package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nimbletel/voicedesk/pkg/bridge/booking"
	"github.com/nimbletel/voicedesk/pkg/bridge/config"
	"github.com/nimbletel/voicedesk/pkg/bridge/realtime"
	"github.com/nimbletel/voicedesk/pkg/bridge/session"
	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

type stubDialer struct{}

func (stubDialer) Dial(ctx context.Context) (realtime.Conn, error) {
	return nil, context.Canceled
}

type stubTools struct{}

func (stubTools) Execute(ctx context.Context, sessionID, name string, rawArgs []byte) (map[string]any, *booking.Error) {
	return map[string]any{}, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(config.Config{PublicHost: "voice.example.com"}, Dependencies{
		Store:  store.NewMemory(),
		Tools:  stubTools{},
		AI:     stubDialer{},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func TestServer_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(t).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestServer_VoiceEmbedsPublicHost(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}, "From": {"+15551230001"}, "To": {"+15551230002"}}
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	testServer(t).Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "wss://voice.example.com/stream") {
		t.Fatalf("stream url missing:\n%s", rec.Body.String())
	}
}

func TestCallLogRecorder_PersistsAndForwards(t *testing.T) {
	mem := store.NewMemory()
	forwarded := 0
	rec := &callLogRecorder{
		store:  mem,
		next:   notifierFunc(func() { forwarded++ }),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec.CallEnded(context.Background(), session.CallSummary{
		CallSID:   "CA1",
		From:      "+15551230001",
		Mode:      "receptionist",
		StartedAt: started,
		EndedAt:   started.Add(3 * time.Minute),
	})

	log, err := mem.GetCallLog(context.Background(), "CA1")
	if err != nil || log.Outcome != "completed" || log.From != "+15551230001" {
		t.Fatalf("unexpected log: %+v %v", log, err)
	}
	if forwarded != 1 {
		t.Fatalf("summary must reach the next notifier, got %d", forwarded)
	}

	// No call SID means nothing to persist, but the summary still flows.
	rec.CallEnded(context.Background(), session.CallSummary{})
	if forwarded != 2 {
		t.Fatalf("summary without call sid must still forward, got %d", forwarded)
	}
}

type notifierFunc func()

func (f notifierFunc) CallEnded(context.Context, session.CallSummary) { f() }

func TestServer_RequiresDependencies(t *testing.T) {
	if _, err := New(config.Config{}, Dependencies{Tools: stubTools{}, AI: stubDialer{}}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := New(config.Config{}, Dependencies{Store: store.NewMemory(), AI: stubDialer{}}); err == nil {
		t.Fatalf("expected error without tool runner")
	}
	if _, err := New(config.Config{}, Dependencies{Store: store.NewMemory(), Tools: stubTools{}}); err == nil {
		t.Fatalf("expected error without dialer")
	}
}
