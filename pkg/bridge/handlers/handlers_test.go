package handlers

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

	"github.com/gorilla/websocket"

	"github.com/nimbletel/voicedesk/pkg/bridge/booking"
	"github.com/nimbletel/voicedesk/pkg/bridge/realtime"
	"github.com/nimbletel/voicedesk/pkg/bridge/session"
	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVoiceHandler_RendersStreamMarkup(t *testing.T) {
	h := &VoiceHandler{
		StreamURL: "wss://voice.example.com/stream",
		Greeting:  "Please hold.",
		Logger:    discardLogger(),
	}

	form := url.Values{
		"CallSid": {"CA123"},
		"From":    {"+15551230001"},
		"To":      {"+15551230002"},
	}
	req := httptest.NewRequest(http.MethodPost, "/voice?mode=coaching&userId=u1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"wss://voice.example.com/stream",
		`name="mode" value="coaching"`,
		`name="callSid" value="CA123"`,
		`name="userId" value="u1"`,
		"Please hold.",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("markup missing %q:\n%s", want, body)
		}
	}
}

func TestVoiceHandler_RejectsGet(t *testing.T) {
	h := &VoiceHandler{StreamURL: "wss://voice.example.com/stream", Logger: discardLogger()}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voice", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func postStatus(t *testing.T, h http.Handler, callSID, status string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	if callSID != "" {
		form.Set("CallSid", callSID)
	}
	form.Set("CallStatus", status)
	req := httptest.NewRequest(http.MethodPost, "/voice/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusHandler_RecordsOutcome(t *testing.T) {
	mem := store.NewMemory()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	h := &StatusHandler{Store: mem, Logger: discardLogger(), Now: func() time.Time { return now }}

	if rec := postStatus(t, h, "CA1", "completed"); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	log, err := mem.GetCallLog(context.Background(), "CA1")
	if err != nil || log.Outcome != "completed" || !log.EndedAt.Equal(now) {
		t.Fatalf("unexpected log: %+v %v", log, err)
	}
}

func TestStatusHandler_BlockedDeactivatesUser(t *testing.T) {
	mem := store.NewMemory()
	mem.PutUser(store.User{ID: "u1", Active: true})
	if err := mem.UpsertCallLog(context.Background(), store.CallLog{CallSID: "CA9", UserID: "u1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := &StatusHandler{Store: mem, Logger: discardLogger()}

	if rec := postStatus(t, h, "CA9", "blocked"); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	user, err := mem.GetUser(context.Background(), "u1")
	if err != nil || user.Active {
		t.Fatalf("blocked call must deactivate the user: %+v %v", user, err)
	}
}

func TestStatusHandler_RequiresCallSid(t *testing.T) {
	h := &StatusHandler{Store: store.NewMemory(), Logger: discardLogger()}
	if rec := postStatus(t, h, "", "completed"); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

type stubConn struct {
	events chan realtime.Event
}

func (c *stubConn) UpdateSession(realtime.SessionUpdate) error { return nil }
func (c *stubConn) AppendAudio(string) error                   { return nil }
func (c *stubConn) CommitAudio() error                         { return nil }
func (c *stubConn) CreateResponse() error                      { return nil }
func (c *stubConn) InjectSystemMessage(string) error           { return nil }
func (c *stubConn) SendToolResult(string, string) error        { return nil }
func (c *stubConn) Events() <-chan realtime.Event              { return c.events }
func (c *stubConn) Close() error                               { return nil }

type stubDialer struct{}

func (stubDialer) Dial(ctx context.Context) (realtime.Conn, error) {
	return &stubConn{events: make(chan realtime.Event)}, nil
}

type stubTools struct{}

func (stubTools) Execute(ctx context.Context, sessionID, name string, rawArgs []byte) (map[string]any, *booking.Error) {
	return map[string]any{}, nil
}

func TestStreamHandler_RunsSessionUntilStop(t *testing.T) {
	h := NewStreamHandler(session.Dependencies{
		Logger: discardLogger(),
		AI:     stubDialer{},
		Tools:  stubTools{},
	}, 5*time.Second, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	start := `{"event":"start","streamSid":"MZ1","start":{"callSid":"CA1","customParameters":{"mode":"receptionist"}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(start)); err != nil {
		t.Fatalf("write start: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"stop"}`)); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	// The session loop should finish and the server should close the
	// connection.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
