// Package realtime implements the WebSocket client for the hosted
// real-time speech AI. One Conn belongs to exactly one call session.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultConnectTimeout = 15 * time.Second

// Tool describes one function-call tool surfaced to the AI. Field names
// must match the upstream structured-call mechanism exactly.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// SessionUpdate configures the remote session after connect.
type SessionUpdate struct {
	Instructions string
	Voice        string
	Tools        []Tool
}

// Conn is one live connection to the real-time AI. Implementations must
// be safe for concurrent sends; Events is read by a single consumer.
type Conn interface {
	UpdateSession(upd SessionUpdate) error
	AppendAudio(payloadB64 string) error
	CommitAudio() error
	CreateResponse() error
	InjectSystemMessage(text string) error
	SendToolResult(callID, outputJSON string) error
	Events() <-chan Event
	Close() error
}

// Dialer opens Conns. The session bridge depends on this interface so
// tests can substitute a fake peer.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type Config struct {
	URL            string
	APIKey         string
	Model          string
	ConnectTimeout time.Duration
}

type WSDialer struct {
	cfg Config
}

func NewDialer(cfg Config) (*WSDialer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("realtime url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("realtime api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("realtime model is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &WSDialer{cfg: cfg}, nil
}

func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	url := d.cfg.URL
	if !strings.Contains(url, "model=") {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "model=" + d.cfg.Model
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.ConnectTimeout}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}

	c := &wsConn{
		ws:     ws,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	ws     *websocket.Conn
	events chan Event

	writeMu sync.Mutex

	mu     sync.Mutex
	err    error
	closed bool
	done   chan struct{}
}

func (c *wsConn) Events() <-chan Event { return c.events }

func (c *wsConn) UpdateSession(upd SessionUpdate) error {
	session := map[string]any{
		"modalities":          []string{"audio", "text"},
		"input_audio_format":  "g711_ulaw",
		"output_audio_format": "g711_ulaw",
		"input_audio_transcription": map[string]any{
			"model": "whisper-1",
		},
		"turn_detection": map[string]any{
			"type": "server_vad",
		},
	}
	if strings.TrimSpace(upd.Instructions) != "" {
		session["instructions"] = upd.Instructions
	}
	if strings.TrimSpace(upd.Voice) != "" {
		session["voice"] = upd.Voice
	}
	if len(upd.Tools) > 0 {
		session["tools"] = upd.Tools
		session["tool_choice"] = "auto"
	}
	return c.sendJSON(map[string]any{"type": "session.update", "session": session})
}

func (c *wsConn) AppendAudio(payloadB64 string) error {
	return c.sendJSON(map[string]any{"type": "input_audio_buffer.append", "audio": payloadB64})
}

func (c *wsConn) CommitAudio() error {
	return c.sendJSON(map[string]any{"type": "input_audio_buffer.commit"})
}

func (c *wsConn) CreateResponse() error {
	return c.sendJSON(map[string]any{"type": "response.create"})
}

func (c *wsConn) InjectSystemMessage(text string) error {
	return c.sendJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "system",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
}

func (c *wsConn) SendToolResult(callID, outputJSON string) error {
	return c.sendJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  outputJSON,
		},
	})
}

func (c *wsConn) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isClosed() {
		return fmt.Errorf("realtime connection is closed")
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			c.emit(ClosedEvent{Err: c.readErr()})
			return
		}
		event, decErr := decodeServerEvent(data)
		if decErr != nil {
			// Undecodable frames are dropped; the stream stays usable.
			continue
		}
		c.emit(event)
	}
}

func (c *wsConn) emit(event Event) {
	select {
	case c.events <- event:
	case <-c.done:
	}
}

func (c *wsConn) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil && !c.closed {
		c.err = err
	}
}

func (c *wsConn) readErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}
