// Package session implements the per-call bridge between the telephony
// media stream and the real-time AI connection. One Session owns one
// call; all mutable call state lives on the session loop goroutine.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nimbletel/voicedesk/pkg/bridge/booking"
	"github.com/nimbletel/voicedesk/pkg/bridge/protocol"
	"github.com/nimbletel/voicedesk/pkg/bridge/realtime"
)

type Config struct {
	Voice               string
	MaxAudioFrameBytes  int
	MaxJSONMessageBytes int64
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxSessionDuration  time.Duration
	ToolTimeout         time.Duration
}

// ToolRunner executes one validated tool call. Satisfied by the booking
// service.
type ToolRunner interface {
	Execute(ctx context.Context, sessionID, name string, rawArgs []byte) (map[string]any, *booking.Error)
}

// Notifier receives the finished call summary exactly once per call.
type Notifier interface {
	CallEnded(ctx context.Context, summary CallSummary)
}

type Dependencies struct {
	Conn   *websocket.Conn
	Logger *slog.Logger
	AI     realtime.Dialer
	Tools  ToolRunner

	// Notifier is optional; nil disables post-call notifications.
	Notifier Notifier

	// CustomInstructions, when set, returns extra prompt text stored for
	// a known user. Called once at stream start.
	CustomInstructions func(ctx context.Context, userID string) string

	Config Config
	Now    func() time.Time
}

type Session struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	ai       realtime.Dialer
	tools    ToolRunner
	notifier Notifier
	custom   func(ctx context.Context, userID string) string
	cfg      Config
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	readCh chan inboundFrame
	dialCh chan dialResult
	toolCh chan toolOutcome

	// Call state. Touched only by the Run goroutine.
	streamSID    string
	callSID      string
	mode         string
	instructions string
	aiConn       realtime.Conn
	aiReady      bool
	greetPending bool

	toolCache     map[string]string
	inFlight      map[string]struct{}
	recentCreates map[string]*recentCreate

	lastBookingSeen    bool
	lastBookingCreated bool
	correctionIssued   bool

	turnText strings.Builder
	coach    coachingTracker
	summary  CallSummary
	finished bool
}

type inboundFrame struct {
	data []byte
	err  error
}

type dialResult struct {
	conn realtime.Conn
	err  error
}

func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("transport connection is required")
	}
	if deps.AI == nil {
		return nil, fmt.Errorf("ai dialer is required")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("tool runner is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.ToolTimeout <= 0 {
		deps.Config.ToolTimeout = 15 * time.Second
	}
	if deps.Config.WriteTimeout <= 0 {
		deps.Config.WriteTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn:          deps.Conn,
		logger:        deps.Logger,
		ai:            deps.AI,
		tools:         deps.Tools,
		notifier:      deps.Notifier,
		custom:        deps.CustomInstructions,
		cfg:           deps.Config,
		now:           deps.Now,
		ctx:           ctx,
		cancel:        cancel,
		readCh:        make(chan inboundFrame, 64),
		dialCh:        make(chan dialResult, 1),
		toolCh:        make(chan toolOutcome, 8),
		toolCache:     make(map[string]string),
		inFlight:      make(map[string]struct{}),
		recentCreates: make(map[string]*recentCreate),
	}, nil
}

// Run drives the call to completion. It returns when the transport
// stream stops, either connection fails, or the session deadline hits.
func (s *Session) Run() error {
	defer s.cancel()
	defer s.finish()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
		})
	}
	go s.readLoop()

	var sessionTimer *time.Timer
	if s.cfg.MaxSessionDuration > 0 {
		sessionTimer = time.NewTimer(s.cfg.MaxSessionDuration)
		defer sessionTimer.Stop()
	}
	sessionTimerCh := func() <-chan time.Time {
		if sessionTimer == nil {
			return nil
		}
		return sessionTimer.C
	}
	aiEvents := func() <-chan realtime.Event {
		if s.aiConn == nil {
			return nil
		}
		return s.aiConn.Events()
	}

	for {
		select {
		case <-s.ctx.Done():
			return nil

		case frame, ok := <-s.readCh:
			if !ok || frame.err != nil {
				return nil
			}
			stop, err := s.handleTransportFrame(frame.data)
			if stop || err != nil {
				return err
			}

		case res := <-s.dialCh:
			if res.err != nil {
				s.logger.Error("ai connect failed", "call", s.callSID, "err", res.err)
				return res.err
			}
			s.aiConn = res.conn

		case ev, ok := <-aiEvents():
			if !ok {
				return nil
			}
			stop, err := s.handleAIEvent(ev)
			if stop || err != nil {
				return err
			}

		case out := <-s.toolCh:
			s.completeToolCall(out)

		case <-sessionTimerCh():
			s.logger.Warn("session deadline reached", "call", s.callSID)
			return nil
		}
	}
}

func (s *Session) readLoop() {
	defer close(s.readCh)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case s.readCh <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case s.readCh <- inboundFrame{data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

// handleTransportFrame processes one decoded media-stream frame. The
// returned stop flag ends the session cleanly.
func (s *Session) handleTransportFrame(data []byte) (stop bool, err error) {
	decoded, decErr := protocol.DecodeFrame(data)
	if decErr != nil {
		s.logger.Warn("undecodable transport frame", "call", s.callSID, "err", decErr)
		return false, nil
	}

	switch frame := decoded.(type) {
	case protocol.ConnectedFrame:
		return false, nil

	case protocol.StartFrame:
		s.handleStart(frame)
		return false, nil

	case protocol.MediaFrame:
		// Frames arriving before the AI connection is open are dropped,
		// not buffered.
		if s.aiConn == nil {
			return false, nil
		}
		if s.cfg.MaxAudioFrameBytes > 0 && len(frame.Media.Payload) > s.cfg.MaxAudioFrameBytes {
			s.logger.Warn("oversized audio frame dropped", "call", s.callSID, "bytes", len(frame.Media.Payload))
			return false, nil
		}
		if sendErr := s.aiConn.AppendAudio(frame.Media.Payload); sendErr != nil {
			s.logger.Error("audio forward failed", "call", s.callSID, "err", sendErr)
			return false, sendErr
		}
		return false, nil

	case protocol.StopFrame:
		return true, nil

	case protocol.MarkFrame:
		return false, nil

	default:
		return false, nil
	}
}

func (s *Session) handleStart(frame protocol.StartFrame) {
	if s.callSID != "" {
		return
	}
	s.streamSID = frame.StreamSID
	s.callSID = frame.Start.CallSID
	s.mode = frame.Start.Mode()
	s.greetPending = true

	s.summary.CallSID = s.callSID
	s.summary.StreamSID = s.streamSID
	s.summary.Mode = s.mode
	s.summary.From = frame.Start.From()
	s.summary.To = frame.Start.To()
	s.summary.UserID = frame.Start.UserID()
	s.summary.StartedAt = s.now()

	custom := ""
	if s.custom != nil && s.summary.UserID != "" {
		custom = s.custom(s.ctx, s.summary.UserID)
	}
	s.instructions = instructionsForMode(s.mode, custom)

	s.logger.Info("stream started",
		"call", s.callSID, "stream", s.streamSID, "mode", s.mode, "from", s.summary.From)

	go func() {
		conn, err := s.ai.Dial(s.ctx)
		select {
		case s.dialCh <- dialResult{conn: conn, err: err}:
		case <-s.ctx.Done():
			if conn != nil {
				_ = conn.Close()
			}
		}
	}()
}

func (s *Session) handleAIEvent(ev realtime.Event) (stop bool, err error) {
	switch event := ev.(type) {
	case realtime.ReadyEvent:
		if s.aiReady {
			return false, nil
		}
		s.aiReady = true
		upd := realtime.SessionUpdate{Instructions: s.instructions, Voice: s.cfg.Voice}
		if s.mode == protocol.ModeReceptionist {
			upd.Tools = calendarTools()
		}
		if sendErr := s.aiConn.UpdateSession(upd); sendErr != nil {
			return false, sendErr
		}
		if s.greetPending {
			s.greetPending = false
			_ = s.aiConn.InjectSystemMessage(greetingInstruction)
			_ = s.aiConn.CreateResponse()
		}
		return false, nil

	case realtime.AudioDeltaEvent:
		// Audio arriving before the stream identifier is known is dropped.
		if s.streamSID == "" {
			return false, nil
		}
		data, encErr := protocol.EncodeMedia(s.streamSID, event.DeltaB64)
		if encErr != nil {
			return false, nil
		}
		return false, s.writeTransport(data)

	case realtime.SpeechStartedEvent:
		// Caller barge-in: flush any queued assistant audio downstream.
		if s.streamSID == "" {
			return false, nil
		}
		data, encErr := protocol.EncodeClear(s.streamSID)
		if encErr != nil {
			return false, nil
		}
		return false, s.writeTransport(data)

	case realtime.TextDeltaEvent:
		s.turnText.WriteString(event.Delta)
		return false, nil

	case realtime.TranscriptDeltaEvent:
		s.turnText.WriteString(event.Delta)
		return false, nil

	case realtime.TranscriptDoneEvent:
		if event.Transcript != "" {
			s.turnText.Reset()
			s.turnText.WriteString(event.Transcript)
		}
		return false, nil

	case realtime.TurnDoneEvent:
		text := s.turnText.String()
		s.turnText.Reset()
		s.observeAssistantTurn(text)
		return false, nil

	case realtime.UserTranscriptEvent:
		if s.mode == protocol.ModeCoaching {
			s.coach.ObserveLearner(event.Transcript)
		}
		return false, nil

	case realtime.ToolCallEvent:
		s.handleToolCall(event)
		return false, nil

	case realtime.ErrorEvent:
		s.logger.Warn("ai error event", "call", s.callSID, "code", event.Code, "message", event.Message)
		return false, nil

	case realtime.ClosedEvent:
		if event.Err != nil {
			s.logger.Warn("ai connection closed", "call", s.callSID, "err", event.Err)
		}
		return true, nil

	default:
		return false, nil
	}
}

// observeAssistantTurn runs the per-turn bookkeeping once a spoken turn
// completes: claim correction in receptionist mode, marker counting in
// coaching mode.
func (s *Session) observeAssistantTurn(text string) {
	if text == "" {
		return
	}
	switch s.mode {
	case protocol.ModeCoaching:
		s.coach.ObserveCoach(text)

	case protocol.ModeReceptionist:
		if !containsBookingClaim(text) {
			return
		}
		if !s.lastBookingSeen || s.lastBookingCreated || s.correctionIssued {
			return
		}
		s.correctionIssued = true
		s.logger.Warn("unconfirmed booking claim detected", "call", s.callSID)
		if s.aiConn != nil {
			_ = s.aiConn.InjectSystemMessage(claimCorrectionInstruction)
			_ = s.aiConn.CreateResponse()
		}
	}
}

func (s *Session) writeTransport(data []byte) error {
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(s.now().Add(s.cfg.WriteTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// finish runs the end-of-call sequence once: commit buffered audio,
// close the AI leg, compute per-mode results, fire the notification.
func (s *Session) finish() {
	if s.finished {
		return
	}
	s.finished = true
	s.summary.EndedAt = s.now()

	if s.aiConn != nil {
		if s.aiReady {
			_ = s.aiConn.CommitAudio()
		}
		_ = s.aiConn.Close()
	}

	if s.mode == protocol.ModeCoaching {
		s.summary.Coaching = s.coach.Report()
		s.logger.Info("coaching call finished",
			"call", s.callSID,
			"score", s.summary.Coaching.Score,
			"tier", s.summary.Coaching.Tier,
			"opted_out", s.summary.Coaching.OptedOut)
		return
	}

	if s.callSID != "" && s.notifier != nil {
		s.notifier.CallEnded(context.Background(), s.summary)
	}
	s.logger.Info("call finished",
		"call", s.callSID,
		"booked", s.summary.AppointmentBooked,
		"duration", s.summary.Duration())
}

// Summary exposes the accumulated call summary for tests and callers
// that need it after Run returns.
func (s *Session) Summary() CallSummary { return s.summary }
