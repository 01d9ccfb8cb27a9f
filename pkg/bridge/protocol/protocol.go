// Package protocol defines the media-stream wire protocol spoken by the
// telephony transport over its WebSocket connection. Frames are JSON
// envelopes discriminated by an "event" field.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

// Session modes carried as stream parameters on the start frame.
const (
	ModeReceptionist = "receptionist"
	ModeCoaching     = "coaching"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type StartPayload struct {
	AccountSID       string            `json:"accountSid,omitempty"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
}

// Mode returns the session mode parameter, defaulting to receptionist.
func (p StartPayload) Mode() string {
	mode := strings.ToLower(strings.TrimSpace(p.CustomParameters["mode"]))
	switch mode {
	case ModeReceptionist, ModeCoaching:
		return mode
	default:
		return ModeReceptionist
	}
}

func (p StartPayload) From() string {
	return strings.TrimSpace(p.CustomParameters["from"])
}

func (p StartPayload) To() string {
	return strings.TrimSpace(p.CustomParameters["to"])
}

func (p StartPayload) UserID() string {
	return strings.TrimSpace(p.CustomParameters["userId"])
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type StopPayload struct {
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid"`
}

type ConnectedFrame struct {
	Protocol string `json:"protocol,omitempty"`
	Version  string `json:"version,omitempty"`
}

type StartFrame struct {
	StreamSID string       `json:"streamSid"`
	Start     StartPayload `json:"start"`
}

type MediaFrame struct {
	StreamSID string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

type MarkFrame struct {
	StreamSID string      `json:"streamSid"`
	Mark      MarkPayload `json:"mark"`
}

type StopFrame struct {
	StreamSID string      `json:"streamSid"`
	Stop      StopPayload `json:"stop"`
}

// DecodeFrame decodes one inbound transport frame into its typed form.
func DecodeFrame(data []byte) (any, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	event := strings.TrimSpace(envelope.Event)
	if event == "" {
		return nil, badRequest("missing event", "event")
	}

	switch event {
	case EventConnected:
		var msg ConnectedFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid connected frame", "")
		}
		return msg, nil
	case EventStart:
		var msg StartFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start frame", "")
		}
		if strings.TrimSpace(msg.StreamSID) == "" {
			return nil, badRequest("start.streamSid is required", "streamSid")
		}
		if strings.TrimSpace(msg.Start.CallSID) == "" {
			return nil, badRequest("start.callSid is required", "start.callSid")
		}
		return msg, nil
	case EventMedia:
		var msg MediaFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid media frame", "")
		}
		if strings.TrimSpace(msg.Media.Payload) == "" {
			return nil, badRequest("media.payload is required", "media.payload")
		}
		return msg, nil
	case EventMark:
		var msg MarkFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid mark frame", "")
		}
		if strings.TrimSpace(msg.Mark.Name) == "" {
			return nil, badRequest("mark.name is required", "mark.name")
		}
		return msg, nil
	case EventStop:
		var msg StopFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid stop frame", "")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported event type", "event")
	}
}

type outboundMedia struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// EncodeMedia builds an outbound media frame carrying opaque base64 audio.
func EncodeMedia(streamSID, payloadB64 string) ([]byte, error) {
	if strings.TrimSpace(streamSID) == "" {
		return nil, fmt.Errorf("streamSid is required")
	}
	frame := outboundMedia{Event: EventMedia, StreamSID: streamSID}
	frame.Media.Payload = payloadB64
	return json.Marshal(frame)
}

type outboundClear struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// EncodeClear builds a clear frame instructing the transport to drop any
// assistant audio still queued for playback.
func EncodeClear(streamSID string) ([]byte, error) {
	if strings.TrimSpace(streamSID) == "" {
		return nil, fmt.Errorf("streamSid is required")
	}
	return json.Marshal(outboundClear{Event: EventClear, StreamSID: streamSID})
}
