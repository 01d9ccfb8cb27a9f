package realtime

import (
	"encoding/json"
	"strings"
)

// Event is a typed event decoded from the real-time AI connection.
type Event interface {
	eventType() string
}

// ReadyEvent signals that the remote session is established and the
// connection can accept audio and tool configuration.
type ReadyEvent struct {
	SessionID string
}

func (e ReadyEvent) eventType() string { return "ready" }

// AudioDeltaEvent carries a chunk of assistant speech as opaque base64.
type AudioDeltaEvent struct {
	ResponseID string
	DeltaB64   string
}

func (e AudioDeltaEvent) eventType() string { return "audio_delta" }

// TextDeltaEvent carries incremental assistant text output.
type TextDeltaEvent struct {
	ResponseID string
	Delta      string
}

func (e TextDeltaEvent) eventType() string { return "text_delta" }

// TranscriptDeltaEvent carries incremental transcript of assistant speech.
type TranscriptDeltaEvent struct {
	ResponseID string
	Delta      string
}

func (e TranscriptDeltaEvent) eventType() string { return "transcript_delta" }

// TranscriptDoneEvent carries the final transcript of one assistant turn.
type TranscriptDoneEvent struct {
	ResponseID string
	Transcript string
}

func (e TranscriptDoneEvent) eventType() string { return "transcript_done" }

// UserTranscriptEvent carries the transcript of one completed caller
// utterance.
type UserTranscriptEvent struct {
	ItemID     string
	Transcript string
}

func (e UserTranscriptEvent) eventType() string { return "user_transcript" }

// ToolCallEvent is a structured function-call request from the AI. The
// reply must be correlated by CallID.
type ToolCallEvent struct {
	CallID        string
	Name          string
	ArgumentsJSON string
}

func (e ToolCallEvent) eventType() string { return "tool_call" }

// SpeechStartedEvent signals caller barge-in detected by the AI's VAD.
type SpeechStartedEvent struct{}

func (e SpeechStartedEvent) eventType() string { return "speech_started" }

// TurnDoneEvent marks the end of one assistant response turn.
type TurnDoneEvent struct {
	ResponseID string
}

func (e TurnDoneEvent) eventType() string { return "turn_done" }

// ErrorEvent is a remote error report. Fatal errors are followed by
// connection close.
type ErrorEvent struct {
	Code    string
	Message string
}

func (e ErrorEvent) eventType() string { return "error" }

// ClosedEvent is emitted once when the connection terminates; Err is nil
// on clean close.
type ClosedEvent struct {
	Err error
}

func (e ClosedEvent) eventType() string { return "closed" }

// UnknownEvent preserves event types this client does not interpret.
type UnknownEvent struct {
	Type string
}

func (e UnknownEvent) eventType() string { return e.Type }

func decodeServerEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	switch strings.TrimSpace(envelope.Type) {
	case "session.created", "session.updated":
		var msg struct {
			Session struct {
				ID string `json:"id"`
			} `json:"session"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return ReadyEvent{SessionID: msg.Session.ID}, nil
	case "response.audio.delta":
		var msg struct {
			ResponseID string `json:"response_id"`
			Delta      string `json:"delta"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return AudioDeltaEvent{ResponseID: msg.ResponseID, DeltaB64: msg.Delta}, nil
	case "response.text.delta":
		var msg struct {
			ResponseID string `json:"response_id"`
			Delta      string `json:"delta"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return TextDeltaEvent{ResponseID: msg.ResponseID, Delta: msg.Delta}, nil
	case "response.text.done":
		var msg struct {
			ResponseID string `json:"response_id"`
			Text       string `json:"text"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		// The final text is the authoritative rendering of the turn, same
		// as a finished audio transcript.
		return TranscriptDoneEvent{ResponseID: msg.ResponseID, Transcript: msg.Text}, nil
	case "response.audio_transcript.delta":
		var msg struct {
			ResponseID string `json:"response_id"`
			Delta      string `json:"delta"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return TranscriptDeltaEvent{ResponseID: msg.ResponseID, Delta: msg.Delta}, nil
	case "response.audio_transcript.done":
		var msg struct {
			ResponseID string `json:"response_id"`
			Transcript string `json:"transcript"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return TranscriptDoneEvent{ResponseID: msg.ResponseID, Transcript: msg.Transcript}, nil
	case "conversation.item.input_audio_transcription.completed":
		var msg struct {
			ItemID     string `json:"item_id"`
			Transcript string `json:"transcript"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return UserTranscriptEvent{ItemID: msg.ItemID, Transcript: msg.Transcript}, nil
	case "response.function_call_arguments.done":
		var msg struct {
			CallID    string `json:"call_id"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return ToolCallEvent{CallID: msg.CallID, Name: msg.Name, ArgumentsJSON: msg.Arguments}, nil
	case "input_audio_buffer.speech_started":
		return SpeechStartedEvent{}, nil
	case "response.done":
		var msg struct {
			Response struct {
				ID string `json:"id"`
			} `json:"response"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return TurnDoneEvent{ResponseID: msg.Response.ID}, nil
	case "error":
		var msg struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return ErrorEvent{Code: msg.Error.Code, Message: msg.Error.Message}, nil
	default:
		return UnknownEvent{Type: envelope.Type}, nil
	}
}
