package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client -> server.
	TypeClientChat          MessageType = "client_chat"
	TypeClientMessagePlayed MessageType = "client_message_played"
	// Broadcast channel equivalent of message_played; treated as the same
	// completion signal and idempotent with it.
	TypeClientAudioEnded MessageType = "client_audio_ended"

	// Server -> client.
	TypeAvatarMessage    MessageType = "avatar_message"
	TypeResponseShown    MessageType = "response_shown"
	TypeResponsesReset   MessageType = "responses_reset"
	TypeThinking         MessageType = "thinking"
	TypeLoading          MessageType = "loading"
	TypeProcessingStatus MessageType = "processing_status"
	TypeFunctionResults  MessageType = "function_results"
	TypeStopAudio        MessageType = "stop_audio"
	TypeTurnEnd          MessageType = "turn_end"
	TypeWarning          MessageType = "warning"
	TypeErrorEvent       MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientChat struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

type ClientMessagePlayed struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TSMs      int64       `json:"ts_ms"`
}

type ClientAudioEnded struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TSMs      int64       `json:"ts_ms"`
}

// AvatarMessage is the currently playing segment payload.
type AvatarMessage struct {
	Type             MessageType     `json:"type"`
	SessionID        string          `json:"session_id"`
	TurnToken        int64           `json:"turn_token"`
	SegmentIndex     int             `json:"segment_index"`
	Text             string          `json:"text"`
	FacialExpression string          `json:"facialExpression"`
	Animation        string          `json:"animation"`
	AudioBase64      string          `json:"audio_base64,omitempty"`
	Lipsync          json.RawMessage `json:"lipsync,omitempty"`
}

// ResponseShown appends one line to the UI's ordered display responses.
type ResponseShown struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnToken int64       `json:"turn_token"`
	Text      string      `json:"text"`
}

// ResponsesReset clears the UI's display responses at the start of a turn.
type ResponsesReset struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnToken int64       `json:"turn_token"`
}

type Thinking struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Active    bool        `json:"active"`
}

type Loading struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Active    bool        `json:"active"`
}

type ProcessingStatus struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnToken int64       `json:"turn_token"`
	Status    string      `json:"status"`
}

type FunctionResults struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"session_id"`
	TurnToken int64           `json:"turn_token"`
	Results   json.RawMessage `json:"results"`
}

// StopAudio tells the renderer to release the shared playback handle.
type StopAudio struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type TurnEnd struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnToken int64       `json:"turn_token"`
	Reason    string      `json:"reason"`
}

type Warning struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes one inbound websocket frame.
func ParseClientMessage(raw []byte) (any, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeClientChat:
		var msg ClientChat
		if err := Decode(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, errors.New("invalid client_chat")
		}
		return msg, nil
	case TypeClientMessagePlayed:
		var msg ClientMessagePlayed
		if err := Decode(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeClientAudioEnded:
		var msg ClientAudioEnded
		if err := Decode(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
