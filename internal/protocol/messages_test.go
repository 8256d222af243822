package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageChat(t *testing.T) {
	raw := []byte(`{"type":"client_chat","session_id":"s1","text":"Hola","ts_ms":123}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	chat, ok := msg.(ClientChat)
	if !ok {
		t.Fatalf("message type = %T, want ClientChat", msg)
	}
	if chat.SessionID != "s1" || chat.Text != "Hola" {
		t.Fatalf("unexpected client chat: %+v", chat)
	}
}

func TestParseClientMessageCompletionSignals(t *testing.T) {
	played, err := ParseClientMessage([]byte(`{"type":"client_message_played","session_id":"s1"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage(message_played) error = %v", err)
	}
	if _, ok := played.(ClientMessagePlayed); !ok {
		t.Fatalf("message type = %T, want ClientMessagePlayed", played)
	}

	ended, err := ParseClientMessage([]byte(`{"type":"client_audio_ended","session_id":"s1"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage(audio_ended) error = %v", err)
	}
	if _, ok := ended.(ClientAudioEnded); !ok {
		t.Fatalf("message type = %T, want ClientAudioEnded", ended)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestEncodeDecodeAvatarMessage(t *testing.T) {
	in := AvatarMessage{
		Type:             TypeAvatarMessage,
		SessionID:        "s1",
		TurnToken:        3,
		SegmentIndex:     1,
		Text:             "Estoy aquí para ti.",
		FacialExpression: "smile",
		Animation:        "Talking_1",
	}
	raw, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var out AvatarMessage
	if err := Decode(raw, &out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.Text != in.Text || out.SegmentIndex != 1 || out.TurnToken != 3 {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}
