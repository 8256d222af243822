package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// The websocket path is hot (one frame per audio segment, plus status pushes),
// so frames go through sonic instead of encoding/json.

// Encode serializes an outbound message.
func Encode(msg any) ([]byte, error) {
	b, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %T: %w", msg, err)
	}
	return b, nil
}

// Decode deserializes a frame into a typed message.
func Decode(raw []byte, v any) error {
	if err := sonic.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("protocol: decode: %w", err)
	}
	return nil
}

// DecodeEnvelope reads only the type discriminator of a frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: invalid envelope: %w", err)
	}
	return env, nil
}
