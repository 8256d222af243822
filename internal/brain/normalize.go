package brain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jgarciav/vocalis/internal/textenc"
	"github.com/jgarciav/vocalis/internal/turn"
)

// The backend's response shape drifted across versions: a wrapped
// {response: ...} object, a bare segment array, or a single bare segment.
// All the ambiguity is absorbed here; the rest of the pipeline only ever
// sees an ordered []turn.Segment.

type wireSegment struct {
	Text             string          `json:"text"`
	FacialExpression string          `json:"facialExpression"`
	Animation        string          `json:"animation"`
	VoicePrompt      string          `json:"tts_prompt"`
	Lipsync          json.RawMessage `json:"lipsync"`
}

type wireEnvelope struct {
	Response        json.RawMessage `json:"response"`
	Warning         string          `json:"warning"`
	FunctionResults json.RawMessage `json:"function_results"`
}

func normalizeReply(body []byte) (*turn.Turn, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("empty chat response")
	}

	reply := &turn.Turn{}
	inner := json.RawMessage(trimmed)

	if strings.HasPrefix(trimmed, "{") {
		var env wireEnvelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			return nil, fmt.Errorf("decode chat response: %w", err)
		}
		if len(env.Response) > 0 {
			inner = env.Response
			reply.Warning = strings.TrimSpace(env.Warning)
			reply.FunctionResults = env.FunctionResults
		}
	}

	segments, err := decodeSegments(inner)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("chat response carried no segments")
	}

	reply.Segments = segments
	return reply, nil
}

func decodeSegments(raw json.RawMessage) ([]turn.Segment, error) {
	trimmed := strings.TrimSpace(string(raw))

	var wire []wireSegment
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, fmt.Errorf("decode segment list: %w", err)
		}
	case strings.HasPrefix(trimmed, "{"):
		var one wireSegment
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("decode segment: %w", err)
		}
		wire = []wireSegment{one}
	default:
		return nil, fmt.Errorf("unexpected response shape: %.32q", trimmed)
	}

	out := make([]turn.Segment, 0, len(wire))
	for _, w := range wire {
		text := textenc.Repair(strings.TrimSpace(w.Text))
		if text == "" {
			continue
		}
		seg := turn.Segment{
			Text:             text,
			FacialExpression: strings.TrimSpace(w.FacialExpression),
			Animation:        strings.TrimSpace(w.Animation),
			VoicePrompt:      strings.TrimSpace(w.VoicePrompt),
			Lipsync:          w.Lipsync,
			Index:            len(out),
		}
		if seg.FacialExpression == "" {
			seg.FacialExpression = turn.DefaultFacialExpression
		}
		if seg.Animation == "" {
			seg.Animation = turn.DefaultAnimation
		}
		out = append(out, seg)
	}
	return out, nil
}
