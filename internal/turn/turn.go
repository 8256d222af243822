// Package turn defines the unit of work triggered by one user utterance.
package turn

import "encoding/json"

// SegmentState tracks per-segment synthesis progress.
type SegmentState string

const (
	SegmentPending SegmentState = "pending"
	SegmentLoading SegmentState = "loading"
	SegmentLoaded  SegmentState = "loaded"
	SegmentError   SegmentState = "error"
)

const (
	DefaultFacialExpression = "default"
	DefaultAnimation        = "Talking_1"
)

// Segment is one unit of spoken output within a turn.
type Segment struct {
	Text             string          `json:"text"`
	FacialExpression string          `json:"facialExpression"`
	Animation        string          `json:"animation"`
	VoicePrompt      string          `json:"tts_prompt,omitempty"`
	Lipsync          json.RawMessage `json:"lipsync,omitempty"`

	// Index is the segment's position in the turn's reply list. Playback
	// visits indices strictly in order.
	Index int `json:"-"`
}

// Turn carries one utterance and the normalized reply produced for it.
type Turn struct {
	Input    string
	Token    int64
	Segments []Segment

	// Warning is the backend's token-budget warning, empty when absent.
	Warning         string
	FunctionResults json.RawMessage
}
