// Package preload drives per-segment speech synthesis ahead of playback.
package preload

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jgarciav/vocalis/internal/observability"
	"github.com/jgarciav/vocalis/internal/speech"
	"github.com/jgarciav/vocalis/internal/turn"
)

// Short transitional fillers prepended to background segments so multi-part
// speech flows naturally across segment boundaries.
var fillerPhrases = []string{
	"Mmm...",
	"Eh...",
	"A ver...",
	"Pues...",
	"Bueno...",
}

// Scheduler owns the preload cache for exactly one turn. Segment 0 is
// synthesized with top priority via LoadFirst; Start then fills 1..N-1 in
// order while playback is already running. The once-per-segment guard
// (pending -> loading -> loaded|error) is shared by the background loop and
// by on-demand loads from the sequencer, so no segment is ever synthesized
// twice.
type Scheduler struct {
	synth    speech.Synthesizer
	segments []turn.Segment
	fillers  []string
	metrics  *observability.Metrics
	log      zerolog.Logger

	mu     sync.Mutex
	states []turn.SegmentState
	audio  map[int][]byte
	errs   map[int]error
	done   map[int]chan struct{}

	// Closed when segment 0 leaves pending; the background loop holds off
	// until then so the first segment's request is always issued first.
	firstIssued chan struct{}
}

func NewScheduler(synth speech.Synthesizer, segments []turn.Segment, metrics *observability.Metrics, log zerolog.Logger) *Scheduler {
	states := make([]turn.SegmentState, len(segments))
	for i := range states {
		states[i] = turn.SegmentPending
	}

	// Fillers are chosen once at turn creation so an on-demand load and the
	// background loop would synthesize identical audio for the same segment.
	fillers := make([]string, len(segments))
	for i := 1; i < len(segments); i++ {
		fillers[i] = fillerPhrases[rand.Intn(len(fillerPhrases))]
	}

	return &Scheduler{
		synth:       synth,
		segments:    segments,
		fillers:     fillers,
		metrics:     metrics,
		log:         log,
		states:      states,
		audio:       make(map[int][]byte),
		errs:        make(map[int]error),
		done:        make(map[int]chan struct{}),
		firstIssued: make(chan struct{}),
	}
}

// LoadFirst synthesizes segment 0 with top priority. The caller blocks on it
// because the user must hear a reply as soon as possible.
func (s *Scheduler) LoadFirst(ctx context.Context) ([]byte, error) {
	return s.Load(ctx, 0)
}

// Start launches the background loop synthesizing segments 1..N-1 in order.
// It returns immediately; the loop runs concurrently with playback.
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.segments) < 2 {
		return
	}
	go func() {
		select {
		case <-s.firstIssued:
		case <-ctx.Done():
			return
		}
		for i := 1; i < len(s.segments); i++ {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.Load(ctx, i); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Int("segment", i).Msg("background synthesis failed")
			}
		}
	}()
}

// Load returns the cached audio for a segment, synthesizing it at most once.
// Concurrent callers for the same index share one in-flight call.
func (s *Scheduler) Load(ctx context.Context, idx int) ([]byte, error) {
	if idx < 0 || idx >= len(s.segments) {
		return nil, fmt.Errorf("segment index %d out of range", idx)
	}

	for {
		s.mu.Lock()
		switch s.states[idx] {
		case turn.SegmentLoaded:
			audio := s.audio[idx]
			s.mu.Unlock()
			s.metrics.TurnEvents.WithLabelValues("preload_cache_hit").Inc()
			return audio, nil
		case turn.SegmentError:
			err := s.errs[idx]
			s.mu.Unlock()
			return nil, err
		case turn.SegmentLoading:
			ch := s.done[idx]
			s.mu.Unlock()
			select {
			case <-ch:
				// Re-read the final state.
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case turn.SegmentPending:
			ch := make(chan struct{})
			s.states[idx] = turn.SegmentLoading
			s.done[idx] = ch
			if idx == 0 {
				close(s.firstIssued)
			}
			s.mu.Unlock()
			return s.synthesize(ctx, idx, ch)
		}
	}
}

func (s *Scheduler) synthesize(ctx context.Context, idx int, done chan struct{}) ([]byte, error) {
	defer close(done)

	seg := s.segments[idx]
	input := seg.Text
	if s.fillers[idx] != "" {
		input = s.fillers[idx] + " " + input
	}

	audio, err := s.synth.Synthesize(ctx, input, seg.VoicePrompt)
	if err == nil && ctx.Err() != nil {
		// Completed after the turn was superseded; never cache stale audio.
		err = ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.states[idx] = turn.SegmentError
		s.errs[idx] = err
		s.metrics.TurnEvents.WithLabelValues("synthesis_error").Inc()
		return nil, err
	}
	s.states[idx] = turn.SegmentLoaded
	s.audio[idx] = audio
	return audio, nil
}

// State reports the synthesis state of a segment.
func (s *Scheduler) State(idx int) turn.SegmentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.states) {
		return turn.SegmentPending
	}
	return s.states[idx]
}
