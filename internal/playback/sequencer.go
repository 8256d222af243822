// Package playback walks a turn's segments in strict order, driving the
// frontend's single audio handle.
package playback

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jgarciav/vocalis/internal/observability"
	"github.com/jgarciav/vocalis/internal/turn"
)

// Phase is the lifecycle of one segment inside the sequencer.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
	PhaseSkipped Phase = "skipped"
)

// Loader supplies per-segment audio, synthesizing on demand when the preload
// loop has not reached the segment yet.
type Loader interface {
	Load(ctx context.Context, idx int) ([]byte, error)
}

// Sink receives the sequencer's externally visible effects. AnnounceSegment
// replaces whatever the frontend is currently playing; there is never more
// than one active handle.
type Sink interface {
	AnnounceSegment(seg turn.Segment, audio []byte)
	TurnFinished(playedAny bool)
}

// Sequencer plays exactly one turn. The cursor only moves forward; a segment
// whose synthesis failed is skipped and the next one is pulled. A fallback
// timer scaled to the segment's length guards against the frontend never
// reporting completion.
type Sequencer struct {
	loader          Loader
	sink            Sink
	segments        []turn.Segment
	fallbackBase    time.Duration
	fallbackPerRune time.Duration
	metrics         *observability.Metrics
	log             zerolog.Logger

	// Capacity 1: duplicate completion signals coalesce, and a late
	// duplicate left over from the previous segment is drained before the
	// next one starts playing.
	completions chan struct{}

	mu     sync.Mutex
	phases []Phase
	cursor int
}

func NewSequencer(loader Loader, sink Sink, segments []turn.Segment, fallbackBase, fallbackPerRune time.Duration, metrics *observability.Metrics, log zerolog.Logger) *Sequencer {
	phases := make([]Phase, len(segments))
	for i := range phases {
		phases[i] = PhaseIdle
	}
	return &Sequencer{
		loader:          loader,
		sink:            sink,
		segments:        segments,
		fallbackBase:    fallbackBase,
		fallbackPerRune: fallbackPerRune,
		metrics:         metrics,
		log:             log,
		completions:     make(chan struct{}, 1),
		phases:          phases,
		cursor:          -1,
	}
}

// SignalPlayed marks the current segment as finished. The direct
// message_played acknowledgement and the broadcast audio_ended event both
// land here; whichever arrives first wins and the other becomes a no-op.
func (s *Sequencer) SignalPlayed() {
	select {
	case s.completions <- struct{}{}:
	default:
	}
}

// Run plays all segments in order and blocks until the turn is finished or
// the context is cancelled by a newer session. Cancellation produces no
// TurnFinished call; the superseding turn owns the frontend from then on.
func (s *Sequencer) Run(ctx context.Context) {
	playedAny := false

	for i := range s.segments {
		audio, err := s.loader.Load(ctx, i)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.setPhase(i, PhaseSkipped)
			s.metrics.TurnEvents.WithLabelValues("segment_skipped").Inc()
			s.log.Warn().Err(err).Int("segment", i).Msg("segment unplayable, skipping")
			continue
		}

		s.drainCompletions()
		s.startSegment(i)
		playedAny = true
		start := time.Now()
		s.sink.AnnounceSegment(s.segments[i], audio)

		timer := time.NewTimer(s.fallbackFor(s.segments[i].Text))
		select {
		case <-s.completions:
			timer.Stop()
		case <-timer.C:
			s.metrics.TurnEvents.WithLabelValues("fallback_fire").Inc()
			s.log.Warn().Int("segment", i).Msg("no completion signal, advancing on fallback timer")
		case <-ctx.Done():
			timer.Stop()
			return
		}
		s.setPhase(i, PhaseEnded)
		s.metrics.ObserveSegmentPlayTime(time.Since(start))
	}

	if ctx.Err() == nil {
		s.sink.TurnFinished(playedAny)
	}
}

// fallbackFor scales the stall timeout with the segment length so long
// replies are not cut off, with a floor for very short ones.
func (s *Sequencer) fallbackFor(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * s.fallbackPerRune
	if d < s.fallbackBase {
		d = s.fallbackBase
	}
	return d
}

func (s *Sequencer) startSegment(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[idx] = PhasePlaying
	s.cursor = idx
}

func (s *Sequencer) setPhase(idx int, p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[idx] = p
}

func (s *Sequencer) drainCompletions() {
	select {
	case <-s.completions:
	default:
	}
}

// Phase reports where a segment is in its lifecycle.
func (s *Sequencer) Phase(idx int) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.phases) {
		return PhaseIdle
	}
	return s.phases[idx]
}

// Cursor reports the index of the segment currently playing, or -1 before
// playback starts.
func (s *Sequencer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
