package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jgarciav/vocalis/internal/observability"
	"github.com/jgarciav/vocalis/internal/turn"
)

func testMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics(fmt.Sprintf("vocalis_test_playback_%d", time.Now().UnixNano()))
}

func segs(texts ...string) []turn.Segment {
	out := make([]turn.Segment, len(texts))
	for i, text := range texts {
		out[i] = turn.Segment{Text: text, Index: i}
	}
	return out
}

type stubLoader struct {
	fail map[int]error
}

func (l *stubLoader) Load(ctx context.Context, idx int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := l.fail[idx]; ok {
		return nil, err
	}
	return []byte(fmt.Sprintf("audio-%d", idx)), nil
}

type recordingSink struct {
	mu        sync.Mutex
	announced []int
	finished  []bool

	// onAnnounce runs synchronously inside AnnounceSegment.
	onAnnounce func(seg turn.Segment)
}

func (s *recordingSink) AnnounceSegment(seg turn.Segment, audio []byte) {
	s.mu.Lock()
	s.announced = append(s.announced, seg.Index)
	s.mu.Unlock()
	if s.onAnnounce != nil {
		s.onAnnounce(seg)
	}
}

func (s *recordingSink) TurnFinished(playedAny bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, playedAny)
}

func (s *recordingSink) snapshot() ([]int, []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	announced := append([]int(nil), s.announced...)
	finished := append([]bool(nil), s.finished...)
	return announced, finished
}

func TestRunPlaysSegmentsInOrder(t *testing.T) {
	sink := &recordingSink{}
	seq := NewSequencer(&stubLoader{}, sink, segs("uno", "dos", "tres"), time.Second, time.Millisecond, testMetrics(t), zerolog.Nop())
	sink.onAnnounce = func(turn.Segment) { go seq.SignalPlayed() }

	done := make(chan struct{})
	go func() {
		seq.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not finish")
	}

	announced, finished := sink.snapshot()
	if len(announced) != 3 || announced[0] != 0 || announced[1] != 1 || announced[2] != 2 {
		t.Fatalf("announced = %v, want [0 1 2]", announced)
	}
	if len(finished) != 1 || !finished[0] {
		t.Fatalf("finished = %v, want one TurnFinished(true)", finished)
	}
	for i := 0; i < 3; i++ {
		if seq.Phase(i) != PhaseEnded {
			t.Fatalf("Phase(%d) = %q, want ended", i, seq.Phase(i))
		}
	}
}

func TestDuplicateCompletionSignalsCoalesce(t *testing.T) {
	sink := &recordingSink{}
	seq := NewSequencer(&stubLoader{}, sink, segs("uno", "dos", "tres"), time.Second, time.Millisecond, testMetrics(t), zerolog.Nop())
	sink.onAnnounce = func(turn.Segment) {
		go func() {
			seq.SignalPlayed()
			seq.SignalPlayed()
		}()
	}

	done := make(chan struct{})
	go func() {
		seq.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not finish")
	}

	announced, finished := sink.snapshot()
	if len(announced) != 3 {
		t.Fatalf("announced %d segments, want 3", len(announced))
	}
	if len(finished) != 1 {
		t.Fatalf("TurnFinished called %d times, want 1", len(finished))
	}
}

func TestFallbackTimerAdvancesWithoutSignal(t *testing.T) {
	sink := &recordingSink{}
	seq := NewSequencer(&stubLoader{}, sink, segs("uno", "dos"), 20*time.Millisecond, time.Millisecond, testMetrics(t), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		seq.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() never advanced on the fallback timer")
	}

	announced, finished := sink.snapshot()
	if len(announced) != 2 {
		t.Fatalf("announced = %v, want both segments", announced)
	}
	if len(finished) != 1 || !finished[0] {
		t.Fatalf("finished = %v, want one TurnFinished(true)", finished)
	}
}

func TestUnplayableSegmentIsSkipped(t *testing.T) {
	sink := &recordingSink{}
	loader := &stubLoader{fail: map[int]error{1: errors.New("synthesis down")}}
	seq := NewSequencer(loader, sink, segs("uno", "dos", "tres"), time.Second, time.Millisecond, testMetrics(t), zerolog.Nop())
	sink.onAnnounce = func(turn.Segment) { go seq.SignalPlayed() }

	done := make(chan struct{})
	go func() {
		seq.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not finish")
	}

	announced, finished := sink.snapshot()
	if len(announced) != 2 || announced[0] != 0 || announced[1] != 2 {
		t.Fatalf("announced = %v, want [0 2]", announced)
	}
	if seq.Phase(1) != PhaseSkipped {
		t.Fatalf("Phase(1) = %q, want skipped", seq.Phase(1))
	}
	if len(finished) != 1 || !finished[0] {
		t.Fatalf("finished = %v, want TurnFinished(true)", finished)
	}
}

func TestAllSegmentsUnplayable(t *testing.T) {
	sink := &recordingSink{}
	loader := &stubLoader{fail: map[int]error{
		0: errors.New("synthesis down"),
		1: errors.New("synthesis down"),
	}}
	seq := NewSequencer(loader, sink, segs("uno", "dos"), time.Second, time.Millisecond, testMetrics(t), zerolog.Nop())

	seq.Run(context.Background())

	announced, finished := sink.snapshot()
	if len(announced) != 0 {
		t.Fatalf("announced = %v, want none", announced)
	}
	if len(finished) != 1 || finished[0] {
		t.Fatalf("finished = %v, want one TurnFinished(false)", finished)
	}
}

func TestCancellationStopsWithoutFinishing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{}
	seq := NewSequencer(&stubLoader{}, sink, segs("uno", "dos"), time.Minute, time.Minute, testMetrics(t), zerolog.Nop())
	sink.onAnnounce = func(turn.Segment) { cancel() }

	done := make(chan struct{})
	go func() {
		seq.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not stop on cancellation")
	}

	announced, finished := sink.snapshot()
	if len(announced) != 1 {
		t.Fatalf("announced = %v, want only the first segment", announced)
	}
	if len(finished) != 0 {
		t.Fatalf("finished = %v, want no TurnFinished after cancellation", finished)
	}
}

func TestFallbackScalesWithLength(t *testing.T) {
	seq := NewSequencer(&stubLoader{}, &recordingSink{}, segs("x"), 6*time.Second, 80*time.Millisecond, testMetrics(t), zerolog.Nop())

	if got := seq.fallbackFor("hola"); got != 6*time.Second {
		t.Fatalf("fallbackFor(short) = %v, want the 6s floor", got)
	}

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	if got := seq.fallbackFor(string(long)); got != 16*time.Second {
		t.Fatalf("fallbackFor(200 runes) = %v, want 16s", got)
	}
}
