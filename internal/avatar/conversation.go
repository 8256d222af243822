package avatar

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jgarciav/vocalis/internal/brain"
	"github.com/jgarciav/vocalis/internal/config"
	"github.com/jgarciav/vocalis/internal/observability"
	"github.com/jgarciav/vocalis/internal/playback"
	"github.com/jgarciav/vocalis/internal/preload"
	"github.com/jgarciav/vocalis/internal/protocol"
	"github.com/jgarciav/vocalis/internal/reliability"
	"github.com/jgarciav/vocalis/internal/session"
	"github.com/jgarciav/vocalis/internal/speech"
	"github.com/jgarciav/vocalis/internal/status"
	"github.com/jgarciav/vocalis/internal/transcript"
	"github.com/jgarciav/vocalis/internal/turn"
)

const emptyInputWarning = "No puedo responder a un mensaje vacío."

// Conversation drives the turn pipeline for one connected client. A new
// utterance invalidates all outstanding work for the previous one in a
// single step: the guard token moves and the turn context is cancelled.
type Conversation struct {
	sessionID string
	userID    string
	roleID    string
	cfg       config.Config
	guard     *session.Guard
	brain     *brain.Client
	synth     speech.Synthesizer
	store     transcript.Store
	poller    *status.Poller
	emitter   Emitter
	metrics   *observability.Metrics
	log       zerolog.Logger

	mu          sync.Mutex
	cancelTurn  context.CancelFunc
	seq         *playback.Sequencer
	seqToken    int64
	lastInput   string
	lastInputAt time.Time
}

// Chat starts a new turn for the utterance. Empty input warns and changes
// nothing; an identical utterance repeated within the duplicate window is
// dropped. Anything else supersedes whatever the pipeline was doing.
func (c *Conversation) Chat(text string) {
	input := strings.TrimSpace(text)
	if input == "" {
		c.emit(protocol.Warning{Type: protocol.TypeWarning, SessionID: c.sessionID, Text: emptyInputWarning})
		return
	}

	c.mu.Lock()
	if input == c.lastInput && time.Since(c.lastInputAt) < c.cfg.DuplicateChatWindow {
		c.mu.Unlock()
		c.metrics.TurnEvents.WithLabelValues("duplicate_dropped").Inc()
		c.log.Debug().Msg("duplicate utterance dropped")
		return
	}
	c.lastInput = input
	c.lastInputAt = time.Now()

	token := c.guard.NewSession()
	if c.cancelTurn != nil {
		c.cancelTurn()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelTurn = cancel
	c.seq = nil
	c.mu.Unlock()

	started := time.Now()
	c.metrics.TurnEvents.WithLabelValues("chat").Inc()
	c.emit(protocol.StopAudio{Type: protocol.TypeStopAudio, SessionID: c.sessionID})
	c.emit(protocol.ResponsesReset{Type: protocol.TypeResponsesReset, SessionID: c.sessionID, TurnToken: token})
	c.emit(protocol.Loading{Type: protocol.TypeLoading, SessionID: c.sessionID, Active: true})
	c.emit(protocol.Thinking{Type: protocol.TypeThinking, SessionID: c.sessionID, Active: true})

	// Enable is cheap here: the poller waits its own start delay before the
	// first request, so a fast reply disables it before anything is polled.
	c.poller.Enable(token)
	go c.runTurn(ctx, token, input, started)
}

func (c *Conversation) runTurn(ctx context.Context, token int64, input string, started time.Time) {
	go c.saveLine("user", input)

	reply, err := c.brain.FetchResponse(ctx, brain.ChatRequest{
		UserInput: input,
		UserID:    c.userID,
		RoleID:    c.roleID,
	}, token)

	if reply == nil && err == nil {
		// Superseded by a newer utterance; that turn owns the pipeline now.
		c.metrics.TurnEvents.WithLabelValues("turn_superseded").Inc()
		return
	}
	if !c.guard.IsCurrent(token) {
		c.metrics.TurnEvents.WithLabelValues("stale_drop").Inc()
		return
	}

	if err != nil {
		c.poller.Disable()
		c.metrics.BackendErrors.WithLabelValues("chat", "fetch_failed").Inc()
		c.log.Error().Err(err).Msg("inference request failed")
		c.emit(protocol.Thinking{Type: protocol.TypeThinking, SessionID: c.sessionID, Active: false})
		c.emit(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: c.sessionID,
			Code:      "chat_failed",
			Source:    "chat",
			Retryable: chatErrorRetryable(err),
			Detail:    err.Error(),
		})
		c.emit(protocol.Loading{Type: protocol.TypeLoading, SessionID: c.sessionID, Active: false})
		c.emit(protocol.TurnEnd{Type: protocol.TypeTurnEnd, SessionID: c.sessionID, TurnToken: token, Reason: "error"})
		return
	}

	c.poller.Disable()
	c.emit(protocol.Thinking{Type: protocol.TypeThinking, SessionID: c.sessionID, Active: false})

	if reply.Warning != "" {
		c.emit(protocol.Warning{Type: protocol.TypeWarning, SessionID: c.sessionID, Text: reply.Warning})
		go c.brain.ResumeConversation(c.userID, c.roleID)
	}
	if len(reply.FunctionResults) > 0 {
		c.emit(protocol.FunctionResults{
			Type:      protocol.TypeFunctionResults,
			SessionID: c.sessionID,
			TurnToken: token,
			Results:   reply.FunctionResults,
		})
	}
	sched := preload.NewScheduler(c.synth, reply.Segments, c.metrics, c.log)
	sink := &turnSink{c: c, token: token, started: started}
	seq := playback.NewSequencer(sched, sink, reply.Segments,
		c.cfg.PlaybackFallbackBase, c.cfg.PlaybackFallbackPerRune, c.metrics, c.log)

	c.mu.Lock()
	if !c.guard.IsCurrent(token) {
		c.mu.Unlock()
		return
	}
	c.seq = seq
	c.seqToken = token
	c.mu.Unlock()

	// The sequencer's first load is segment 0; the background loop holds off
	// until that request is issued, so segment 0 always goes out first.
	sched.Start(ctx)
	seq.Run(ctx)
}

// chatErrorRetryable classifies an inference failure for the client. HTTP
// rejections follow the status code; anything without a status (network
// failure, malformed response) is worth retrying.
func chatErrorRetryable(err error) bool {
	var terr *brain.TransportError
	if errors.As(err, &terr) && terr.StatusCode > 0 {
		return reliability.IsRetryableHTTPStatus(terr.StatusCode)
	}
	return true
}

// OnMessagePlayed is the frontend's direct acknowledgement that the current
// segment finished.
func (c *Conversation) OnMessagePlayed() {
	c.signalPlayed()
}

// OnAudioEnded is the broadcast flavor of the same completion signal. Both
// land on the sequencer's idempotent channel, so receiving both is harmless.
func (c *Conversation) OnAudioEnded() {
	c.signalPlayed()
}

func (c *Conversation) signalPlayed() {
	c.mu.Lock()
	seq, token := c.seq, c.seqToken
	c.mu.Unlock()
	if seq == nil || !c.guard.IsCurrent(token) {
		return
	}
	seq.SignalPlayed()
}

// Close tears down all turn work for a disconnecting client.
func (c *Conversation) Close() {
	c.guard.NewSession()
	c.mu.Lock()
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
	c.seq = nil
	c.mu.Unlock()
	c.poller.Disable()
}

func (c *Conversation) onStatus(res status.Result) {
	if !c.guard.IsCurrent(res.Token) {
		c.metrics.TurnEvents.WithLabelValues("stale_drop").Inc()
		return
	}
	c.emit(protocol.ProcessingStatus{
		Type:      protocol.TypeProcessingStatus,
		SessionID: c.sessionID,
		TurnToken: res.Token,
		Status:    res.Status,
	})
}

func (c *Conversation) emit(msg any) {
	c.emitter.Emit(msg)
}

func (c *Conversation) saveLine(speaker, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	line := transcript.Line{
		ID:        uuid.NewString(),
		UserID:    c.userID,
		RoleID:    c.roleID,
		SessionID: c.sessionID,
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.store.SaveLine(ctx, line); err != nil {
		c.log.Warn().Err(err).Msg("transcript save failed")
	}
}

// turnSink receives the sequencer's effects for one turn and revalidates the
// session token before anything reaches the client.
type turnSink struct {
	c       *Conversation
	token   int64
	started time.Time

	mu    sync.Mutex
	first bool
}

func (s *turnSink) AnnounceSegment(seg turn.Segment, audio []byte) {
	c := s.c
	if !c.guard.IsCurrent(s.token) {
		c.metrics.TurnEvents.WithLabelValues("stale_drop").Inc()
		return
	}

	s.mu.Lock()
	if !s.first {
		s.first = true
		c.metrics.ObserveFirstAudioLatency(time.Since(s.started))
	}
	s.mu.Unlock()

	c.emit(protocol.AvatarMessage{
		Type:             protocol.TypeAvatarMessage,
		SessionID:        c.sessionID,
		TurnToken:        s.token,
		SegmentIndex:     seg.Index,
		Text:             seg.Text,
		FacialExpression: seg.FacialExpression,
		Animation:        seg.Animation,
		AudioBase64:      base64.StdEncoding.EncodeToString(audio),
		Lipsync:          seg.Lipsync,
	})
	c.emit(protocol.ResponseShown{
		Type:      protocol.TypeResponseShown,
		SessionID: c.sessionID,
		TurnToken: s.token,
		Text:      seg.Text,
	})
	go c.saveLine("avatar", seg.Text)
}

func (s *turnSink) TurnFinished(playedAny bool) {
	c := s.c
	if !c.guard.IsCurrent(s.token) {
		c.metrics.TurnEvents.WithLabelValues("stale_drop").Inc()
		return
	}

	reason := "completed"
	if !playedAny {
		reason = "unplayable"
		c.emit(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: c.sessionID,
			Code:      "synthesis_failed",
			Source:    "speech",
			Retryable: true,
			Detail:    "no segment could be synthesized",
		})
	}
	c.emit(protocol.Loading{Type: protocol.TypeLoading, SessionID: c.sessionID, Active: false})
	c.emit(protocol.TurnEnd{Type: protocol.TypeTurnEnd, SessionID: c.sessionID, TurnToken: s.token, Reason: reason})

	c.mu.Lock()
	if c.seqToken == s.token {
		c.seq = nil
	}
	c.mu.Unlock()
}
