// Package avatar orchestrates one user utterance into a spoken, animated
// multi-segment reply.
package avatar

import (
	"github.com/rs/zerolog"

	"github.com/jgarciav/vocalis/internal/brain"
	"github.com/jgarciav/vocalis/internal/config"
	"github.com/jgarciav/vocalis/internal/observability"
	"github.com/jgarciav/vocalis/internal/session"
	"github.com/jgarciav/vocalis/internal/speech"
	"github.com/jgarciav/vocalis/internal/status"
	"github.com/jgarciav/vocalis/internal/transcript"
)

// Emitter pushes one protocol message toward the UI. The websocket handler
// implements it; tests record the messages instead.
type Emitter interface {
	Emit(msg any)
}

// Orchestrator holds the shared backends and mints one Conversation per
// connected client.
type Orchestrator struct {
	cfg     config.Config
	brain   *brain.Client
	synth   speech.Synthesizer
	store   transcript.Store
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewOrchestrator(cfg config.Config, brainClient *brain.Client, synth speech.Synthesizer, store transcript.Store, metrics *observability.Metrics, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		brain:   brainClient,
		synth:   synth,
		store:   store,
		metrics: metrics,
		log:     log,
	}
}

// NewConversation binds a fresh turn pipeline to one connection. Each
// conversation owns its own session guard and status poller; nothing is
// shared across connections except the backends.
func (o *Orchestrator) NewConversation(sessionID, userID, roleID string, emitter Emitter) *Conversation {
	c := &Conversation{
		sessionID: sessionID,
		userID:    userID,
		roleID:    roleID,
		cfg:       o.cfg,
		guard:     session.NewGuard(),
		brain:     o.brain,
		synth:     o.synth,
		store:     o.store,
		emitter:   emitter,
		metrics:   o.metrics,
		log:       o.log.With().Str("session_id", sessionID).Logger(),
	}
	c.poller = status.NewPoller(status.Config{
		URL:            o.cfg.StatusURL,
		UserID:         userID,
		RoleID:         roleID,
		StartDelay:     o.cfg.StatusStartDelay,
		Interval:       o.cfg.StatusInterval,
		Cooldown:       o.cfg.StatusCooldown,
		RequestTimeout: o.cfg.StatusRequestTimeout,
	}, c.onStatus, o.metrics, c.log)
	return c
}
