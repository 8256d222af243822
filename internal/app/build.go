// Package app assembles the service from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jgarciav/vocalis/internal/avatar"
	"github.com/jgarciav/vocalis/internal/brain"
	"github.com/jgarciav/vocalis/internal/config"
	"github.com/jgarciav/vocalis/internal/httpapi"
	"github.com/jgarciav/vocalis/internal/logging"
	"github.com/jgarciav/vocalis/internal/observability"
	"github.com/jgarciav/vocalis/internal/session"
	"github.com/jgarciav/vocalis/internal/speech"
	"github.com/jgarciav/vocalis/internal/transcript"
)

type BuildResult struct {
	Config       config.Config
	Log          zerolog.Logger
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *avatar.Orchestrator
	Metrics      *observability.Metrics

	// Cleanup releases external resources (DB connections) on shutdown.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	log := logging.New(cfg.LogLevel)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}

	synth := resolveSynthesizer(cfg, log)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	brainClient := brain.NewClient(cfg.ChatURL, cfg.ResumeURL, logging.Component(log, "brain"))
	orchestrator := avatar.NewOrchestrator(cfg, brainClient, synth, store, metrics, logging.Component(log, "avatar"))
	api := httpapi.New(cfg, sessions, orchestrator, store, metrics, logging.Component(log, "httpapi"))

	return &BuildResult{
		Config:       cfg,
		Log:          log,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Cleanup:      store.Close,
	}, nil
}

func resolveSynthesizer(cfg config.Config, log zerolog.Logger) speech.Synthesizer {
	if strings.TrimSpace(cfg.SynthAPIKey) == "" {
		log.Warn().Msg("no synthesis API key configured, using mock synthesizer")
		return speech.NewMockSynthesizer()
	}
	return speech.NewOpenAISynthesizer(speech.Config{
		BaseURL:       cfg.SynthBaseURL,
		APIKey:        cfg.SynthAPIKey,
		Model:         cfg.SynthModel,
		Voice:         cfg.SynthVoice,
		Speed:         cfg.SynthSpeed,
		BaseDirective: cfg.VoiceBaseDirective,
	}, logging.Component(log, "speech"))
}
