// Package speech converts reply text into audio via an OpenAI-style endpoint.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Synthesizer turns one text segment plus a voice directive into audio bytes.
// Implementations must honor context cancellation; the caller discards stale
// results, so a cancelled call may return any error.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceDirective string) ([]byte, error)
}

// Config for the OpenAI-compatible synthesis endpoint.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Voice         string
	Speed         float64
	BaseDirective string
}

// OpenAISynthesizer calls the /audio/speech-style endpoint, one request per
// segment, raw audio bytes back.
type OpenAISynthesizer struct {
	client        *openai.Client
	model         string
	voice         string
	speed         float64
	baseDirective string
	log           zerolog.Logger
}

func NewOpenAISynthesizer(cfg Config, log zerolog.Logger) *OpenAISynthesizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}

	speed := cfg.Speed
	if speed <= 0 {
		speed = 1.0
	}

	return &OpenAISynthesizer{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.Model,
		voice:         cfg.Voice,
		speed:         speed,
		baseDirective: cfg.BaseDirective,
		log:           log,
	}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voiceDirective string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("synthesize: empty text")
	}

	res, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		Instructions:   ComposeDirective(s.baseDirective, voiceDirective),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          s.speed,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer res.Close()

	audio, err := io.ReadAll(res)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read synthesis audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("synthesis returned no audio")
	}
	return audio, nil
}
