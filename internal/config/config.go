package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the avatar chat orchestrator.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	LogLevel                 string

	AllowAnyOrigin bool

	// Backend endpoints the orchestrator consumes.
	ChatURL   string
	ResumeURL string
	StatusURL string

	// OpenAI-style speech synthesis endpoint.
	SynthBaseURL       string
	SynthAPIKey        string
	SynthModel         string
	SynthVoice         string
	SynthSpeed         float64
	VoiceBaseDirective string

	// Status polling cadence.
	StatusStartDelay     time.Duration
	StatusInterval       time.Duration
	StatusCooldown       time.Duration
	StatusRequestTimeout time.Duration

	// Turn orchestration knobs.
	DuplicateChatWindow     time.Duration
	PlaybackFallbackBase    time.Duration
	PlaybackFallbackPerRune time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "vocalis"),
		LogLevel:         envOrDefault("APP_LOG_LEVEL", "info"),
		AllowAnyOrigin:   false,

		ChatURL:   envOrDefault("CHAT_URL", "http://localhost:8000/chat/"),
		ResumeURL: envOrDefault("CHAT_RESUME_URL", "http://localhost:8000/chat/messages/resume/"),
		StatusURL: envOrDefault("CHAT_STATUS_URL", "http://localhost:8000/status/"),

		SynthBaseURL: envOrDefault("SYNTH_BASE_URL", "https://api.openai.com/v1"),
		SynthAPIKey:  trimmedEnv("SYNTH_API_KEY"),
		SynthModel:   envOrDefault("SYNTH_MODEL", "gpt-4o-mini-tts"),
		SynthVoice:   envOrDefault("SYNTH_VOICE", "nova"),
		// Baseline persona instruction every segment inherits; per-segment
		// directives from the reply are appended to it.
		VoiceBaseDirective: envOrDefault("SYNTH_BASE_DIRECTIVE",
			"Habla con un tono cercano, natural y expresivo, en español neutro."),

		SynthSpeed:               1.0,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		StatusStartDelay:         600 * time.Millisecond,
		StatusInterval:           1200 * time.Millisecond,
		StatusCooldown:           400 * time.Millisecond,
		StatusRequestTimeout:     2 * time.Second,
		DuplicateChatWindow:      2 * time.Second,
		PlaybackFallbackBase:     6 * time.Second,
		PlaybackFallbackPerRune:  80 * time.Millisecond,
		DatabaseURL:              trimmedEnv("DATABASE_URL"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthSpeed, err = floatFromEnv("SYNTH_SPEED", cfg.SynthSpeed)
	if err != nil {
		return Config{}, err
	}
	cfg.StatusStartDelay, err = durationFromEnv("STATUS_START_DELAY", cfg.StatusStartDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.StatusInterval, err = durationFromEnv("STATUS_INTERVAL", cfg.StatusInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.StatusCooldown, err = durationFromEnv("STATUS_COOLDOWN", cfg.StatusCooldown)
	if err != nil {
		return Config{}, err
	}
	cfg.StatusRequestTimeout, err = durationFromEnv("STATUS_REQUEST_TIMEOUT", cfg.StatusRequestTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DuplicateChatWindow, err = durationFromEnv("DUPLICATE_CHAT_WINDOW", cfg.DuplicateChatWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.PlaybackFallbackBase, err = durationFromEnv("PLAYBACK_FALLBACK_BASE", cfg.PlaybackFallbackBase)
	if err != nil {
		return Config{}, err
	}
	cfg.PlaybackFallbackPerRune, err = durationFromEnv("PLAYBACK_FALLBACK_PER_RUNE", cfg.PlaybackFallbackPerRune)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.ChatURL) == "" {
		return Config{}, fmt.Errorf("CHAT_URL must not be empty")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.SynthSpeed <= 0 {
		return Config{}, fmt.Errorf("SYNTH_SPEED must be positive")
	}
	if cfg.StatusInterval <= 0 {
		return Config{}, fmt.Errorf("STATUS_INTERVAL must be positive")
	}
	if cfg.PlaybackFallbackBase <= 0 {
		return Config{}, fmt.Errorf("PLAYBACK_FALLBACK_BASE must be positive")
	}
	if cfg.PlaybackFallbackPerRune < 0 {
		return Config{}, fmt.Errorf("PLAYBACK_FALLBACK_PER_RUNE must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
