package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.PlaybackFallbackBase != 6*time.Second {
		t.Fatalf("PlaybackFallbackBase = %v, want 6s", cfg.PlaybackFallbackBase)
	}
	if cfg.PlaybackFallbackPerRune != 80*time.Millisecond {
		t.Fatalf("PlaybackFallbackPerRune = %v, want 80ms", cfg.PlaybackFallbackPerRune)
	}
	if cfg.DuplicateChatWindow != 2*time.Second {
		t.Fatalf("DuplicateChatWindow = %v, want 2s", cfg.DuplicateChatWindow)
	}
	if cfg.SynthSpeed != 1.0 {
		t.Fatalf("SynthSpeed = %v, want 1.0", cfg.SynthSpeed)
	}
}

func TestLoadOverridesFallbackTimer(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PLAYBACK_FALLBACK_BASE", "4s")
	t.Setenv("PLAYBACK_FALLBACK_PER_RUNE", "50ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PlaybackFallbackBase != 4*time.Second {
		t.Fatalf("PlaybackFallbackBase = %v, want 4s", cfg.PlaybackFallbackBase)
	}
	if cfg.PlaybackFallbackPerRune != 50*time.Millisecond {
		t.Fatalf("PlaybackFallbackPerRune = %v, want 50ms", cfg.PlaybackFallbackPerRune)
	}
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("STATUS_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want STATUS_INTERVAL validation error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_LOG_LEVEL",
		"APP_ALLOW_ANY_ORIGIN",
		"CHAT_URL",
		"CHAT_RESUME_URL",
		"CHAT_STATUS_URL",
		"SYNTH_BASE_URL",
		"SYNTH_API_KEY",
		"SYNTH_MODEL",
		"SYNTH_VOICE",
		"SYNTH_SPEED",
		"SYNTH_BASE_DIRECTIVE",
		"STATUS_START_DELAY",
		"STATUS_INTERVAL",
		"STATUS_COOLDOWN",
		"STATUS_REQUEST_TIMEOUT",
		"DUPLICATE_CHAT_WINDOW",
		"PLAYBACK_FALLBACK_BASE",
		"PLAYBACK_FALLBACK_PER_RUNE",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
