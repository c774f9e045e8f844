package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ASR.Port != 8001 || cfg.Translator.Port != 8002 || cfg.TTS.Port != 8003 {
		t.Fatalf("unexpected default ports: %d %d %d", cfg.ASR.Port, cfg.Translator.Port, cfg.TTS.Port)
	}
	if cfg.Translator.Mode != "pivot" {
		t.Fatalf("expected default mode pivot, got %q", cfg.Translator.Mode)
	}
	if cfg.TTS.SampleRate != 22050 || cfg.TTS.Channels != 1 {
		t.Fatalf("unexpected default tts audio format: %d/%d", cfg.TTS.SampleRate, cfg.TTS.Channels)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vaani.yaml")
	data := []byte("translator:\n  mode: direct\n  cache_size: 32\ntts:\n  port: 9003\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Translator.Mode != "direct" {
		t.Fatalf("expected mode direct, got %q", cfg.Translator.Mode)
	}
	if cfg.Translator.CacheSize != 32 {
		t.Fatalf("expected cache size 32, got %d", cfg.Translator.CacheSize)
	}
	if cfg.TTS.Port != 9003 {
		t.Fatalf("expected tts port 9003, got %d", cfg.TTS.Port)
	}
	if cfg.ASR.Port != 8001 {
		t.Fatalf("expected asr port to keep default, got %d", cfg.ASR.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VAANI_TRANSLATOR_MODE", "direct")
	t.Setenv("VAANI_TRANSLATOR_CACHE_SIZE", "0")
	t.Setenv("VAANI_ASR_COMMAND", "whisper-cli -m /models/base.bin")
	t.Setenv("VAANI_TTS_API_KEY", "sk-test")
	t.Setenv("VAANI_TTS_ENDPOINT", "https://api.example.com/v1/audio/speech")
	t.Setenv("VAANI_ARTIFACTS_RETENTION_DAYS", "7")
	t.Setenv("VAANI_ARTIFACTS_MAX_ARTIFACTS", "123")
	t.Setenv("VAANI_ARTIFACTS_VACUUM_ON_START", "true")
	t.Setenv("VAANI_BUS_ENABLED", "true")
	t.Setenv("VAANI_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("VAANI_BUS_USERNAME", "alice")
	t.Setenv("VAANI_BUS_PASSWORD", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Translator.Mode != "direct" {
		t.Fatalf("expected mode override")
	}
	if cfg.Translator.CacheSize != 0 {
		t.Fatalf("expected cache size override, got %d", cfg.Translator.CacheSize)
	}
	if cfg.ASR.Command != "whisper-cli -m /models/base.bin" {
		t.Fatalf("expected asr command override, got %q", cfg.ASR.Command)
	}
	if cfg.TTS.APIKey != "sk-test" {
		t.Fatalf("expected tts api key override")
	}
	if cfg.Artifacts.RetentionDays != 7 {
		t.Fatalf("expected retention days override")
	}
	if cfg.Artifacts.MaxArtifacts != 123 {
		t.Fatalf("expected max artifacts override")
	}
	if !cfg.Artifacts.VacuumOnStart {
		t.Fatalf("expected vacuum flag override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		set   func(*Config)
	}{
		{"no services", func(c *Config) {
			c.ASR.Enabled = false
			c.Translator.Enabled = false
			c.TTS.Enabled = false
		}},
		{"bad mode", func(c *Config) { c.Translator.Mode = "relay" }},
		{"port collision", func(c *Config) { c.TTS.Port = c.ASR.Port }},
		{"endpoint without key", func(c *Config) { c.ASR.Endpoint = "https://api.example.com" }},
		{"presence without bus", func(c *Config) { c.Presence.Enabled = true }},
		{"negative retention", func(c *Config) { c.Artifacts.RetentionDays = -1 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.set(&cfg)
		if err := validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
