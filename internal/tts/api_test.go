package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vaanilabs/vaani/internal/config"
)

func wavBody(t *testing.T) []byte {
	t.Helper()
	clip, err := newSilenceSynthesizer(testConfig()).Synthesize(context.Background(), "x", "", "")
	if err != nil {
		t.Fatalf("build wav fixture: %v", err)
	}
	return clip.Audio
}

func TestAPISynthesizerProbeFailures(t *testing.T) {
	if _, err := newAPISynthesizer(config.TTSConfig{}); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := newAPISynthesizer(config.TTSConfig{Endpoint: "http://127.0.0.1:1/speech"}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestAPISynthesizerRequestShape(t *testing.T) {
	body := wavBody(t)
	var got apiSpeechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(body)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Endpoint = srv.URL
	cfg.APIKey = "secret"
	cfg.Model = "gpt-4o-mini-tts"
	backend, err := newAPISynthesizer(cfg)
	if err != nil {
		t.Fatalf("new api synthesizer: %v", err)
	}

	clip, err := backend.Synthesize(context.Background(), "धन्यवाद", "marathi", "")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got.Model != "gpt-4o-mini-tts" || got.ResponseFormat != "wav" {
		t.Fatalf("request = %+v", got)
	}
	if got.Voice != "nova" {
		t.Fatalf("voice = %q, want the marathi voice", got.Voice)
	}
	if got.Input != "धन्यवाद" {
		t.Fatalf("input = %q", got.Input)
	}
	if clip.DurationMS != 560 {
		t.Fatalf("duration = %v ms, want 560 for 7 runes", clip.DurationMS)
	}
	if len(clip.Audio) != len(body) {
		t.Fatalf("audio bytes = %d, want %d", len(clip.Audio), len(body))
	}
}

func TestAPISynthesizerVoicePrecedence(t *testing.T) {
	body := wavBody(t)
	voices := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiSpeechRequest
		json.NewDecoder(r.Body).Decode(&req)
		voices <- req.Voice
		w.Write(body)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Endpoint = srv.URL
	cfg.APIKey = "secret"
	cfg.Voice = "sage"
	backend, err := newAPISynthesizer(cfg)
	if err != nil {
		t.Fatalf("new api synthesizer: %v", err)
	}

	if _, err := backend.Synthesize(context.Background(), "hola", "spanish", "ballad"); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if v := <-voices; v != "ballad" {
		t.Fatalf("voice = %q, want the caller's speaker tag", v)
	}

	if _, err := backend.Synthesize(context.Background(), "hola", "spanish", ""); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if v := <-voices; v != "sage" {
		t.Fatalf("voice = %q, want the configured override", v)
	}
}

func TestAPISynthesizerRejectsNonWavBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"detail":"quota exceeded"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Endpoint = srv.URL
	cfg.APIKey = "secret"
	backend, err := newAPISynthesizer(cfg)
	if err != nil {
		t.Fatalf("new api synthesizer: %v", err)
	}
	if _, err := backend.Synthesize(context.Background(), "hola", "spanish", ""); err == nil {
		t.Fatal("expected error for non-wav body")
	}
}

func TestAPISynthesizerSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "voice unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Endpoint = srv.URL
	cfg.APIKey = "secret"
	backend, err := newAPISynthesizer(cfg)
	if err != nil {
		t.Fatalf("new api synthesizer: %v", err)
	}
	_, err = backend.Synthesize(context.Background(), "hola", "spanish", "")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}
