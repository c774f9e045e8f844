package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vaanilabs/vaani/internal/config"
)

func TestAPITranslatorProbeFailures(t *testing.T) {
	if _, err := newAPITranslator(config.TranslatorConfig{}); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := newAPITranslator(config.TranslatorConfig{Endpoint: "http://127.0.0.1:1/translate"}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestAPITranslatorRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SourceLanguage != "mar_Deva" || req.TargetLanguage != "spa_Latn" {
			t.Errorf("model codes = %q -> %q", req.SourceLanguage, req.TargetLanguage)
		}
		if req.Model != "nllb-200" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(apiResponse{TranslatedText: "Gracias"})
	}))
	defer srv.Close()

	backend, err := newAPITranslator(config.TranslatorConfig{
		Endpoint: srv.URL,
		APIKey:   "secret",
		Model:    "nllb-200",
	})
	if err != nil {
		t.Fatalf("new api translator: %v", err)
	}
	out, err := backend.Translate(context.Background(), "धन्यवाद", "marathi", "spanish")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "Gracias" {
		t.Fatalf("translated text = %q", out)
	}
	if !backend.Direct() {
		t.Fatal("api translator should be direct capable")
	}
}

func TestAPITranslatorRejectsUnknownLanguage(t *testing.T) {
	backend, err := newAPITranslator(config.TranslatorConfig{Endpoint: "http://127.0.0.1:1/translate", APIKey: "secret"})
	if err != nil {
		t.Fatalf("new api translator: %v", err)
	}
	if _, err := backend.Translate(context.Background(), "hej", "swedish", "spanish"); err == nil {
		t.Fatal("expected error for unknown source language")
	}
	if _, err := backend.Translate(context.Background(), "hello", "english", "klingon"); err == nil {
		t.Fatal("expected error for unknown target language")
	}
}

func TestAPITranslatorSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	backend, err := newAPITranslator(config.TranslatorConfig{Endpoint: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("new api translator: %v", err)
	}
	_, err = backend.Translate(context.Background(), "धन्यवाद", "marathi", "spanish")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}
