package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/language"
)

// apiTranslator posts translation requests to a hosted endpoint. The
// endpoint takes model codes, so both languages must be in the table.
type apiTranslator struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

type apiRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Model          string `json:"model,omitempty"`
}

type apiResponse struct {
	TranslatedText string `json:"translated_text"`
}

func newAPITranslator(cfg config.TranslatorConfig) (Translator, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("no endpoint configured")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("no api key configured")
	}
	return &apiTranslator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{},
	}, nil
}

func (t *apiTranslator) Translate(ctx context.Context, text, sourceTag, targetTag string) (string, error) {
	src, ok := language.Lookup(sourceTag)
	if !ok {
		return "", fmt.Errorf("unsupported source language %q", sourceTag)
	}
	dst, ok := language.Lookup(targetTag)
	if !ok {
		return "", fmt.Errorf("unsupported target language %q", targetTag)
	}

	body, err := json.Marshal(apiRequest{
		Text:           text,
		SourceLanguage: src.ModelCode,
		TargetLanguage: dst.ModelCode,
		Model:          t.model,
	})
	if err != nil {
		return "", fmt.Errorf("encode translation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation api returned status %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode translation response: %w", err)
	}
	if strings.TrimSpace(payload.TranslatedText) == "" {
		return "", errors.New("translation api returned no text")
	}
	return payload.TranslatedText, nil
}

// Direct reports true: the hosted endpoint handles arbitrary pairs in a
// single call.
func (t *apiTranslator) Direct() bool { return true }
