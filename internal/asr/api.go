package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/language"
)

// apiTranscriber posts staged audio to a hosted transcription endpoint
// (multipart upload, verbose_json response).
type apiTranscriber struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

type apiTranscript struct {
	Text     string    `json:"text"`
	Segments []segment `json:"segments"`
}

func newAPITranscriber(cfg config.ASRConfig) (Transcriber, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("no endpoint configured")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("no api key configured")
	}
	return &apiTranscriber{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{},
	}, nil
}

func (t *apiTranscriber) Transcribe(ctx context.Context, audio []byte, lang string) (Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Result{}, fmt.Errorf("write upload: %w", err)
	}
	if t.model != "" {
		if err := mw.WriteField("model", t.model); err != nil {
			return Result{}, fmt.Errorf("write model field: %w", err)
		}
	}
	if hint := language.Hint(lang); hint != "" {
		if err := mw.WriteField("language", hint); err != nil {
			return Result{}, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, fmt.Errorf("write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("finish upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("transcription api returned status %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	var payload apiTranscript
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("decode transcription response: %w", err)
	}
	return Result{Text: payload.Text, Confidence: confidenceFrom(payload.Segments)}, nil
}
