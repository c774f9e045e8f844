package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/go-audio/wav"

	"github.com/vaanilabs/vaani/internal/config"
)

// apiSynthesizer posts text to a hosted speech endpoint and takes the
// response body as the finished WAV clip.
type apiSynthesizer struct {
	endpoint string
	apiKey   string
	model    string
	voice    string
	client   *http.Client
}

type apiSpeechRequest struct {
	Model          string `json:"model,omitempty"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

func newAPISynthesizer(cfg config.TTSConfig) (Synthesizer, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("no endpoint configured")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("no api key configured")
	}
	return &apiSynthesizer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		voice:    cfg.Voice,
		client:   &http.Client{},
	}, nil
}

func (s *apiSynthesizer) Synthesize(ctx context.Context, text, lang, speaker string) (Clip, error) {
	body, err := json.Marshal(apiSpeechRequest{
		Model:          s.model,
		Voice:          resolveVoice(speaker, s.voice, lang),
		Input:          text,
		ResponseFormat: "wav",
	})
	if err != nil {
		return Clip{}, fmt.Errorf("encode speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Clip{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return Clip{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Clip{}, fmt.Errorf("speech api returned status %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Clip{}, fmt.Errorf("read speech response: %w", err)
	}
	if !wav.NewDecoder(bytes.NewReader(audio)).IsValidFile() {
		return Clip{}, errors.New("speech api returned a payload that is not a wav container")
	}

	return Clip{
		Audio:      audio,
		DurationMS: float64(utf8.RuneCountInString(text) * hostedMSPerRune),
	}, nil
}
