package asr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/fallback"
)

// Transcript is the enveloped outcome of one recognition request. Err is
// set when the backend failed and default content was substituted; the
// caller still gets a well-formed result either way.
type Transcript struct {
	Text       string
	Confidence float64
	Language   string
	Tier       string
	Err        error
}

// Service wraps the bound backend with payload validation, the empty
// short-circuit, and failure-to-default conversion.
type Service struct {
	cfg     config.ASRConfig
	binding fallback.Binding[Transcriber]
	logger  *slog.Logger
}

func NewService(cfg config.ASRConfig, binding fallback.Binding[Transcriber], logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		binding: binding,
		logger:  logger.With(slog.String("component", "asr")),
	}
}

// Tier reports which backend tier was bound at boot.
func (s *Service) Tier() string { return s.binding.Tier }

// Transcribe runs one recognition request. Empty audio yields an empty
// result without touching the backend.
func (s *Service) Transcribe(ctx context.Context, audio []byte, lang string) Transcript {
	if strings.TrimSpace(lang) == "" {
		lang = s.cfg.DefaultLanguage
	}
	if len(audio) == 0 {
		return Transcript{Language: lang, Tier: s.binding.Tier}
	}
	if !isWaveform(audio) {
		err := errors.New("audio payload is not a wav container")
		s.logger.Warn("rejecting transcription input",
			slog.String("language", lang),
			slog.Int("audio_bytes", len(audio)),
			slog.String("error", err.Error()))
		return Transcript{Language: lang, Tier: s.binding.Tier, Err: err}
	}

	if s.cfg.RequestTimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	result, err := s.binding.Backend.Transcribe(ctx, audio, lang)
	if err != nil {
		s.logger.Warn("transcription failed",
			slog.String("tier", s.binding.Tier),
			slog.String("language", lang),
			slog.Int("audio_bytes", len(audio)),
			slog.String("error", err.Error()))
		return Transcript{Language: lang, Tier: s.binding.Tier, Err: err}
	}
	return Transcript{
		Text:       result.Text,
		Confidence: result.Confidence,
		Language:   lang,
		Tier:       s.binding.Tier,
	}
}

func isWaveform(audio []byte) bool {
	return wav.NewDecoder(bytes.NewReader(audio)).IsValidFile()
}
