package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vaanilabs/vaani/internal/artifact"
	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/fallback"
)

// Speech is the outcome of one successful synthesis: a stored artifact
// reference plus the metadata callers echo back to the client.
type Speech struct {
	AudioURL   string
	DurationMS float64
	Language   string
	Text       string
	Engine     string
}

type tier struct {
	name    string
	backend Synthesizer
}

// Service walks the synthesis tier chain per request and persists the
// winning clip. The chain is assembled once at construction; tiers whose
// prerequisites are missing are dropped with a warning, and the silent
// stand-in is always last.
type Service struct {
	cfg    config.TTSConfig
	store  *artifact.Store
	tiers  []tier
	logger *slog.Logger
}

func NewService(cfg config.TTSConfig, store *artifact.Store, logger *slog.Logger) *Service {
	logger = logger.With(slog.String("component", "tts"))

	var tiers []tier
	if backend, err := newAPISynthesizer(cfg); err != nil {
		logger.Warn("backend tier unavailable",
			slog.String("tier", TierVoiceAPI),
			slog.String("error", err.Error()))
	} else {
		tiers = append(tiers, tier{name: TierVoiceAPI, backend: backend})
	}
	if backend, err := newExecSynthesizer(cfg); err != nil {
		logger.Warn("backend tier unavailable",
			slog.String("tier", TierVoiceCLI),
			slog.String("error", err.Error()))
	} else {
		tiers = append(tiers, tier{name: TierVoiceCLI, backend: backend})
	}
	tiers = append(tiers, tier{name: TierSilence, backend: newSilenceSynthesizer(cfg)})

	return &Service{cfg: cfg, store: store, tiers: tiers, logger: logger}
}

// Tiers lists the attempt chain in order.
func (s *Service) Tiers() []string {
	names := make([]string, len(s.tiers))
	for i, t := range s.tiers {
		names[i] = t.name
	}
	return names
}

// Synthesize runs one request through the tier chain and stores the
// resulting clip. The error return means every tier failed; anything a
// lower tier rescued comes back as a normal Speech.
func (s *Service) Synthesize(ctx context.Context, sessionID, text, lang, speaker string) (Speech, error) {
	if strings.TrimSpace(lang) == "" {
		lang = s.cfg.DefaultLanguage
	}
	if strings.TrimSpace(text) == "" {
		return Speech{}, errors.New("no text provided")
	}

	if s.cfg.RequestTimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	attempts := make([]fallback.Attempt[Clip], 0, len(s.tiers))
	for _, t := range s.tiers {
		backend := t.backend
		attempts = append(attempts, fallback.Attempt[Clip]{
			Name: t.name,
			Run: func(ctx context.Context) (Clip, error) {
				return backend.Synthesize(ctx, text, lang, speaker)
			},
		})
	}

	outcome, err := fallback.Walk(ctx, s.logger, attempts)
	if err != nil {
		s.logger.Error("synthesis exhausted all tiers",
			slog.String("language", lang),
			slog.Int("text_runes", utf8.RuneCountInString(text)),
			slog.String("error", err.Error()))
		return Speech{}, err
	}
	if outcome.Degraded {
		s.logger.Info("synthesis degraded to lower tier",
			slog.String("tier", outcome.Tier),
			slog.String("language", lang))
	}

	stored, err := s.store.Put(ctx, artifact.Artifact{
		SessionID:  sessionID,
		Engine:     outcome.Tier,
		Language:   lang,
		Text:       text,
		DurationMS: outcome.Value.DurationMS,
	}, outcome.Value.Audio)
	if err != nil {
		s.logger.Error("artifact write failed",
			slog.String("tier", outcome.Tier),
			slog.String("error", err.Error()))
		return Speech{}, fmt.Errorf("store synthesized audio: %w", err)
	}

	return Speech{
		AudioURL:   s.store.URL(stored.ID),
		DurationMS: outcome.Value.DurationMS,
		Language:   lang,
		Text:       text,
		Engine:     outcome.Tier,
	}, nil
}
