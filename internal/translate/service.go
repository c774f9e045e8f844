package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/fallback"
	"github.com/vaanilabs/vaani/internal/language"
)

// Translation is the enveloped outcome of one translation request. Err is
// set when every backend call failed; the original text is carried back
// so the caller can still render something.
type Translation struct {
	Text           string
	Confidence     float64
	SourceLanguage string
	TargetLanguage string
	Mode           string
	Tier           string
	Err            error
}

// Service wraps the bound backend with routing mode resolution, the
// identity and empty short-circuits, and a result cache. The mode is
// fixed at construction: direct routing demotes to pivot when the bound
// tier cannot translate arbitrary pairs in one call.
type Service struct {
	cfg     config.TranslatorConfig
	binding fallback.Binding[Translator]
	mode    string
	cache   *lru.Cache[string, string]
	logger  *slog.Logger
}

func NewService(cfg config.TranslatorConfig, binding fallback.Binding[Translator], logger *slog.Logger) *Service {
	logger = logger.With(slog.String("component", "translator"))

	mode := cfg.Mode
	if mode == "" {
		mode = ModePivot
	}
	if mode == ModeDirect && !binding.Backend.Direct() {
		logger.Warn("bound tier cannot translate pairs directly, routing through pivot",
			slog.String("tier", binding.Tier),
			slog.String("pivot_language", cfg.PivotLanguage))
		mode = ModePivot
	}

	var cache *lru.Cache[string, string]
	if cfg.CacheSize > 0 {
		c, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			logger.Warn("translation cache disabled",
				slog.Int("cache_size", cfg.CacheSize),
				slog.String("error", err.Error()))
		} else {
			cache = c
		}
	}

	return &Service{
		cfg:     cfg,
		binding: binding,
		mode:    mode,
		cache:   cache,
		logger:  logger,
	}
}

// Tier reports which backend tier was bound at boot.
func (s *Service) Tier() string { return s.binding.Tier }

// Mode reports the resolved routing mode.
func (s *Service) Mode() string { return s.mode }

// Translate runs one translation request. Empty text yields an empty
// result and an identity pair yields the text unchanged, neither
// touching the backend.
func (s *Service) Translate(ctx context.Context, text, source, target string) Translation {
	out := Translation{
		SourceLanguage: source,
		TargetLanguage: target,
		Mode:           s.mode,
		Tier:           s.binding.Tier,
	}
	if strings.TrimSpace(text) == "" {
		return out
	}
	if sameTag(source, target) {
		out.Text = text
		out.Confidence = s.modeConfidence()
		return out
	}

	key := cacheKey(source, target, text)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			out.Text = cached
			out.Confidence = s.pathConfidence()
			return out
		}
	}

	if s.cfg.RequestTimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	translated, err := s.dispatch(ctx, text, source, target)
	if err != nil {
		s.logger.Warn("translation failed",
			slog.String("tier", s.binding.Tier),
			slog.String("mode", s.mode),
			slog.String("source_language", source),
			slog.String("target_language", target),
			slog.String("error", err.Error()))
		out.Text = text
		out.Err = err
		return out
	}

	if s.cache != nil {
		s.cache.Add(key, translated)
	}
	out.Text = translated
	out.Confidence = s.pathConfidence()
	return out
}

// dispatch routes one request. The stub handles any pair itself, direct
// mode takes a single backend call, and pivot mode chains legs through
// the pivot language, skipping legs the pair already covers.
func (s *Service) dispatch(ctx context.Context, text, source, target string) (string, error) {
	if s.binding.Tier == TierStub || s.mode == ModeDirect {
		return s.binding.Backend.Translate(ctx, text, source, target)
	}

	pivot := s.cfg.PivotLanguage
	out := text
	if !sameTag(source, pivot) {
		leg, err := s.binding.Backend.Translate(ctx, out, source, pivot)
		if err != nil {
			return "", fmt.Errorf("pivot leg %s to %s: %w", source, pivot, err)
		}
		out = leg
	}
	if !sameTag(target, pivot) {
		leg, err := s.binding.Backend.Translate(ctx, out, pivot, target)
		if err != nil {
			return "", fmt.Errorf("pivot leg %s to %s: %w", pivot, target, err)
		}
		out = leg
	}
	return out, nil
}

// pathConfidence is the confidence reported for a completed translation.
func (s *Service) pathConfidence() float64 {
	if s.binding.Tier == TierStub {
		return stubConfidence
	}
	return s.modeConfidence()
}

// modeConfidence is the ceiling the resolved mode can report.
func (s *Service) modeConfidence() float64 {
	if s.mode == ModeDirect {
		return directConfidence
	}
	return pivotConfidence
}

func sameTag(a, b string) bool {
	return language.Hint(a) == language.Hint(b)
}

func cacheKey(source, target, text string) string {
	return language.Hint(source) + "|" + language.Hint(target) + "|" + text
}
