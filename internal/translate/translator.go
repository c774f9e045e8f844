// Package translate implements the translation endpoint's backend: a
// tier chain bound once at boot, pivot/direct composition selected at
// the same time, and a service wrapping both with the degraded-result
// envelope and an LRU result cache.
package translate

import (
	"context"
	"log/slog"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/fallback"
)

// Tier names, in boot selection order.
const (
	TierTranslateAPI = "translate-api"
	TierTranslateCLI = "translate-cli"
	TierStub         = "stub"
)

// Composition modes.
const (
	ModePivot  = "pivot"
	ModeDirect = "direct"
)

// Fixed confidence per composition path. Heuristic constants, not
// calibrated probabilities; the ordering pivot < stub < direct is load
// bearing for callers comparing modes.
const (
	pivotConfidence  = 0.88
	stubConfidence   = 0.92
	directConfidence = 0.94
)

// Translator is a bound translation backend. Direct reports whether the
// backend handles an arbitrary pair in a single call; leg-only backends
// are composed through the pivot language.
type Translator interface {
	Translate(ctx context.Context, text, sourceTag, targetTag string) (string, error)
	Direct() bool
}

// Bind runs boot-time backend selection. The stub tier terminates the
// chain, so the returned binding is always usable.
func Bind(ctx context.Context, cfg config.TranslatorConfig, logger *slog.Logger) fallback.Binding[Translator] {
	tiers := []fallback.Tier[Translator]{
		{Name: TierTranslateAPI, Probe: func(context.Context) (Translator, error) {
			return newAPITranslator(cfg)
		}},
		{Name: TierTranslateCLI, Probe: func(context.Context) (Translator, error) {
			return newExecTranslator(cfg)
		}},
		{Name: TierStub, Probe: func(context.Context) (Translator, error) {
			return newStubTranslator(), nil
		}},
	}
	binding, err := fallback.Select(ctx, logger, tiers)
	if err != nil {
		return fallback.Binding[Translator]{Tier: TierStub, Backend: newStubTranslator()}
	}
	return binding
}
