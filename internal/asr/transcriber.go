// Package asr implements the speech recognition endpoint's backend: an
// ordered tier chain bound once at boot and a service that wraps the
// bound backend with input validation and the degraded-result envelope.
package asr

import (
	"context"
	"log/slog"
	"math"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/fallback"
)

// Tier names, in boot selection order.
const (
	TierWhisperCLI = "whisper-cli"
	TierSpeechAPI  = "speech-api"
	TierStub       = "stub"
)

// Result captures recognition output.
type Result struct {
	Text       string
	Confidence float64
}

// Transcriber abstracts a bound recognition backend. The audio payload
// is a complete waveform container, not raw PCM.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Result, error)
}

type segment struct {
	Text       string  `json:"text"`
	AvgLogProb float64 `json:"avg_logprob"`
}

// confidenceFrom aggregates per-segment log-probabilities: the absolute
// value of their mean stands in for a probability. An approximation,
// not a calibrated score. Backends that report no segments get a flat
// default.
func confidenceFrom(segments []segment) float64 {
	if len(segments) == 0 {
		return 0.9
	}
	var sum float64
	for _, s := range segments {
		sum += s.AvgLogProb
	}
	mean := sum / float64(len(segments))
	if mean == 0 {
		return 0.9
	}
	return math.Abs(mean)
}

// Bind runs boot-time backend selection. The stub tier terminates the
// chain, so the returned binding is always usable.
func Bind(ctx context.Context, cfg config.ASRConfig, logger *slog.Logger) fallback.Binding[Transcriber] {
	tiers := []fallback.Tier[Transcriber]{
		{Name: TierWhisperCLI, Probe: func(context.Context) (Transcriber, error) {
			return newExecTranscriber(cfg)
		}},
		{Name: TierSpeechAPI, Probe: func(context.Context) (Transcriber, error) {
			return newAPITranscriber(cfg)
		}},
		{Name: TierStub, Probe: func(context.Context) (Transcriber, error) {
			return newStubTranscriber(), nil
		}},
	}
	binding, err := fallback.Select(ctx, logger, tiers)
	if err != nil {
		return fallback.Binding[Transcriber]{Tier: TierStub, Backend: newStubTranscriber()}
	}
	return binding
}
