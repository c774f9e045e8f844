// Package tts implements the synthesis endpoint's backend: an ordered
// tier chain walked per request (not bound once at boot like the other
// services), terminated by a silent stand-in that always produces a
// playable clip. Every successful synthesis is persisted as exactly one
// audio artifact.
package tts

import (
	"context"
	"strings"

	"github.com/vaanilabs/vaani/internal/language"
)

// Tier names, in per-request attempt order.
const (
	TierVoiceAPI = "voice-api"
	TierVoiceCLI = "voice-cli"
	TierSilence  = "silence"
)

// Duration estimates in milliseconds per rune of input text. The
// backends do not report clip length, so the estimate stands in for it.
// The silent stand-in never runs longer than five seconds.
const (
	hostedMSPerRune = 80
	localMSPerRune  = 100

	silenceMSPerRune = 100
	silenceMaxMS     = 5000
)

// Clip is one synthesized utterance: a complete WAV container and the
// estimated duration in milliseconds.
type Clip struct {
	Audio      []byte
	DurationMS float64
}

// Synthesizer renders text to a complete WAV clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, speaker string) (Clip, error)
}

// resolveVoice picks the voice for a request: the caller's speaker tag
// wins, then the configured override, then the per-language default.
func resolveVoice(speaker, configured, lang string) string {
	if v := strings.TrimSpace(speaker); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return language.Voice(lang)
}
