package tts

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/vaanilabs/vaani/internal/config"
)

// silenceSynthesizer is the terminal stand-in: a silent waveform sized
// to the text so downstream playback keeps its timing even when no real
// voice was available.
type silenceSynthesizer struct {
	sampleRate int
	channels   int
}

func newSilenceSynthesizer(cfg config.TTSConfig) *silenceSynthesizer {
	return &silenceSynthesizer{sampleRate: cfg.SampleRate, channels: cfg.Channels}
}

func (s *silenceSynthesizer) Synthesize(_ context.Context, text, _, _ string) (Clip, error) {
	ms := utf8.RuneCountInString(text) * silenceMSPerRune
	if ms > silenceMaxMS {
		ms = silenceMaxMS
	}
	frames := s.sampleRate * ms / 1000

	tmp, err := os.CreateTemp("", "vaani_tts_*.wav")
	if err != nil {
		return Clip{}, fmt.Errorf("stage silent clip: %w", err)
	}
	defer os.Remove(tmp.Name())

	buffer := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: s.channels, SampleRate: s.sampleRate},
		Data:   make([]int, frames*s.channels),
	}
	enc := wav.NewEncoder(tmp, s.sampleRate, 16, s.channels, 1)
	if err := enc.Write(buffer); err != nil {
		tmp.Close()
		return Clip{}, fmt.Errorf("write silent clip: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return Clip{}, fmt.Errorf("close wav encoder: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Clip{}, err
	}

	wavBytes, err := os.ReadFile(tmp.Name())
	if err != nil {
		return Clip{}, fmt.Errorf("read silent clip: %w", err)
	}
	return Clip{Audio: wavBytes, DurationMS: float64(ms)}, nil
}
