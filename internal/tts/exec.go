package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-audio/wav"
	shellwords "github.com/mattn/go-shellwords"

	"github.com/vaanilabs/vaani/internal/config"
)

// execSynthesizer shells out to a local speech CLI: JSON request on
// stdin, a complete WAV container on stdout. One request at a time.
type execSynthesizer struct {
	args       []string
	voice      string
	sampleRate int
	channels   int
	mu         sync.Mutex
}

type execSpeechRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func newExecSynthesizer(cfg config.TTSConfig) (Synthesizer, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("tts command is empty")
	}
	args, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("tts command is empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("tts command not found: %w", err)
	}
	return &execSynthesizer{
		args:       args,
		voice:      cfg.Voice,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}, nil
}

func (s *execSynthesizer) Synthesize(ctx context.Context, text, lang, speaker string) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input, err := json.Marshal(execSpeechRequest{
		Text:       text,
		Voice:      resolveVoice(speaker, s.voice, lang),
		SampleRate: s.sampleRate,
		Channels:   s.channels,
	})
	if err != nil {
		return Clip{}, fmt.Errorf("encode tts request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.args[0], s.args[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	audio, err := cmd.Output()
	if err != nil {
		return Clip{}, fmt.Errorf("tts command failed: %w", err)
	}
	if !wav.NewDecoder(bytes.NewReader(audio)).IsValidFile() {
		return Clip{}, errors.New("tts command produced a payload that is not a wav container")
	}

	return Clip{
		Audio:      audio,
		DurationMS: float64(utf8.RuneCountInString(text) * localMSPerRune),
	}, nil
}
