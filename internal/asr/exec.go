package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/language"
)

// execTranscriber shells out to a local whisper CLI. The CLI receives a
// staged wav file and prints JSON ({text, segments[{text, avg_logprob}]})
// on stdout. Calls are serialized: one local model run at a time.
type execTranscriber struct {
	cmd       []string
	modelPath string
	mu        sync.Mutex
}

type execTranscript struct {
	Text     string    `json:"text"`
	Segments []segment `json:"segments"`
}

func newExecTranscriber(cfg config.ASRConfig) (Transcriber, error) {
	if cfg.Command == "" {
		return nil, errors.New("no command configured")
	}
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse asr command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("asr command is empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("asr command not found: %w", err)
	}
	return &execTranscriber{cmd: args, modelPath: cfg.ModelPath}, nil
}

func (t *execTranscriber) Transcribe(ctx context.Context, audio []byte, lang string) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	file, err := os.CreateTemp(os.TempDir(), "vaani_asr_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if _, err := file.Write(audio); err != nil {
		return Result{}, fmt.Errorf("stage audio: %w", err)
	}
	if err := file.Sync(); err != nil {
		return Result{}, fmt.Errorf("flush staged audio: %w", err)
	}

	args := append([]string{}, t.cmd...)
	base := args[0]
	cmdArgs := args[1:]
	cmdArgs = append(cmdArgs, "--file", file.Name())
	if t.modelPath != "" {
		cmdArgs = append(cmdArgs, "--model", t.modelPath)
	}
	if hint := language.Hint(lang); hint != "" {
		cmdArgs = append(cmdArgs, "--language", hint)
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("asr command failed: %w: %s", err, stderr.String())
	}

	var resp execTranscript
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decode asr response: %w", err)
	}
	return Result{Text: resp.Text, Confidence: confidenceFrom(resp.Segments)}, nil
}
