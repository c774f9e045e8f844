package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/language"
)

// execTranslator shells out to a local translation CLI. One request at a
// time; the binaries this wraps are not safe to run concurrently against
// a shared model file.
type execTranslator struct {
	args []string
	mu   sync.Mutex
}

type execRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type execResponse struct {
	TranslatedText string `json:"translated_text"`
}

func newExecTranslator(cfg config.TranslatorConfig) (*execTranslator, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("translator command is empty")
	}
	args, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse translator command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("translator command is empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("translator command not found: %w", err)
	}
	return &execTranslator{args: args}, nil
}

func (t *execTranslator) Translate(ctx context.Context, text, sourceTag, targetTag string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	input, err := json.Marshal(execRequest{
		Text:   text,
		Source: language.Hint(sourceTag),
		Target: language.Hint(targetTag),
	})
	if err != nil {
		return "", fmt.Errorf("encode translator request: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.args[0], t.args[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("translator command failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("decode translator output: %w", err)
	}
	if strings.TrimSpace(resp.TranslatedText) == "" {
		return "", errors.New("translator command returned no text")
	}
	return resp.TranslatedText, nil
}

// Direct reports false: the CLI translates single legs and is composed
// through the pivot language.
func (t *execTranslator) Direct() bool { return false }
