package asr

import (
	"context"

	"github.com/vaanilabs/vaani/internal/language"
)

// stubTranscriber is the deterministic stand-in terminating the tier
// chain. It ignores the audio payload and answers from a fixture table.
type stubTranscriber struct{}

const stubConfidence = 0.95

var stubTranscripts = map[string]string{
	"marathi": "नमस्कार, मला मदत हवी आहे",
	"spanish": "Hola, necesito ayuda",
}

const stubDefaultTranscript = "Hello, I need help"

func newStubTranscriber() Transcriber {
	return stubTranscriber{}
}

func (stubTranscriber) Transcribe(_ context.Context, _ []byte, lang string) (Result, error) {
	text := stubDefaultTranscript
	if l, ok := language.Lookup(lang); ok {
		if fixture, hit := stubTranscripts[l.Name]; hit {
			text = fixture
		}
	}
	return Result{Text: text, Confidence: stubConfidence}, nil
}
