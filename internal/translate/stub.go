package translate

import (
	"context"
	"fmt"
)

// stubTranslator serves a fixed phrasebook so conversations keep moving
// when no real backend is reachable. It accepts any language pair.
type stubTranslator struct {
	phrases map[string]string
}

func newStubTranslator() *stubTranslator {
	pairs := [][2]string{
		{"नमस्कार, मला मदत हवी आहे", "Hola, necesito ayuda"},
		{"धन्यवाद", "Gracias"},
		{"माफ करा", "Perdón"},
		{"मला समजत नाही", "No entiendo"},
	}
	phrases := make(map[string]string, len(pairs)*2)
	for _, p := range pairs {
		phrases[p[0]] = p[1]
		phrases[p[1]] = p[0]
	}
	return &stubTranslator{phrases: phrases}
}

func (s *stubTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	if out, ok := s.phrases[text]; ok {
		return out, nil
	}
	return fmt.Sprintf("[stub translation: %s]", text), nil
}

func (s *stubTranslator) Direct() bool { return true }
