// Package language holds the static per-modality language tables. Every
// resolution from a client-facing tag to a backend code happens here.
package language

import (
	"sort"
	"strings"
)

// Language describes one supported language across all three modalities.
type Language struct {
	Name      string // canonical tag used on the wire, e.g. "marathi"
	ISO       string // ISO 639-1 alias, e.g. "mr"
	ModelCode string // translation model code, e.g. "mar_Deva"
	Voice     string // hosted speech voice
}

// DefaultVoice is used when a language has no dedicated voice entry.
const DefaultVoice = "alloy"

var table = []Language{
	{Name: "marathi", ISO: "mr", ModelCode: "mar_Deva", Voice: "nova"},
	{Name: "spanish", ISO: "es", ModelCode: "spa_Latn", Voice: "coral"},
	{Name: "english", ISO: "en", ModelCode: "eng_Latn", Voice: DefaultVoice},
}

var byTag = func() map[string]Language {
	m := make(map[string]Language, len(table)*2)
	for _, l := range table {
		m[l.Name] = l
		m[l.ISO] = l
	}
	return m
}()

// Lookup resolves a wire tag (canonical name or ISO alias, case-insensitive)
// to its table entry.
func Lookup(tag string) (Language, bool) {
	l, ok := byTag[strings.ToLower(strings.TrimSpace(tag))]
	return l, ok
}

// Hint returns the recognition hint for a tag. Unknown tags pass through
// lowercased so the backend can make its own call.
func Hint(tag string) string {
	if l, ok := Lookup(tag); ok {
		return l.ISO
	}
	return strings.ToLower(strings.TrimSpace(tag))
}

// Voice returns the hosted speech voice for a tag, falling back to
// DefaultVoice for unknown tags.
func Voice(tag string) string {
	if l, ok := Lookup(tag); ok {
		return l.Voice
	}
	return DefaultVoice
}

// Supported lists the canonical tags in stable order.
func Supported() []string {
	names := make([]string, 0, len(table))
	for _, l := range table {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}
