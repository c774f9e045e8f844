package asr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/fallback"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// wavFixture builds a short silent wav container.
func wavFixture(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:   make([]int, 1600),
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

type fakeTranscriber struct {
	result Result
	err    error
	calls  int
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (Result, error) {
	f.calls++
	return f.result, f.err
}

func newTestService(cfg config.ASRConfig, backend Transcriber) *Service {
	return NewService(cfg, fallback.Binding[Transcriber]{Tier: "fake", Backend: backend}, testLogger())
}

func TestTranscribeEmptyAudioSkipsBackend(t *testing.T) {
	fake := &fakeTranscriber{result: Result{Text: "should not appear", Confidence: 0.5}}
	svc := newTestService(config.ASRConfig{DefaultLanguage: "en"}, fake)

	out := svc.Transcribe(context.Background(), nil, "")
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Text != "" || out.Confidence != 0 {
		t.Fatalf("expected empty result, got %+v", out)
	}
	if out.Language != "en" {
		t.Fatalf("expected default language, got %q", out.Language)
	}
	if fake.calls != 0 {
		t.Fatalf("expected no backend calls, got %d", fake.calls)
	}
}

func TestTranscribeRejectsNonWavPayload(t *testing.T) {
	fake := &fakeTranscriber{}
	svc := newTestService(config.ASRConfig{DefaultLanguage: "en"}, fake)

	out := svc.Transcribe(context.Background(), []byte("definitely not audio"), "marathi")
	if out.Err == nil {
		t.Fatal("expected degraded result")
	}
	if out.Text != "" || out.Confidence != 0 {
		t.Fatalf("expected empty default content, got %+v", out)
	}
	if fake.calls != 0 {
		t.Fatalf("expected no backend calls, got %d", fake.calls)
	}
}

func TestTranscribeDegradesOnBackendFailure(t *testing.T) {
	fake := &fakeTranscriber{err: errors.New("model crashed")}
	svc := newTestService(config.ASRConfig{DefaultLanguage: "en"}, fake)

	out := svc.Transcribe(context.Background(), wavFixture(t), "spanish")
	if out.Err == nil {
		t.Fatal("expected degraded result")
	}
	if out.Text != "" || out.Confidence != 0 {
		t.Fatalf("expected empty default content, got %+v", out)
	}
	if out.Language != "spanish" {
		t.Fatalf("expected language echoed, got %q", out.Language)
	}
	if fake.calls != 1 {
		t.Fatalf("expected one backend call, got %d", fake.calls)
	}
}

func TestTranscribeSuccess(t *testing.T) {
	fake := &fakeTranscriber{result: Result{Text: "hola", Confidence: 0.91}}
	svc := newTestService(config.ASRConfig{DefaultLanguage: "en"}, fake)

	out := svc.Transcribe(context.Background(), wavFixture(t), "spanish")
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Text != "hola" || out.Confidence != 0.91 {
		t.Fatalf("unexpected result: %+v", out)
	}
	if out.Tier != "fake" {
		t.Fatalf("expected tier tag, got %q", out.Tier)
	}
}

func TestStubFixtures(t *testing.T) {
	stub := newStubTranscriber()

	out, err := stub.Transcribe(context.Background(), nil, "marathi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "नमस्कार, मला मदत हवी आहे" {
		t.Fatalf("unexpected marathi fixture: %q", out.Text)
	}
	if out.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", out.Confidence)
	}

	out, err = stub.Transcribe(context.Background(), nil, "mr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "नमस्कार, मला मदत हवी आहे" {
		t.Fatalf("expected ISO alias to hit the same fixture, got %q", out.Text)
	}

	out, err = stub.Transcribe(context.Background(), nil, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != stubDefaultTranscript {
		t.Fatalf("unexpected default fixture: %q", out.Text)
	}
}

func TestConfidenceAggregation(t *testing.T) {
	if got := confidenceFrom(nil); got != 0.9 {
		t.Fatalf("expected 0.9 for no segments, got %v", got)
	}
	segs := []segment{{AvgLogProb: -0.2}, {AvgLogProb: -0.4}}
	if got := confidenceFrom(segs); math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("expected 0.3, got %v", got)
	}
	if got := confidenceFrom([]segment{{AvgLogProb: 0}}); got != 0.9 {
		t.Fatalf("expected zero mean to fall back to 0.9, got %v", got)
	}
}

func TestBindFallsBackToStub(t *testing.T) {
	binding := Bind(context.Background(), config.ASRConfig{}, testLogger())
	if binding.Tier != TierStub {
		t.Fatalf("expected stub binding, got %q", binding.Tier)
	}
	out, err := binding.Backend.Transcribe(context.Background(), nil, "spanish")
	if err != nil {
		t.Fatalf("stub must not fail: %v", err)
	}
	if out.Text != "Hola, necesito ayuda" {
		t.Fatalf("unexpected fixture: %q", out.Text)
	}
}

func TestExecProbeFailures(t *testing.T) {
	if _, err := newExecTranscriber(config.ASRConfig{}); err == nil {
		t.Fatal("expected probe failure without command")
	}
	if _, err := newExecTranscriber(config.ASRConfig{Command: "definitely-missing-binary-xyz --fast"}); err == nil {
		t.Fatal("expected probe failure for missing binary")
	}
}
