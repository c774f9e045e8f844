package fallback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSelectBindsFirstHealthy(t *testing.T) {
	tiers := []Tier[string]{
		{Name: "primary", Probe: func(context.Context) (string, error) {
			return "", errors.New("no credentials")
		}},
		{Name: "local", Probe: func(context.Context) (string, error) {
			return "local-backend", nil
		}},
		{Name: "stub", Probe: func(context.Context) (string, error) {
			return "stub-backend", nil
		}},
	}

	binding, err := Select(context.Background(), testLogger(), tiers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if binding.Tier != "local" {
		t.Fatalf("expected local tier, got %q", binding.Tier)
	}
	if binding.Backend != "local-backend" {
		t.Fatalf("unexpected backend %q", binding.Backend)
	}
}

func TestSelectExhaustionReportsAllTiers(t *testing.T) {
	boom := errors.New("boom")
	tiers := []Tier[int]{
		{Name: "one", Probe: func(context.Context) (int, error) { return 0, boom }},
		{Name: "two", Probe: func(context.Context) (int, error) { return 0, boom }},
	}
	_, err := Select(context.Background(), testLogger(), tiers)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined cause, got %v", err)
	}
}

func TestWalkFirstSuccessIsNotDegraded(t *testing.T) {
	attempts := []Attempt[string]{
		{Name: "primary", Run: func(context.Context) (string, error) { return "ok", nil }},
		{Name: "stand-in", Run: func(context.Context) (string, error) {
			t.Fatal("lower tier must not run after success")
			return "", nil
		}},
	}
	outcome, err := Walk(context.Background(), testLogger(), attempts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Degraded {
		t.Fatal("first tier success must not be degraded")
	}
	if outcome.Tier != "primary" {
		t.Fatalf("expected primary, got %q", outcome.Tier)
	}
}

func TestWalkFallsThroughAndMarksDegraded(t *testing.T) {
	calls := 0
	attempts := []Attempt[string]{
		{Name: "primary", Run: func(context.Context) (string, error) {
			calls++
			return "", errors.New("api down")
		}},
		{Name: "local", Run: func(context.Context) (string, error) {
			calls++
			return "", errors.New("binary missing")
		}},
		{Name: "stand-in", Run: func(context.Context) (string, error) {
			calls++
			return "silent", nil
		}},
	}
	outcome, err := Walk(context.Background(), testLogger(), attempts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !outcome.Degraded {
		t.Fatal("expected degraded outcome")
	}
	if outcome.Tier != "stand-in" {
		t.Fatalf("expected stand-in tier, got %q", outcome.Tier)
	}
	if outcome.Value != "silent" {
		t.Fatalf("unexpected value %q", outcome.Value)
	}
}

func TestWalkExhaustion(t *testing.T) {
	boom := errors.New("boom")
	attempts := []Attempt[int]{
		{Name: "only", Run: func(context.Context) (int, error) { return 0, boom }},
	}
	_, err := Walk(context.Background(), testLogger(), attempts)
	if !errors.Is(err, boom) {
		t.Fatalf("expected exhaustion carrying cause, got %v", err)
	}
}

func TestWalkStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := []Attempt[int]{
		{Name: "never", Run: func(context.Context) (int, error) {
			t.Fatal("attempt must not run after cancellation")
			return 0, nil
		}},
	}
	if _, err := Walk(ctx, testLogger(), attempts); err == nil {
		t.Fatal("expected error")
	}
}
