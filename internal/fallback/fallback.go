// Package fallback implements ordered backend tier chains: a boot-time
// selection that binds the first tier able to initialize, and a
// per-request walk that tries bound tiers in order until one produces a
// result. Fallback order is explicit state, not control flow.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Tier is one boot-time candidate. Probe either constructs a usable
// backend or reports why the tier is unavailable.
type Tier[T any] struct {
	Name  string
	Probe func(ctx context.Context) (T, error)
}

// Binding is the immutable result of Select. It never changes after boot.
type Binding[T any] struct {
	Tier    string
	Backend T
}

// Select probes tiers in order and binds the first that initializes.
// Failed probes are logged and skipped. The caller is expected to place
// an infallible stand-in last; if every probe fails anyway, the joined
// errors are returned.
func Select[T any](ctx context.Context, logger *slog.Logger, tiers []Tier[T]) (Binding[T], error) {
	var errs []error
	for _, tier := range tiers {
		backend, err := tier.Probe(ctx)
		if err != nil {
			logger.Warn("backend tier unavailable",
				slog.String("tier", tier.Name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name, err))
			continue
		}
		logger.Info("backend tier bound", slog.String("tier", tier.Name))
		return Binding[T]{Tier: tier.Name, Backend: backend}, nil
	}
	return Binding[T]{}, fmt.Errorf("all backend tiers failed: %w", errors.Join(errs...))
}

// Attempt is one per-request try against an already-bound backend.
type Attempt[R any] struct {
	Name string
	Run  func(ctx context.Context) (R, error)
}

// Outcome tags a per-request result with the tier that produced it.
// Degraded is set when any tier above the winning one failed first.
type Outcome[R any] struct {
	Tier     string
	Value    R
	Degraded bool
}

// Walk runs attempts in order within a single request, returning the
// first success. Every tier failure is logged and the next tier tried;
// only exhaustion of the whole chain is an error.
func Walk[R any](ctx context.Context, logger *slog.Logger, attempts []Attempt[R]) (Outcome[R], error) {
	var errs []error
	for i, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		value, err := attempt.Run(ctx)
		if err != nil {
			logger.Warn("tier attempt failed",
				slog.String("tier", attempt.Name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", attempt.Name, err))
			continue
		}
		return Outcome[R]{Tier: attempt.Name, Value: value, Degraded: i > 0}, nil
	}
	return Outcome[R]{}, fmt.Errorf("all tiers exhausted: %w", errors.Join(errs...))
}
