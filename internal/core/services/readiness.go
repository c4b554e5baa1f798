package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/manthysbr/freeroute/internal/core/domain"
)

// ReadinessPolicy bounds how long we wait for the engine to answer health checks.
type ReadinessPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

func DefaultReadinessPolicy() ReadinessPolicy {
	return ReadinessPolicy{MaxAttempts: 10, Interval: time.Second}
}

// Probe is a single health check. Any error counts as not ready.
type Probe func(ctx context.Context) error

// AwaitReady probes until the first success, at a fixed interval, giving up after
// MaxAttempts failures. There is no backoff so the worst case stays predictable.
func AwaitReady(ctx context.Context, logger *slog.Logger, probe Probe, policy ReadinessPolicy) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = probe(ctx)
		if lastErr == nil {
			logger.Debug("routing service ready", "attempts", attempt)
			return nil
		}
		logger.Debug("routing service not ready", "attempt", attempt, "error", lastErr)

		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleepContext(ctx, policy.Interval); err != nil {
			return fmt.Errorf("%w: waiting for readiness: %w", domain.ErrServiceUnavailable, err)
		}
	}

	return fmt.Errorf("%w: server failed to start after %d attempts: %w", domain.ErrServiceUnavailable, policy.MaxAttempts, lastErr)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
