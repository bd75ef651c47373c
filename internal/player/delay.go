package player

import (
	"context"
	"math/rand/v2"
	"time"
)

// delayWrapped is the decorator tagged variant: wraps an inner Player
// and sleeps a random duration in [minMs, maxMs) before each Decide call, to
// simulate network jitter or thinking time in local test fixtures. It is a
// distinct variant, not a subclass of its inner player.
type delayWrapped struct {
	inner   Player
	minMs   int
	maxMs   int
	rng     *rand.Rand
	sleeper func(ctx context.Context, d time.Duration) error
}

// NewDelayWrapped wraps a Player so each decision is preceded by a random
// sleep in [minMs, maxMs). Interruption of the sleep (context cancellation)
// surfaces as an error, never a silent skip.
func NewDelayWrapped(inner Player, minMs, maxMs int, rng *rand.Rand) Player {
	return &delayWrapped{inner: inner, minMs: minMs, maxMs: maxMs, rng: rng, sleeper: sleepInterruptible}
}

func (d *delayWrapped) Name() string { return d.inner.Name() }

func (d *delayWrapped) Decide(ctx context.Context, state string, options []string, event *Event) (Decision, error) {
	if err := d.sleeper(ctx, d.randomDelay()); err != nil {
		return Decision{}, err
	}
	return d.inner.Decide(ctx, state, options, event)
}

func (d *delayWrapped) Observe(ctx context.Context, state string, event Event) {
	d.inner.Observe(ctx, state, event)
}

func (d *delayWrapped) randomDelay() time.Duration {
	span := d.maxMs - d.minMs
	if span <= 0 {
		return time.Duration(d.minMs) * time.Millisecond
	}
	return time.Duration(d.minMs+d.rng.IntN(span)) * time.Millisecond
}

func sleepInterruptible(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
