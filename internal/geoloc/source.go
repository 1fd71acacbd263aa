package geoloc

import (
	"context"
	"time"
)

// Strategy selects how Acquire obtains a fix.
type Strategy string

const (
	// StrategyNetwork accepts a coarse, possibly cached fix quickly.
	StrategyNetwork Strategy = "network"
	// StrategyHighAccuracy requests a single fresh high-accuracy fix.
	StrategyHighAccuracy Strategy = "high"
	// StrategyUltraAccuracy refines over multiple attempts, keeping the
	// best fix seen until one meets the target accuracy.
	StrategyUltraAccuracy Strategy = "ultra"
)

const (
	networkTimeout = 10 * time.Second
	networkMaxAge  = 60 * time.Second

	highAccuracyTimeout = 60 * time.Second

	ultraAttempts      = 3
	ultraTimeout       = 30 * time.Second
	ultraTargetM       = 20.0
	ultraRetryInterval = 2 * time.Second
)

// Source acquires position samples from a Provider using named strategies.
type Source struct {
	provider   Provider
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// SourceOption customizes a Source.
type SourceOption func(*Source)

// WithRetryDelay overrides the delay between ultra-accuracy attempts.
func WithRetryDelay(d time.Duration) SourceOption {
	return func(s *Source) { s.retryDelay = d }
}

func NewSource(p Provider, opts ...SourceOption) *Source {
	s := &Source{
		provider:   p,
		retryDelay: ultraRetryInterval,
		sleep:      sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Provider returns the underlying provider, for callers that need the
// continuous watch directly.
func (s *Source) Provider() Provider { return s.provider }

// Acquire obtains one sample using the given strategy.
func (s *Source) Acquire(ctx context.Context, strategy Strategy) (Sample, error) {
	switch strategy {
	case StrategyNetwork:
		return s.provider.Current(ctx, Options{
			HighAccuracy: false,
			Timeout:      networkTimeout,
			MaxAge:       networkMaxAge,
		})
	case StrategyUltraAccuracy:
		return s.acquireUltra(ctx)
	default:
		return s.provider.Current(ctx, Options{
			HighAccuracy: true,
			Timeout:      highAccuracyTimeout,
		})
	}
}

// acquireUltra runs bounded accuracy refinement: accept immediately at
// ultraTargetM or better, otherwise keep the best fix seen and retry.
// A single GPS cold-start fix is unreliable, so the budget trades a few
// seconds of latency for precision without blocking forever.
func (s *Source) acquireUltra(ctx context.Context) (Sample, error) {
	var (
		best    Sample
		haveFix bool
		lastErr error
	)
	for attempt := 1; attempt <= ultraAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return Sample{}, err
			}
		}

		sample, err := s.provider.Current(ctx, Options{
			HighAccuracy: true,
			Timeout:      ultraTimeout,
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if sample.AccuracyM <= ultraTargetM {
			return sample, nil
		}
		if !haveFix || sample.AccuracyM < best.AccuracyM {
			best = sample
			haveFix = true
		}
	}
	if haveFix {
		return best, nil
	}
	if lastErr != nil {
		return Sample{}, lastErr
	}
	return Sample{}, ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
