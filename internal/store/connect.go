package store

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ConnectConfig controls retries while opening a store, e.g. when the
// database container starts after the server.
type ConnectConfig struct {
	// Attempts is the total number of tries. Default: 1.
	Attempts int
	// InitialBackoff is the delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay. Default: 15s.
	MaxBackoff time.Duration
}

// Connect calls open until it succeeds, the attempts run out or ctx ends.
// Delays double per attempt with ±25% jitter.
func Connect(ctx context.Context, cfg ConnectConfig, open func(ctx context.Context) (Store, error)) (Store, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 15 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		st, err := open(ctx)
		if err == nil {
			return st, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == cfg.Attempts-1 {
			break
		}

		delay := backoff(attempt, cfg)
		zap.L().Warn("store: connect failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, eris.Wrap(lastErr, "store: connect cancelled")
		case <-timer.C:
		}
	}
	return nil, eris.Wrapf(lastErr, "store: connect failed after %d attempts", cfg.Attempts)
}

func backoff(attempt int, cfg ConnectConfig) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	d += (rand.Float64()*2 - 1) * d * 0.25
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
