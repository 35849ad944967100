package crawler

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces requests to one source: a token bucket enforces the minimum
// inter-request gap and a uniform jitter up to (max-min) is added on top.
type Pacer struct {
	limiter *rate.Limiter
	jitter  time.Duration
}

// NewPacer builds a pacer for the source's delay range.
func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	if minDelay <= 0 {
		minDelay = time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(minDelay), 1),
		jitter:  maxDelay - minDelay,
	}
}

// Wait blocks until the next request slot plus jitter.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	if p.jitter <= 0 {
		return nil
	}
	sleep := time.Duration(rand.Int63n(int64(p.jitter) + 1))
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
