package crawler

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/interfaces"
)

// RetryPolicy defines retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	TimeoutAsNotFound bool
}

// NewRetryPolicy builds the policy from crawl settings.
func NewRetryPolicy(maxRetries int, maxBackoff time.Duration, timeoutAsNotFound bool) *RetryPolicy {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryPolicy{
		MaxAttempts:       maxRetries,
		InitialBackoff:    time.Second,
		MaxBackoff:        maxBackoff,
		BackoffMultiplier: 2.0,
		TimeoutAsNotFound: timeoutAsNotFound,
	}
}

// CalculateBackoff returns the attempt's backoff with ±25% jitter.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	backoff += backoff * 0.25 * (rand.Float64()*2 - 1)
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}

// Fetch runs one GET through the retry loop. Rate-limited responses arm
// the cooldown gate so every worker backs off, then retry after the
// cooldown has drained. Retryable outcomes back off exponentially; the
// final failure collapses into BLOCKED.
func (p *RetryPolicy) Fetch(ctx context.Context, t interfaces.Transport, cooldown *CooldownGate, url string, logger arbor.ILogger) outcome {
	var last outcome

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := cooldown.Wait(ctx); err != nil {
			return outcome{kind: outcomeBlocked, err: err}
		}

		resp, err := t.Get(ctx, url)
		if resp != nil {
			last = classify(resp.StatusCode, resp.Body, err, p.TimeoutAsNotFound)
		} else {
			last = classify(0, "", err, p.TimeoutAsNotFound)
		}

		switch last.kind {
		case outcomeOK, outcomeNotFound, outcomeBlocked:
			return last
		case outcomeRateLimited:
			cooldown.Trigger()
			logger.Warn().
				Str("url", url).
				Int("attempt", attempt+1).
				Msg("Rate limited, cooldown armed")
			// Retry happens after Wait drains the cooldown.
		case outcomeRetryable:
			if attempt < p.MaxAttempts-1 {
				backoff := p.CalculateBackoff(attempt)
				logger.Debug().
					Str("url", url).
					Int("attempt", attempt+1).
					Int("status_code", last.statusCode).
					Err(last.err).
					Dur("backoff", backoff).
					Msg("Retrying after backoff")

				select {
				case <-ctx.Done():
					return outcome{kind: outcomeBlocked, err: ctx.Err()}
				case <-time.After(backoff):
				}
			}
		}
	}

	logger.Debug().
		Str("url", url).
		Int("max_attempts", p.MaxAttempts).
		Int("status_code", last.statusCode).
		Err(last.err).
		Msg("Retry attempts exhausted")

	// Exhausted retries on 429/403/5xx or transient errors count as BLOCKED.
	last.kind = outcomeBlocked
	return last
}
