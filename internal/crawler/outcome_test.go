package crawler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   outcomeKind
	}{
		{"ok", 200, outcomeOK},
		{"not found", 404, outcomeNotFound},
		{"gone", 410, outcomeNotFound},
		{"rate limited", 429, outcomeRateLimited},
		{"forbidden", 403, outcomeRetryable},
		{"server error", 500, outcomeRetryable},
		{"bad gateway", 502, outcomeRetryable},
		{"redirect lands here", 301, outcomeBlocked},
		{"teapot", 418, outcomeBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(tt.status, "", nil, true)
			assert.Equal(t, tt.want, out.kind)
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyTimeoutFlag(t *testing.T) {
	// With the flag, timeouts count as NOT_FOUND to speed sweeps over
	// dense invalid ID ranges.
	out := classify(0, "", timeoutErr{}, true)
	assert.Equal(t, outcomeNotFound, out.kind)

	out = classify(0, "", timeoutErr{}, false)
	assert.Equal(t, outcomeRetryable, out.kind)

	out = classify(0, "", context.DeadlineExceeded, true)
	assert.Equal(t, outcomeNotFound, out.kind)
}

func TestClassifyTransientNetError(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	out := classify(0, "", opErr, true)
	assert.Equal(t, outcomeRetryable, out.kind)
}

func TestClassifyOtherErrorBlocked(t *testing.T) {
	out := classify(0, "", errors.New("certificate verify failed"), true)
	assert.Equal(t, outcomeBlocked, out.kind)
}

func TestCalculateBackoffBounds(t *testing.T) {
	p := &RetryPolicy{
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	for attempt := 0; attempt < 8; attempt++ {
		backoff := p.CalculateBackoff(attempt)
		assert.Greater(t, backoff, time.Duration(0))
		// Cap plus 25% jitter headroom.
		assert.LessOrEqual(t, backoff, 10*time.Second+10*time.Second/4)
	}
}

func TestCooldownGate(t *testing.T) {
	gate := NewCooldownGate(30 * time.Millisecond)
	assert.False(t, gate.Active())

	gate.Trigger()
	assert.True(t, gate.Active())

	start := time.Now()
	assert.NoError(t, gate.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.False(t, gate.Active())
}

func TestCooldownGateWaitCancellation(t *testing.T) {
	gate := NewCooldownGate(time.Minute)
	gate.Trigger()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := gate.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCooldownGateIdleWaitReturnsImmediately(t *testing.T) {
	gate := NewCooldownGate(time.Minute)
	start := time.Now()
	assert.NoError(t, gate.Wait(context.Background()))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}
