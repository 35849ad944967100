package crawler

import (
	"context"
	"sync"
	"time"
)

// CooldownGate parks every worker for a fixed window after a 429. Wait is
// the suspension point each worker passes through before sending a request.
type CooldownGate struct {
	mu       sync.Mutex
	until    time.Time
	duration time.Duration
}

// NewCooldownGate creates a gate with the configured cooldown window.
func NewCooldownGate(duration time.Duration) *CooldownGate {
	return &CooldownGate{duration: duration}
}

// Trigger arms the gate. Re-triggering while armed extends the window from
// now, so bursts of 429s do not stack sleeps.
func (g *CooldownGate) Trigger() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.until = time.Now().Add(g.duration)
}

// Active reports whether the gate is currently armed.
func (g *CooldownGate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.until)
}

// Wait blocks until the gate is clear or the context is cancelled.
func (g *CooldownGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		remaining := time.Until(g.until)
		g.mu.Unlock()

		if remaining <= 0 {
			return nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Re-check: another 429 may have re-armed the gate.
		}
	}
}
