package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/interfaces"
)

// browserCloseTimeout bounds session teardown so a wedged browser cannot
// hang shutdown.
const browserCloseTimeout = 5 * time.Second

// BrowserTransport drives a real Chrome session for sites that fingerprint
// TLS/HTTP2 and block plain clients.
type BrowserTransport struct {
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	timeout         time.Duration
	logger          arbor.ILogger
	mu              sync.Mutex
	closed          bool
}

// NewBrowserTransport starts a headless browser and verifies it responds.
func NewBrowserTransport(timeout time.Duration, logger arbor.ILogger) (*BrowserTransport, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgents[0]),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup test so construction fails fast when no browser is available.
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	logger.Info().Msg("Impersonating browser session started")
	return &BrowserTransport{
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		timeout:         timeout,
		logger:          logger,
	}, nil
}

func (t *BrowserTransport) Type() interfaces.SessionType { return interfaces.SessionImpersonating }

// Get navigates to the URL and returns the rendered document. The HTTP
// status of the main document is captured from the network event stream.
func (t *BrowserTransport) Get(ctx context.Context, url string) (*interfaces.Response, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("browser session closed")
	}
	t.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(t.browserCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, t.timeout)
	defer runCancel()

	// Honor caller cancellation on top of the per-request timeout.
	go func() {
		select {
		case <-ctx.Done():
			runCancel()
		case <-runCtx.Done():
		}
	}()

	var statusCode int64
	var statusMu sync.Mutex
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			statusMu.Lock()
			if statusCode == 0 {
				statusCode = resp.Response.Status
			}
			statusMu.Unlock()
		}
	})

	var html string
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, err
	}

	statusMu.Lock()
	status := int(statusCode)
	statusMu.Unlock()
	if status == 0 {
		status = 200 // no document event observed, page rendered anyway
	}

	return &interfaces.Response{StatusCode: status, Body: html, FinalURL: url}, nil
}

// Close tears the browser down, bounded by browserCloseTimeout.
func (t *BrowserTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.browserCancel()
		t.allocatorCancel()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Debug().Msg("Browser session closed")
	case <-time.After(browserCloseTimeout):
		t.logger.Warn().Msg("Browser session close timed out")
	}
	return nil
}
