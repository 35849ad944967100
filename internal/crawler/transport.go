package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/interfaces"
)

// maxResponseBody caps how much of a response the transport will read.
const maxResponseBody = 10 * 1024 * 1024 // 10MB

// StandardTransport is a pooled net/http client with user-agent rotation.
type StandardTransport struct {
	client   *http.Client
	rotateUA bool
	logger   arbor.ILogger
}

// NewStandardTransport builds the default HTTP session.
func NewStandardTransport(timeout time.Duration, rotateUA bool, logger arbor.ILogger) *StandardTransport {
	return &StandardTransport{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rotateUA: rotateUA,
		logger:   logger,
	}
}

func (t *StandardTransport) Type() interfaces.SessionType { return interfaces.SessionStandard }

// Get issues one GET with the baseline header set and a sampled user agent.
func (t *StandardTransport) Get(ctx context.Context, url string) (*interfaces.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	for key, value := range baselineHeaders {
		req.Header.Set(key, value)
	}
	if t.rotateUA {
		req.Header.Set("User-Agent", randomUserAgent())
	} else {
		req.Header.Set("User-Agent", userAgents[0])
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &interfaces.Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		FinalURL:   finalURL,
	}, nil
}

// Close releases pooled connections.
func (t *StandardTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// NewTransport creates the session a parser prefers. When the
// impersonating session cannot start (no browser binary, sandbox refusal)
// it transparently falls back to the standard client.
func NewTransport(sessionType interfaces.SessionType, timeout time.Duration, rotateUA bool, logger arbor.ILogger) interfaces.Transport {
	if sessionType == interfaces.SessionImpersonating {
		browser, err := NewBrowserTransport(timeout, logger)
		if err == nil {
			return browser
		}
		logger.Warn().Err(err).Msg("Impersonating session unavailable, falling back to standard client")
	}
	return NewStandardTransport(timeout, rotateUA, logger)
}
