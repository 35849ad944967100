// Package interfaces holds contracts shared across services so packages
// depend on behavior, not on each other.
package interfaces

import (
	"context"
)

// SessionType selects the HTTP transport used for a source.
type SessionType string

const (
	// SessionStandard is a pooled net/http client.
	SessionStandard SessionType = "standard"
	// SessionImpersonating drives a real browser session for sites that
	// fingerprint TLS/HTTP2.
	SessionImpersonating SessionType = "impersonating"
)

// Response is the result of one transport GET.
type Response struct {
	StatusCode int
	Body       string
	FinalURL   string
}

// Transport issues GET requests. Implementations own their connection
// state and release it on Close.
type Transport interface {
	Get(ctx context.Context, url string) (*Response, error)
	Type() SessionType
	Close() error
}
