package crawler

import (
	"context"
	"errors"
	"net"
)

// outcomeKind discriminates transport results so the retry loop is driven
// by data, not exceptions.
type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeNotFound
	outcomeRateLimited
	outcomeBlocked
	outcomeRetryable
)

// outcome is the classified result of one GET attempt.
type outcome struct {
	kind       outcomeKind
	statusCode int
	body       string
	err        error
}

// classify maps a transport response or error onto the outcome taxonomy.
// timeoutAsNotFound classes request timeouts as NOT_FOUND to accelerate
// sweeps over dense invalid ID ranges.
func classify(statusCode int, body string, err error, timeoutAsNotFound bool) outcome {
	if err != nil {
		if isTimeout(err) {
			if timeoutAsNotFound {
				return outcome{kind: outcomeNotFound, err: err}
			}
			return outcome{kind: outcomeRetryable, err: err}
		}
		if isTransientNetErr(err) {
			return outcome{kind: outcomeRetryable, err: err}
		}
		return outcome{kind: outcomeBlocked, err: err}
	}

	switch {
	case statusCode == 200:
		return outcome{kind: outcomeOK, statusCode: statusCode, body: body}
	case statusCode == 404 || statusCode == 410:
		return outcome{kind: outcomeNotFound, statusCode: statusCode}
	case statusCode == 429:
		return outcome{kind: outcomeRateLimited, statusCode: statusCode}
	case statusCode == 403 || statusCode >= 500:
		return outcome{kind: outcomeRetryable, statusCode: statusCode}
	default:
		return outcome{kind: outcomeBlocked, statusCode: statusCode}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTransientNetErr(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Temporary()
}
