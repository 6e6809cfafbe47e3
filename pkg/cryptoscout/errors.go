package cryptoscout

import (
	"errors"
	"fmt"
	"strings"
)

// maxErrorBodyLen bounds how much of an upstream error body is retained,
// both in the error value and in warning logs.
const maxErrorBodyLen = 200

// Market data errors. Use errors.As() to inspect the typed variants and
// errors.Is() for the sentinels.
var (
	// ErrInvalidCurrency indicates an empty or unusable quote currency.
	ErrInvalidCurrency = errors.New("invalid quote currency")
	// ErrUnknownProvider indicates an unrecognized provider name in config.
	ErrUnknownProvider = errors.New("unknown data provider")
)

// UpstreamError reports a non-success HTTP status from a market data API.
// Body holds at most maxErrorBodyLen characters of the response.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// TransportError reports a network or timeout failure talking to an upstream.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyLen {
		text = text[:maxErrorBodyLen]
	}
	return text
}
