package cryptoscout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseSize limits upstream API responses to 1MB to prevent memory
// exhaustion from malicious or buggy external APIs.
const maxResponseSize = 1 << 20

// upstreamMaxLimit is the largest batch size the market data APIs accept.
const upstreamMaxLimit = 100

const defaultHTTPTimeout = 10 * time.Second

// HTTPDoer is an interface for making HTTP requests. It enables dependency
// injection for testing without network calls.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// DataProvider supplies normalized market data for one upstream source.
// Implementations own their caching; every method is safe for concurrent
// use across requests.
type DataProvider interface {
	// Name identifies the upstream source (used for logging and cache keys).
	Name() string
	// GetTopAssets returns the top assets by market cap, sorted ascending by
	// rank with unranked assets last, quoted in currency.
	GetTopAssets(ctx context.Context, currency string) ([]Asset, error)
	// GetSparkline returns up to days daily prices for one asset in
	// chronological order.
	GetSparkline(ctx context.Context, id, currency string, days int) ([]Price, error)
}

// clampLimit bounds a requested batch size to (0, upstreamMaxLimit].
func clampLimit(limit int) int {
	if limit <= 0 || limit > upstreamMaxLimit {
		return upstreamMaxLimit
	}
	return limit
}

// fetchJSON issues a GET, enforces the response size cap and decodes the
// body into out. Non-2xx statuses become *UpstreamError with a truncated
// body (logged at warning level); network failures become *TransportError.
func fetchJSON(ctx context.Context, client HTTPDoer, logger *slog.Logger, url string, headers map[string]string, out any) error {
	if logger == nil {
		logger = slog.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		truncated := truncateBody(body)
		logger.Warn("market data request failed",
			"url", url,
			"status", resp.StatusCode,
			"body", truncated,
		)
		return &UpstreamError{StatusCode: resp.StatusCode, Body: truncated}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}
