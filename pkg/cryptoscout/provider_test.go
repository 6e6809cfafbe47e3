package cryptoscout

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

// doerFunc adapts a function to HTTPDoer for tests.
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchJSONDecodes(t *testing.T) {
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		if got := req.Header.Get("X-Test"); got != "yes" {
			t.Errorf("X-Test = %q", got)
		}
		return jsonResponse(http.StatusOK, `{"value": 7}`), nil
	})

	var out struct {
		Value int `json:"value"`
	}
	err := fetchJSON(context.Background(), doer, testLogger(),
		"https://example.com/x", map[string]string{"X-Test": "yes"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out.Value != 7 {
		t.Fatalf("value = %d, want 7", out.Value)
	}
}

func TestFetchJSONUpstreamErrorTruncatesBody(t *testing.T) {
	long := strings.Repeat("x", 500)
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, long), nil
	})

	var out any
	err := fetchJSON(context.Background(), doer, testLogger(), "https://example.com/x", nil, &out)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if upstream.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", upstream.StatusCode)
	}
	if len(upstream.Body) != maxErrorBodyLen {
		t.Errorf("body length = %d, want %d", len(upstream.Body), maxErrorBodyLen)
	}
}

func TestFetchJSONTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, cause
	})

	var out any
	err := fetchJSON(context.Background(), doer, testLogger(), "https://example.com/x", nil, &out)

	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to survive errors.Is")
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, upstreamMaxLimit},
		{-1, upstreamMaxLimit},
		{50, 50},
		{100, 100},
		{101, upstreamMaxLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
