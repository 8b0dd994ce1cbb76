package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/envlens/envmonitor-service/internal/models"
	"github.com/envlens/envmonitor-service/internal/observability"
)

// Strategy is one concrete upstream provider or computation method inside a
// domain's source chain. Fetch returns a raw, validated payload; a structurally
// invalid response (HTTP 200 with missing or null critical fields) returns an
// error wrapping ErrInvalidPayload so chains can fall through immediately.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, q models.Query) (any, error)
}

var (
	// ErrInvalidPayload marks a semantically empty or malformed upstream
	// response. Treated as a failure, never a success: upstreams regularly
	// return 200 with empty bodies.
	ErrInvalidPayload = errors.New("invalid upstream payload")

	// ErrUpstreamFailure marks transient provider failures (5xx, network).
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrRateLimited marks HTTP 429 responses.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized marks rejected credentials (401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound marks HTTP 404 for the requested coordinates/resource.
	ErrNotFound = errors.New("not found")
)

// getJSON performs one GET against a provider with a per-call timeout that is
// independent of any retry budget, records call metrics, maps error statuses
// onto the sentinel taxonomy, and decodes the body into out. A body that fails
// to decode wraps ErrInvalidPayload.
func getJSON(ctx context.Context, client *http.Client, provider, rawURL string, timeout time.Duration, out any) error {
	start := time.Now()

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.RecordUpstreamCall(provider, "error", time.Since(start))
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := correlationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := client.Do(req)
	if err != nil {
		observability.RecordUpstreamCall(provider, "error", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: request timeout: %v", ErrUpstreamFailure, err)
		}
		return fmt.Errorf("%w: http request failed: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.RecordUpstreamCall(provider, status, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response body: %w", provider, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: parse response: %w", provider, ErrInvalidPayload)
	}
	return nil
}

// checkStatus maps non-2xx status codes onto the sentinel error taxonomy.
func checkStatus(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, statusCode)
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}
	return nil
}

// statusLabel buckets a status code into a stable metric label.
func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// correlationID extracts the request correlation ID from context if present.
func correlationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
