// Package completion turns a natural-language instruction into file
// operations by asking a text-completion backend for a strict JSON plan.
package completion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"botcursor/internal/logging"
)

// Params are the sampling parameters sent with every request.
type Params struct {
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
}

// Backend is one completion provider. Implementations are chosen once at
// startup by NewBackend.
type Backend interface {
	// Complete sends the preamble as the system message and userContext as
	// the single user turn, returning the raw text of the reply.
	Complete(ctx context.Context, preamble, userContext string, params Params) (string, error)
	// Name is the provider name used in logs and error messages.
	Name() string
	GetModel() string
}

// StatusError is returned by HTTP backends for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

const maxRetries = 3

// retryBaseDelay is the first backoff step; it doubles on each retry.
var retryBaseDelay = time.Second

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// postJSON sends body to url and returns the response body. 429 and 5xx
// responses are retried with exponential backoff (1s, 2s, 4s).
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte, backend string) ([]byte, error) {
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(i-1))
			logging.CompletionWarn("[%s] retrying in %v after: %v", backend, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if !retryable(resp.StatusCode) {
			return nil, statusErr
		}
		lastErr = statusErr
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// withDefaultTimeout applies timeout when ctx carries no deadline.
func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
