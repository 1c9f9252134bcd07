package servimed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// maxBodyBytes bounds how much of an upstream response is read into memory.
const maxBodyBytes = 10 << 20

// maxErrorBodyChars bounds how much of an error body ends up in a StatusError.
const maxErrorBodyChars = 256

// RetryPolicy controls retries of transient upstream failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Delay is the wait before the second attempt; it doubles after each failure.
	Delay time.Duration
}

// response is a fully read upstream response.
type response struct {
	StatusCode int
	Body       []byte
}

// send executes req and reads the whole body, bounded by maxBodyBytes.
func send(client *http.Client, req *http.Request) (*response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &response{StatusCode: resp.StatusCode, Body: body}, nil
}

// newJSONRequest builds a request with a JSON-encoded body.
func newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// newStatusError captures an unexpected status with a truncated body.
func newStatusError(op string, resp *response) *StatusError {
	body := strings.TrimSpace(string(resp.Body))
	if len(body) > maxErrorBodyChars {
		body = body[:maxErrorBodyChars] + "..."
	}
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: body}
}

// isTransient reports whether a failed attempt may succeed on retry.
// Context cancellation and deadline errors are never retried.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}

	return !errors.Is(err, ErrInvalidResponse)
}

// backoff converts the policy into an exponential backoff that stops after
// MaxAttempts-1 retries.
func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Delay
	if base <= 0 {
		base = time.Nanosecond
	}
	return retry.WithMaxRetries(uint64(p.attempts()-1), retry.NewExponential(base))
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// withRetry runs fn until it succeeds, fails permanently, or the policy is
// exhausted. The wait between attempts honours ctx.
func withRetry(
	ctx context.Context,
	logger *slog.Logger,
	policy RetryPolicy,
	op string,
	fn func(ctx context.Context) error,
) error {
	maxAttempts := policy.attempts()

	var (
		attempt int
		lastErr error
	)
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempt++
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}

		if attempt < maxAttempts {
			logger.WarnContext(ctx, "transient upstream failure, retrying",
				"operation", op,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", lastErr)
		}
		return retry.RetryableError(lastErr)
	})

	switch {
	case err == nil:
		return nil
	case !isTransient(lastErr):
		return err
	case attempt < maxAttempts:
		return fmt.Errorf("%s cancelled during retry: %w", op, err)
	case maxAttempts == 1:
		return lastErr
	default:
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)
	}
}

// callTimeout derives a context bounded by timeout, or returns ctx unchanged
// when timeout is not positive.
func callTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
