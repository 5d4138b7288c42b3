package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

const retryJitterCeiling = 400 * time.Millisecond

var errRequestExhausted = errors.New("request attempts exhausted")

// statusError reports a non-2xx portal response. Kept as a typed error so
// callers can distinguish a token rejection from an outage.
type statusError struct {
	code   int
	status string
}

func (e statusError) Error() string {
	return fmt.Sprintf("portal returned %s", e.status)
}

// Laravel answers 419 when the CSRF token no longer matches the session.
func isTokenRejected(err error) bool {
	var se statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code == 419 || se.code == http.StatusForbidden
}

// requestExecutor wraps a single outbound call with bounded sequential
// retries and a jittered delay between attempts. Every component that talks
// to the portal goes through one of these.
type requestExecutor struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
}

func newRequestExecutor(client *http.Client, maxAttempts int, baseDelay time.Duration) *requestExecutor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &requestExecutor{client: client, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

// execute performs the request built by build, re-building it for each
// attempt so the body reader is fresh. A 2xx response is returned with its
// body unread; any transport error or non-2xx status is retried until the
// attempt budget runs out, then wrapped in errRequestExhausted together with
// the last underlying cause.
func (e *requestExecutor) execute(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := e.client.Do(req)
		if err == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			err = statusError{code: resp.StatusCode, status: resp.Status}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		lastErr = err
		if attempt == e.maxAttempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, withJitter(e.baseDelay)); sleepErr != nil {
			return nil, sleepErr
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", errRequestExhausted, e.maxAttempts, lastErr)
}

func withJitter(base time.Duration) time.Duration {
	return base + time.Duration(rand.Int63n(int64(retryJitterCeiling)))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
