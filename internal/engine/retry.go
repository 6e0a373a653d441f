package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy decides whether a classified failure is worth another attempt
// and how long to wait before it. Pure decision logic — the fetcher owns the
// loop and the sleeping.
type RetryPolicy struct {
	BaseDelay     time.Duration // transient backoff base
	BackoffFactor float64       // transient backoff multiplier
	RateLimitWait time.Duration // fixed wait after 429
}

// DefaultRetryPolicy matches the documented defaults: 5s base, factor 2,
// 60s rate-limit wait.
var DefaultRetryPolicy = RetryPolicy{
	BaseDelay:     5 * time.Second,
	BackoffFactor: 2,
	RateLimitWait: 60 * time.Second,
}

// Retryable reports whether a failure kind is worth retrying at all.
// Absence is terminal: the transcript does not exist.
func (p RetryPolicy) Retryable(kind FailureKind) bool {
	return kind != FailureAbsence
}

// WaitTime returns the pause before the next attempt. attempt is 0-based.
// Blocking gets no wait — rotating to a fresh proxy is the mitigation.
// Rate limits wait a fixed window (the server hint overrides it) because
// they are time-based, not attempt-based. Everything else backs off
// exponentially.
func (p RetryPolicy) WaitTime(attempt int, kind FailureKind, hint time.Duration) time.Duration {
	switch kind {
	case FailureAbsence, FailureBlocked:
		return 0
	case FailureRateLimited:
		if hint > 0 {
			return hint
		}
		return p.RateLimitWait
	default:
		return time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	}
}

// RetryConfig controls low-level HTTP retry behavior (catalog API, timedtext).
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig is suitable for the well-behaved endpoints (Data API,
// caption XML). The adversarial transcript path uses RetryPolicy instead.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
}

// RetryDo retries fn up to MaxRetries times with exponential backoff.
// Retries only on retryable errors; returns immediately on non-retryable or
// context cancellation.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableErr(err) {
			return zero, err
		}

		if attempt < rc.MaxRetries {
			wait := time.Duration(float64(rc.InitialWait) * math.Pow(rc.Multiplier, float64(attempt)))
			if wait > rc.MaxWait {
				wait = rc.MaxWait
			}
			slog.Debug("retrying", slog.Int("attempt", attempt+1), slog.Duration("wait", wait), slog.Any("error", err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}

// RetryHTTP executes an HTTP request function with retry logic. Status codes
// that identify blocking or rate limiting surface as their typed errors so
// callers can classify them; 5xx codes are retried in place.
func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return RetryDo(ctx, rc, func() (*http.Response, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode == 403:
			resp.Body.Close()
			return nil, &BlockedError{StatusCode: 403}
		case resp.StatusCode == 429:
			hint := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			return nil, &RateLimitError{RetryAfter: hint}
		case isRetryableStatus(resp.StatusCode):
			resp.Body.Close()
			return nil, &httpStatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// isRetryableErr returns true for errors worth retrying inside RetryDo.
// Blocking and rate limiting are handled one level up by the fetcher's
// policy, not by blind low-level retries.
func isRetryableErr(err error) bool {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return false
	}
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return true // already filtered by isRetryableStatus
	}
	return isRetryableNetErr(err)
}

// isRetryableStatus returns true for HTTP status codes worth retrying in place.
func isRetryableStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	}
	return false
}

// parseRetryAfter parses a Retry-After header value in seconds. HTTP-date
// values are ignored — YouTube sends delta-seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
