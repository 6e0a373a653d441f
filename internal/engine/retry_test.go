package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, FailureNone},
		{"no transcript", ErrNoTranscript, FailureAbsence},
		{"wrapped no transcript", fmt.Errorf("video x: %w", ErrNoTranscript), FailureAbsence},
		{"blocked error", &BlockedError{StatusCode: 403}, FailureBlocked},
		{"rate limit error", &RateLimitError{}, FailureRateLimited},
		{"status 403", &httpStatusError{403}, FailureBlocked},
		{"status 429", &httpStatusError{429}, FailureRateLimited},
		{"status 503", &httpStatusError{503}, FailureTransient},
		{"captcha in message", errors.New("request failed: captcha required"), FailureBlocked},
		{"forbidden in message", errors.New("GET: Forbidden"), FailureBlocked},
		{"429 in message", errors.New("unexpected status 429"), FailureRateLimited},
		{"dial error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, FailureTransient},
		{"plain error", errors.New("read: connection reset"), FailureTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFailure(tt.err); got != tt.want {
				t.Errorf("ClassifyFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWaitTime(t *testing.T) {
	p := DefaultRetryPolicy

	tests := []struct {
		name    string
		attempt int
		kind    FailureKind
		hint    time.Duration
		want    time.Duration
	}{
		{"blocked no wait", 0, FailureBlocked, 0, 0},
		{"absence no wait", 0, FailureAbsence, 0, 0},
		{"rate limit fixed", 0, FailureRateLimited, 0, 60 * time.Second},
		{"rate limit fixed on later attempt", 2, FailureRateLimited, 0, 60 * time.Second},
		{"rate limit server hint wins", 1, FailureRateLimited, 17 * time.Second, 17 * time.Second},
		{"transient first", 0, FailureTransient, 0, 5 * time.Second},
		{"transient second", 1, FailureTransient, 0, 10 * time.Second},
		{"transient third", 2, FailureTransient, 0, 20 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.WaitTime(tt.attempt, tt.kind, tt.hint); got != tt.want {
				t.Errorf("WaitTime(%d, %v, %v) = %v, want %v", tt.attempt, tt.kind, tt.hint, got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	p := DefaultRetryPolicy
	if p.Retryable(FailureAbsence) {
		t.Error("absence must be terminal")
	}
	for _, kind := range []FailureKind{FailureBlocked, FailureRateLimited, FailureTransient} {
		if !p.Retryable(kind) {
			t.Errorf("%v should be retryable", kind)
		}
	}
}

func TestRetryAfterHint(t *testing.T) {
	if got := RetryAfterHint(&RateLimitError{RetryAfter: 30 * time.Second}); got != 30*time.Second {
		t.Errorf("got %v, want 30s", got)
	}
	if got := RetryAfterHint(errors.New("nope")); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestRetryDoSuccess(t *testing.T) {
	rc := RetryConfig{MaxRetries: 3, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	got, err := RetryDo(context.Background(), rc, func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryDoRetryThenSuccess(t *testing.T) {
	rc := RetryConfig{MaxRetries: 3, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	got, err := RetryDo(context.Background(), rc, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &httpStatusError{503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryDoDoesNotRetryBlocked(t *testing.T) {
	rc := RetryConfig{MaxRetries: 3, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	_, err := RetryDo(context.Background(), rc, func() (string, error) {
		calls++
		return "", &BlockedError{StatusCode: 403}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("blocked must not be retried in place, got %d calls", calls)
	}
}

func TestRetryDoExhausted(t *testing.T) {
	rc := RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	_, err := RetryDo(context.Background(), rc, func() (int, error) {
		calls++
		return 0, &httpStatusError{502}
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (initial + 2 retries), got %d", calls)
	}
}

func TestRetryDoContextCanceled(t *testing.T) {
	rc := RetryConfig{MaxRetries: 5, InitialWait: time.Hour, MaxWait: time.Hour, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := RetryDo(ctx, rc, func() (string, error) {
		calls++
		return "", &httpStatusError{503}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"0", 0},
		{"-5", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
