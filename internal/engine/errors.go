package engine

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// FailureKind classifies a transcript fetch failure. Classification order
// matters: absence wins over blocking, blocking over rate limiting.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureAbsence
	FailureBlocked
	FailureRateLimited
	FailureTransient
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureAbsence:
		return "absence"
	case FailureBlocked:
		return "blocked"
	case FailureRateLimited:
		return "rate_limited"
	case FailureTransient:
		return "transient"
	}
	return "unknown"
}

// ErrNoTranscript means the video has no transcript or transcripts are
// disabled. This is terminal absence, not a fetch error.
var ErrNoTranscript = errors.New("no transcript available")

// BlockedError means the origin refused the request (HTTP 403 or an
// explicit anti-bot page). Retrying on the same egress IP is pointless.
type BlockedError struct {
	StatusCode int
	Msg        string
}

func (e *BlockedError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("blocked (HTTP %d): %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("blocked (HTTP %d)", e.StatusCode)
}

// RateLimitError wraps HTTP 429. RetryAfter is zero when the server sent
// no Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// httpStatusError wraps a retryable HTTP status code.
type httpStatusError struct {
	StatusCode int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// blockIndicators are message fragments that identify origin blocking when
// no explicit status code is available (e.g. wrapped transport errors).
var blockIndicators = []string{
	"blocked",
	"forbidden",
	"captcha",
	"too many requests from your ip",
	"cloud provider",
}

// ClassifyFailure maps an error from the transcript transport to a
// FailureKind. First match wins, in taxonomy order.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	if errors.Is(err, ErrNoTranscript) {
		return FailureAbsence
	}

	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return FailureBlocked
	}

	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		return FailureRateLimited
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 403:
			return FailureBlocked
		case 429:
			return FailureRateLimited
		}
		return FailureTransient
	}

	msg := strings.ToLower(err.Error())
	for _, ind := range blockIndicators {
		if strings.Contains(msg, ind) {
			return FailureBlocked
		}
	}
	if strings.Contains(msg, "429") {
		return FailureRateLimited
	}

	return FailureTransient
}

// RetryAfterHint extracts the server-supplied Retry-After duration from a
// rate-limit error, or zero if none was given.
func RetryAfterHint(err error) time.Duration {
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		return rateLimited.RetryAfter
	}
	return 0
}

// isRetryableNetErr returns true for transient network errors worth retrying
// inside a single HTTP call (dial failures, DNS, timeouts).
func isRetryableNetErr(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
