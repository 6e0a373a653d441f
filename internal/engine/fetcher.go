package engine

import (
	"context"
	"log/slog"
	"time"
)

// TransportFunc performs one network acquisition of a transcript, optionally
// through the given proxy (nil = direct). The language preference ladder is
// resolved inside a single call: trying the secondary language is not a
// retry. Errors must be classifiable via ClassifyFailure.
type TransportFunc func(ctx context.Context, videoID string, langs []string, proxy *ProxyEntry) (string, error)

// TranscriptFetcher orchestrates one transcript acquisition per video:
// cache lookup, proxy selection, network attempt, failure classification,
// rotation/backoff, and write-through on success.
//
// Expected failure classes never surface as errors — the terminal outcome is
// always (text, true) or ("", false). A run is sequential by design: one
// video resolves fully before the next starts, so concurrent fetches never
// multiply the blocking risk.
type TranscriptFetcher struct {
	pool      *ProxyPool // nil or empty pool = direct fetches
	cache     *TranscriptCache
	policy    RetryPolicy
	transport TransportFunc

	maxAttempts int
	langs       []string

	// sleep is replaced in tests; the default honors ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTranscriptFetcher wires the fetcher. maxAttempts <= 0 defaults to 3.
func NewTranscriptFetcher(pool *ProxyPool, cache *TranscriptCache, policy RetryPolicy, transport TransportFunc, maxAttempts int, langs []string) *TranscriptFetcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &TranscriptFetcher{
		pool:        pool,
		cache:       cache,
		policy:      policy,
		transport:   transport,
		maxAttempts: maxAttempts,
		langs:       langs,
		sleep:       sleepCtx,
	}
}

// FetchTranscript returns the transcript for videoID, or ("", false) when no
// transcript exists or every mitigation was exhausted. It never returns an
// error value: expected failures are logged outcomes, not exceptions.
func (f *TranscriptFetcher) FetchTranscript(ctx context.Context, videoID string) (string, bool) {
	if text, ok := f.cache.Get(videoID); ok {
		return text, true
	}

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		var proxy *ProxyEntry
		if f.pool != nil {
			proxy = f.pool.Next()
		}

		text, err := f.transport(ctx, videoID, f.langs, proxy)
		if err == nil {
			f.cache.Set(videoID, text)
			if proxy != nil {
				f.pool.ReportSuccess(proxy)
			}
			return text, true
		}

		kind := ClassifyFailure(err)
		slog.Warn("transcript: attempt failed",
			slog.String("id", videoID),
			slog.Int("attempt", attempt+1),
			slog.String("kind", kind.String()),
			slog.Any("error", err))

		switch kind {
		case FailureAbsence:
			// Terminal, and not the proxy's fault.
			slog.Info("transcript: none available", slog.String("id", videoID))
			return "", false

		case FailureBlocked:
			IncrProxyRotations()
			if proxy != nil {
				f.pool.ReportFailure(proxy)
			}
			// Rotation is the mitigation. With no pool there is nothing to
			// rotate to, so retrying direct would just hit the same wall.
			if proxy == nil {
				slog.Warn("transcript: blocked with no proxies", slog.String("id", videoID))
				return "", false
			}

		case FailureRateLimited:
			if proxy != nil {
				f.pool.ReportFailure(proxy)
			}
			if attempt+1 < f.maxAttempts {
				wait := f.policy.WaitTime(attempt, kind, RetryAfterHint(err))
				if err := f.sleep(ctx, wait); err != nil {
					return "", false
				}
			}

		default: // FailureTransient
			if attempt+1 < f.maxAttempts {
				wait := f.policy.WaitTime(attempt, kind, 0)
				if err := f.sleep(ctx, wait); err != nil {
					return "", false
				}
			}
		}
	}

	IncrTranscriptFailures()
	slog.Warn("transcript: giving up",
		slog.String("id", videoID),
		slog.Int("attempts", f.maxAttempts))
	return "", false
}

// sleepCtx blocks for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
