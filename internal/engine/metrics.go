package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across one run.
var metrics struct {
	CatalogRequests    atomic.Int64
	TranscriptRequests atomic.Int64
	TranscriptFailures atomic.Int64
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	ProxyRotations     atomic.Int64
	EmailsSent         atomic.Int64
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"catalog_requests":    metrics.CatalogRequests.Load(),
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"transcript_failures": metrics.TranscriptFailures.Load(),
		"cache_hits":          metrics.CacheHits.Load(),
		"cache_misses":        metrics.CacheMisses.Load(),
		"llm_calls":           metrics.LLMCalls.Load(),
		"llm_errors":          metrics.LLMErrors.Load(),
		"proxy_rotations":     metrics.ProxyRotations.Load(),
		"emails_sent":         metrics.EmailsSent.Load(),
	}
}

// FormatMetrics returns counters as simple text, one per line.
func FormatMetrics() string {
	m := GetMetrics()
	keys := []string{
		"catalog_requests", "transcript_requests", "transcript_failures",
		"cache_hits", "cache_misses",
		"llm_calls", "llm_errors",
		"proxy_rotations", "emails_sent",
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

func IncrCatalogRequests()    { metrics.CatalogRequests.Add(1) }
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrTranscriptFailures() { metrics.TranscriptFailures.Add(1) }
func IncrCacheHit()           { metrics.CacheHits.Add(1) }
func IncrCacheMiss()          { metrics.CacheMisses.Add(1) }
func IncrLLMCalls()           { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()          { metrics.LLMErrors.Add(1) }
func IncrProxyRotations()     { metrics.ProxyRotations.Add(1) }
func IncrEmailsSent()         { metrics.EmailsSent.Add(1) }
