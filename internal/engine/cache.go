package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// transcriptsFile is the single persisted cache mapping inside the cache dir.
const transcriptsFile = "transcripts.json"

// cacheRecord is the persisted form of one cached transcript.
type cacheRecord struct {
	Transcript string    `json:"transcript"`
	Timestamp  time.Time `json:"timestamp"`
}

// CacheStats summarizes the cache contents.
type CacheStats struct {
	TotalEntries   int
	ValidEntries   int
	ExpiredEntries int
}

// TranscriptCache is a write-through JSON file cache for fetched transcripts.
// Every Set persists before returning so an interrupted run never refetches
// what it already paid for. Expired entries are evicted lazily on Get.
// Single writer per run; not designed for concurrent processes.
type TranscriptCache struct {
	mu      sync.Mutex
	path    string
	expiry  time.Duration
	entries map[string]cacheRecord

	now func() time.Time
}

// NewTranscriptCache opens (or creates) the cache in dir. A corrupt or
// unreadable persisted file is treated as an empty cache: losing the cache
// costs refetches, never the run.
func NewTranscriptCache(dir string, expiry time.Duration) (*TranscriptCache, error) {
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}

	c := &TranscriptCache{
		path:    filepath.Join(dir, transcriptsFile),
		expiry:  expiry,
		entries: make(map[string]cacheRecord),
		now:     time.Now,
	}
	c.load()
	return c, nil
}

func (c *TranscriptCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cache: unreadable, starting empty", slog.String("file", c.path), slog.Any("error", err))
		}
		return
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		slog.Warn("cache: corrupt, starting empty", slog.String("file", c.path), slog.Any("error", err))
		c.entries = make(map[string]cacheRecord)
		return
	}
	slog.Info("cache: loaded", slog.Int("entries", len(c.entries)))
}

// save persists the whole mapping. Callers hold c.mu.
func (c *TranscriptCache) save() {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		slog.Error("cache: marshal failed", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		slog.Error("cache: write failed", slog.String("file", c.path), slog.Any("error", err))
	}
}

func (c *TranscriptCache) expired(rec cacheRecord, now time.Time) bool {
	return now.Sub(rec.Timestamp) >= c.expiry
}

// Get returns the cached transcript for videoID if present and unexpired.
// An expired entry is removed, the removal persisted, and a miss returned.
func (c *TranscriptCache) Get(videoID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[videoID]
	if !ok {
		IncrCacheMiss()
		return "", false
	}
	if c.expired(rec, c.now()) {
		delete(c.entries, videoID)
		c.save()
		slog.Debug("cache: expired", slog.String("id", videoID))
		IncrCacheMiss()
		return "", false
	}
	slog.Debug("cache: hit", slog.String("id", videoID))
	IncrCacheHit()
	return rec.Transcript, true
}

// Set stores the transcript for videoID, overwriting any previous entry, and
// persists immediately.
func (c *TranscriptCache) Set(videoID, transcript string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[videoID] = cacheRecord{Transcript: transcript, Timestamp: c.now()}
	c.save()
	slog.Debug("cache: stored", slog.String("id", videoID), slog.Int("chars", len(transcript)))
}

// Cleanup removes every expired entry in one sweep. Not needed for
// correctness — Get evicts lazily — but keeps the file from growing.
func (c *TranscriptCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, rec := range c.entries {
		if c.expired(rec, now) {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.save()
		slog.Info("cache: cleaned up", slog.Int("removed", removed))
	}
	return removed
}

// Clear empties the cache entirely.
func (c *TranscriptCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheRecord)
	c.save()
	slog.Info("cache: cleared")
}

// Stats counts total, valid and expired entries without evicting anything.
func (c *TranscriptCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{TotalEntries: len(c.entries)}
	now := c.now()
	for _, rec := range c.entries {
		if c.expired(rec, now) {
			s.ExpiredEntries++
		} else {
			s.ValidEntries++
		}
	}
	return s
}

// Path returns the location of the persisted cache file.
func (c *TranscriptCache) Path() string {
	return c.path
}
