package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	TranscriptLangs       []string // language preference ladder, e.g. ["ja", "en"]

	MaxAttempts   int           // network attempts per video before giving up
	BaseDelay     time.Duration // transient-failure backoff base
	BackoffFactor float64       // transient-failure backoff multiplier
	RateLimitWait time.Duration // fixed wait after HTTP 429

	CacheDir    string
	CacheExpiry time.Duration

	ProxyEnabled          bool
	ProxyFile             string
	WebshareToken         string
	ProxyFailureThreshold int
	ProxyDisableFor       time.Duration

	CookiesFile string // Netscape cookies.txt, optional

	MaxVideos int           // cap per run to keep request volume down
	ItemDelay time.Duration // pause between videos in the batch loop

	LLMClient     *llm.Client
	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = watch-page scraping uses HTTPClient
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources, digest).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
