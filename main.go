// go_digest — YouTube digest mailer.
//
// Watches a set of YouTube channels, fetches transcripts for new videos
// (rotating proxies when YouTube blocks datacenter egress), summarizes them
// with an LLM, and mails a daily digest. Designed to run once per day from
// cron or a scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/engine/digest"
	"github.com/anatolykoptev/go_digest/internal/engine/sources"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "go_digest",
		Short:   "YouTube transcript digest mailer",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd.Context())
		},
		SilenceUsage: true,
	}

	cacheCmd := &cobra.Command{Use: "cache", Short: "Inspect or maintain the transcript cache"}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache entry counts",
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := newCache()
				if err != nil {
					return err
				}
				s := cache.Stats()
				fmt.Printf("cache: %s\n  total:   %d\n  valid:   %d\n  expired: %d\n",
					cache.Path(), s.TotalEntries, s.ValidEntries, s.ExpiredEntries)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Remove expired cache entries",
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := newCache()
				if err != nil {
					return err
				}
				fmt.Printf("removed %d expired entries\n", cache.Cleanup())
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every cache entry",
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := newCache()
				if err != nil {
					return err
				}
				cache.Clear()
				fmt.Println("cache cleared")
				return nil
			},
		},
	)

	proxiesCmd := &cobra.Command{Use: "proxies", Short: "Inspect the proxy pool"}
	proxiesCmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show pool size and availability",
			Run: func(cmd *cobra.Command, args []string) {
				initEngine()
				pool := newPool()
				s := pool.Stats()
				fmt.Printf("proxies: %d total, %d available, %d disabled\n",
					s.Total, s.Available, s.Disabled)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Probe TCP reachability of every proxy",
			Run: func(cmd *cobra.Command, args []string) {
				initEngine()
				pool := newPool()
				n := pool.Len()
				if n == 0 {
					fmt.Println("no proxies configured")
					return
				}
				ok := 0
				for i := 0; i < n; i++ {
					p := pool.Next()
					if err := engine.CheckProxy(p, 5*time.Second); err != nil {
						fmt.Printf("FAIL %s: %v\n", p.Addr(), err)
						continue
					}
					fmt.Printf("ok   %s\n", p.Addr())
					ok++
				}
				fmt.Printf("%d/%d reachable\n", ok, n)
			},
		},
	)

	root.AddCommand(cacheCmd, proxiesCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("go_digest failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// runDigest executes one full digest cycle.
func runDigest(ctx context.Context) error {
	initEngine()
	c := engine.Cfg

	slog.Info("starting go_digest", slog.String("version", version))

	channels, err := loadChannelIDs()
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels configured: set TARGET_CHANNEL_IDS or create %s",
			env.Str("CHANNEL_IDS_FILE", "channel_ids.txt"))
	}

	recipient := env.Str("RECIPIENT_EMAIL", "")
	smtpUser := env.Str("GMAIL_USER", "")
	smtpPassword := env.Str("GMAIL_APP_PASSWORD", "")
	if recipient == "" || smtpUser == "" || smtpPassword == "" {
		return fmt.Errorf("email not configured: RECIPIENT_EMAIL, GMAIL_USER and GMAIL_APP_PASSWORD are required")
	}

	cache, err := engine.NewTranscriptCache(c.CacheDir, c.CacheExpiry)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	var pool *engine.ProxyPool
	if c.ProxyEnabled {
		pool = newPool()
	} else {
		slog.Info("proxies disabled, fetching direct")
	}

	policy := engine.RetryPolicy{
		BaseDelay:     c.BaseDelay,
		BackoffFactor: c.BackoffFactor,
		RateLimitWait: c.RateLimitWait,
	}
	fetcher := engine.NewTranscriptFetcher(pool, cache, policy,
		sources.FetchVideoTranscript, c.MaxAttempts, c.TranscriptLangs)

	ledger, err := digest.OpenLedger(env.Str("LEDGER_PATH", "data/processed.db"))
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer ledger.Close()

	sender := digest.NewSender(smtpUser, smtpPassword)

	pipeline := digest.NewPipeline(fetcher, pool, cache, ledger, sender, recipient, channels)
	if err := pipeline.Run(ctx); err != nil {
		return err
	}

	slog.Info("run complete", slog.String("metrics", engine.FormatMetrics()))
	return nil
}

func initEngine() {
	c := engine.Config{
		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		TranscriptLangs:       env.List("TRANSCRIPT_LANGS", "ja,en"),

		MaxAttempts:   env.Int("TRANSCRIPT_MAX_ATTEMPTS", 3),
		BaseDelay:     env.Duration("TRANSCRIPT_BASE_DELAY", 5*time.Second),
		BackoffFactor: env.Float("TRANSCRIPT_BACKOFF_FACTOR", 2.0),
		RateLimitWait: env.Duration("TRANSCRIPT_RATE_LIMIT_WAIT", 60*time.Second),

		CacheDir:    env.Str("CACHE_DIR", "data"),
		CacheExpiry: env.Duration("CACHE_EXPIRY", 7*24*time.Hour),

		ProxyEnabled:          env.Str("PROXY_ENABLED", "true") == "true",
		ProxyFile:             env.Str("PROXY_FILE", ""),
		WebshareToken:         env.Str("WEBSHARE_API_KEY", ""),
		ProxyFailureThreshold: env.Int("PROXY_FAILURE_THRESHOLD", 3),
		ProxyDisableFor:       env.Duration("PROXY_DISABLE_FOR", 30*time.Minute),

		CookiesFile: env.Str("COOKIES_FILE", ""),

		MaxVideos: env.Int("MAX_VIDEOS_PER_RUN", 50),
		ItemDelay: env.Duration("ITEM_DELAY", 5*time.Second),

		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	bc, err := engine.NewBrowserClient()
	if err != nil {
		slog.Warn("browser client init failed, falling back to plain HTTP", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
	}

	c.LLMClient = llm.NewClient(
		env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		env.Str("LLM_API_KEY", ""),
		env.Str("LLM_MODEL", "gemini-2.5-flash"),
		llm.WithFallbackKeys(env.List("LLM_API_KEY_FALLBACKS", "")),
		llm.WithMaxTokens(env.Int("LLM_MAX_TOKENS", 4096)),
		llm.WithTemperature(env.Float("LLM_TEMPERATURE", 0.7)),
		llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)

	engine.Init(c)
}

// newCache builds the transcript cache from config for maintenance commands.
func newCache() (*engine.TranscriptCache, error) {
	initEngine()
	return engine.NewTranscriptCache(engine.Cfg.CacheDir, engine.Cfg.CacheExpiry)
}

// newPool builds the proxy pool from config; initEngine must have run.
func newPool() *engine.ProxyPool {
	c := engine.Cfg
	return engine.NewProxyPool(engine.PoolConfig{
		File:             c.ProxyFile,
		WebshareToken:    c.WebshareToken,
		FailureThreshold: c.ProxyFailureThreshold,
		DisableFor:       c.ProxyDisableFor,
		Shuffle:          true,
		HTTPClient:       c.HTTPClient,
	})
}

// loadChannelIDs reads the target channel list from the TARGET_CHANNEL_IDS
// env var, or line by line from the channel IDs file (# comments allowed).
func loadChannelIDs() ([]string, error) {
	if ids := env.List("TARGET_CHANNEL_IDS", ""); len(ids) > 0 {
		return ids, nil
	}

	path := env.Str("CHANNEL_IDS_FILE", "channel_ids.txt")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read channel list %s: %w", path, err)
	}

	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, nil
}
