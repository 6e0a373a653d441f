package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/engine/sources"
)

// Pipeline is the batch driver: discover → filter → fetch transcript →
// summarize → compose → deliver → mark processed. Videos are processed
// strictly sequentially; a pacing limiter spaces the transcript requests so
// the run itself never looks like a burst.
type Pipeline struct {
	Fetcher    *engine.TranscriptFetcher
	Pool       *engine.ProxyPool // for end-of-run stats, may be nil
	Cache      *engine.TranscriptCache
	Ledger     *Ledger
	Sender     *Sender
	Recipient  string
	ChannelIDs []string
	MaxVideos  int
	Window     time.Duration // catalog lookback, default 24h

	pace *rate.Limiter

	// Hooks default to the real implementations; tests replace them.
	catalog   func(ctx context.Context, channels []string, since time.Time) []sources.Video
	summarize func(ctx context.Context, transcript string) string
	classify  func(ctx context.Context, title, description string) bool
	send      func(recipient, subject, textBody, htmlBody string) error
}

// NewPipeline wires a pipeline with the real catalog, summarizer and filter.
func NewPipeline(fetcher *engine.TranscriptFetcher, pool *engine.ProxyPool, cache *engine.TranscriptCache, ledger *Ledger, sender *Sender, recipient string, channelIDs []string) *Pipeline {
	maxVideos := engine.Cfg.MaxVideos
	if maxVideos <= 0 {
		maxVideos = 50
	}
	itemDelay := engine.Cfg.ItemDelay
	if itemDelay <= 0 {
		itemDelay = 5 * time.Second
	}
	return &Pipeline{
		Fetcher:    fetcher,
		Pool:       pool,
		Cache:      cache,
		Ledger:     ledger,
		Sender:     sender,
		Recipient:  recipient,
		ChannelIDs: channelIDs,
		MaxVideos:  maxVideos,
		Window:     24 * time.Hour,
		pace:       rate.NewLimiter(rate.Every(itemDelay), 1),
		catalog:    sources.VideosFromChannels,
		summarize:  Summarize,
		classify:   IsGenAIVideo,
		send:       sender.Send,
	}
}

// Run executes one digest cycle. Per-item failures are placeholders in the
// digest, never reasons to abort: the mail goes out as long as delivery
// itself works.
func (p *Pipeline) Run(ctx context.Context) error {
	if expired := p.Cache.Cleanup(); expired > 0 {
		slog.Debug("pipeline: cache swept", slog.Int("expired", expired))
	}

	since := time.Now().Add(-p.Window)
	slog.Info("pipeline: fetching recent videos",
		slog.Int("channels", len(p.ChannelIDs)), slog.Time("since", since))
	videos := p.catalog(ctx, p.ChannelIDs, since)

	videos, err := p.selectVideos(ctx, videos)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		slog.Info("pipeline: no new videos")
		return p.sendEmptyNotice()
	}

	items := p.processVideos(ctx, videos)

	if err := p.deliver(items); err != nil {
		return err
	}

	for _, item := range items {
		if err := p.Ledger.MarkProcessed(ctx, item.Video.ID, item.Video.Title); err != nil {
			slog.Warn("pipeline: ledger mark failed",
				slog.String("id", item.Video.ID), slog.Any("error", err))
		}
	}

	if p.Pool != nil {
		p.Pool.LogStats()
	}
	return nil
}

// selectVideos drops already-processed videos, keeps only topical ones, and
// caps the batch to keep request volume down.
func (p *Pipeline) selectVideos(ctx context.Context, videos []sources.Video) ([]sources.Video, error) {
	var fresh []sources.Video
	for _, v := range videos {
		done, err := p.Ledger.IsProcessed(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		if !done {
			fresh = append(fresh, v)
		}
	}
	if skipped := len(videos) - len(fresh); skipped > 0 {
		slog.Info("pipeline: skipping processed videos", slog.Int("count", skipped))
	}

	var topical []sources.Video
	for _, v := range fresh {
		if p.classify(ctx, v.Title, v.Description) {
			slog.Info("pipeline: keep", slog.String("title", v.Title))
			topical = append(topical, v)
		} else {
			slog.Info("pipeline: skip", slog.String("title", v.Title))
		}
	}

	if len(topical) > p.MaxVideos {
		slog.Info("pipeline: capping batch",
			slog.Int("videos", len(topical)), slog.Int("max", p.MaxVideos))
		topical = topical[:p.MaxVideos]
	}
	return topical, nil
}

// processVideos resolves each video fully before moving to the next.
func (p *Pipeline) processVideos(ctx context.Context, videos []sources.Video) []Item {
	items := make([]Item, 0, len(videos))
	for i, v := range videos {
		slog.Info("pipeline: processing",
			slog.Int("index", i+1), slog.Int("total", len(videos)),
			slog.String("title", v.Title), slog.String("id", v.ID))

		// Space requests out; the first video goes through immediately.
		if err := p.pace.Wait(ctx); err != nil {
			slog.Warn("pipeline: canceled", slog.Any("error", err))
			return items
		}

		summary := placeholderNoTranscript
		if transcript, ok := p.Fetcher.FetchTranscript(ctx, v.ID); ok {
			summary = p.summarize(ctx, transcript)
		}
		items = append(items, Item{Video: v, Summary: summary})
	}
	return items
}

// deliver composes and sends the digest mail.
func (p *Pipeline) deliver(items []Item) error {
	subject := fmt.Sprintf("【YouTube要約】%d本の新着動画があります", len(items))
	text := RenderText(items)
	html, err := RenderHTML(items)
	if err != nil {
		slog.Error("pipeline: HTML render failed, sending plain text only", slog.Any("error", err))
		html = ""
	}
	if err := p.send(p.Recipient, subject, text, html); err != nil {
		return fmt.Errorf("pipeline: deliver digest: %w", err)
	}
	return nil
}

// sendEmptyNotice tells the operator the run happened and found nothing.
func (p *Pipeline) sendEmptyNotice() error {
	const subject = "【YouTube要約】新着動画はありませんでした"
	const body = "直近の更新はありませんでした。"
	if err := p.send(p.Recipient, subject, body,
		"<html><body><p>"+body+"</p></body></html>"); err != nil {
		return fmt.Errorf("pipeline: deliver empty notice: %w", err)
	}
	return nil
}
