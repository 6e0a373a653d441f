package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// YouTube transcript transport.
// Primary:  scrape watch page ytInitialPlayerResponse → caption XML
// Fallback: ANDROID Innertube /player → captionTracks
//
// One call resolves the whole language ladder (preferred → secondary → any
// usable track); falling through a language is a branch, not a retry. Errors
// come back typed so the fetcher can classify blocking, rate limiting and
// absence apart from plain transport failure.

const (
	fetchTimeout     = 20 * time.Second
	timedTextMaxSize = 512 * 1024
	watchPageMaxSize = 6 * 1024 * 1024
)

var (
	cookieOnce   sync.Once
	cookieHeader string
)

// watchCookieHeader loads the optional cookie jar once per process.
func watchCookieHeader() string {
	cookieOnce.Do(func() {
		cookieHeader = engine.CookieHeader(engine.LoadCookies(engine.Cfg.CookiesFile))
	})
	return cookieHeader
}

// FetchVideoTranscript fetches the transcript text for a video through the
// given proxy (nil = direct). This is the TransportFunc wired into the
// fetcher; it performs exactly one logical network acquisition.
func FetchVideoTranscript(ctx context.Context, videoID string, langs []string, proxy *engine.ProxyEntry) (string, error) {
	engine.IncrTranscriptRequests()

	text, err := fetchTranscriptViaPageScrape(ctx, videoID, langs, proxy)
	if err == nil {
		return text, nil
	}
	// Absence, blocking and rate limiting are verdicts, not reasons to try
	// a noisier endpoint from the same egress IP.
	kind := engine.ClassifyFailure(err)
	if kind != engine.FailureTransient {
		return "", err
	}
	slog.Debug("youtube: page scrape failed, trying player",
		slog.String("id", videoID), slog.Any("error", err))

	return fetchTranscriptViaPlayer(ctx, videoID, langs, proxy)
}

// fetchTranscriptViaPageScrape scrapes the watch page HTML and extracts the
// caption track URL from ytInitialPlayerResponse. Goes through the browser
// fingerprint client when one is configured.
func fetchTranscriptViaPageScrape(ctx context.Context, videoID string, langs []string, proxy *engine.ProxyEntry) (string, error) {
	body, status, err := fetchWatchPage(ctx, videoID, proxy)
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}
	switch {
	case status == 403:
		return "", &engine.BlockedError{StatusCode: status}
	case status == 429:
		return "", &engine.RateLimitError{}
	case status != http.StatusOK:
		return "", fmt.Errorf("watch page HTTP %d", status)
	}

	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		// A consent/captcha interstitial has no player response at all.
		if bytes.Contains(body, []byte("g-recaptcha")) || bytes.Contains(body, []byte("consent.youtube.com")) {
			return "", &engine.BlockedError{StatusCode: status, Msg: "interstitial page"}
		}
		return "", errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return "", errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var player playerResp
	if err := json.Unmarshal(jsonData, &player); err != nil {
		return "", fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	track, err := trackFromPlayer(player, langs)
	if err != nil {
		return "", err
	}
	return fetchTimedText(ctx, track.BaseURL, proxy)
}

// fetchWatchPage gets the raw watch page through the browser client, or the
// plain proxy-aware client when no browser client is configured.
func fetchWatchPage(ctx context.Context, videoID string, proxy *engine.ProxyEntry) ([]byte, int, error) {
	watchURL := ytWatchURL + videoID
	headers := map[string]string{
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"accept-language": "en-US,en;q=0.9",
		"user-agent":      engine.RandomUserAgent(),
	}
	if c := watchCookieHeader(); c != "" {
		headers["cookie"] = c
	}

	if bc := engine.Cfg.BrowserClient; bc != nil {
		return bc.Do(http.MethodGet, watchURL, headers, proxy, nil)
	}

	client, err := engine.NewProxyHTTPClient(proxy, fetchTimeout)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, watchPageMaxSize))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// trackFromPlayer inspects a player response and returns the caption track
// for the language ladder, or a classified error.
func trackFromPlayer(player playerResp, langs []string) (captionTrack, error) {
	if player.Captions == nil {
		if player.PlayabilityStatus != nil {
			reason := strings.ToLower(player.PlayabilityStatus.Reason)
			if strings.Contains(reason, "bot") || strings.Contains(reason, "sign in") {
				return captionTrack{}, &engine.BlockedError{Msg: player.PlayabilityStatus.Reason}
			}
		}
		return captionTrack{}, engine.ErrNoTranscript
	}
	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return captionTrack{}, engine.ErrNoTranscript
	}
	return pickTrack(tracks, langs), nil
}

// pickTrack selects a caption track by the preference ladder:
// manual track in a preferred language, then auto-generated in a preferred
// language, then any track. tracks must be non-empty.
func pickTrack(tracks []captionTrack, langs []string) captionTrack {
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t
			}
		}
	}
	return tracks[0]
}

// fetchTimedText fetches and flattens a timedtext XML caption URL.
func fetchTimedText(ctx context.Context, baseURL string, proxy *engine.ProxyEntry) (string, error) {
	client, err := engine.NewProxyHTTPClient(proxy, fetchTimeout)
	if err != nil {
		return "", err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		return client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, timedTextMaxSize))
	if err != nil {
		return "", err
	}
	return flattenTimedText(body)
}

// flattenTimedText parses timedtext XML into a single space-joined string.
func flattenTimedText(body []byte) (string, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := engine.CleanHTML(line.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	if sb.Len() == 0 {
		return "", engine.ErrNoTranscript
	}
	return sb.String(), nil
}

// fetchTranscriptViaPlayer uses the ANDROID Innertube /player endpoint,
// which serves caption tracks to non-blocked IPs without the watch page.
func fetchTranscriptViaPlayer(ctx context.Context, videoID string, langs []string, proxy *engine.ProxyEntry) (string, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return "", err
	}

	client, err := engine.NewProxyHTTPClient(proxy, fetchTimeout)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ytInnertubeURL+"?prettyPrint=false", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ytAndroidUA)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("android innertube: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 403:
		return "", &engine.BlockedError{StatusCode: 403}
	case 429:
		return "", &engine.RateLimitError{RetryAfter: retryAfter(resp)}
	}

	var player playerResp
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return "", fmt.Errorf("decode player: %w", err)
	}
	track, err := trackFromPlayer(player, langs)
	if err != nil {
		return "", err
	}
	return fetchTimedText(ctx, track.BaseURL, proxy)
}

// retryAfter reads a delta-seconds Retry-After header.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
