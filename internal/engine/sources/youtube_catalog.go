package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// YouTube Data API v3 catalog lookup: channel → uploads playlist → recent
// videos with duration and view count. Conventional paginated metadata API;
// the resilience machinery lives entirely on the transcript side.

// Video is one catalog entry for the digest.
type Video struct {
	ID           string
	Title        string
	Description  string
	ChannelTitle string
	PublishedAt  time.Time
	URL          string
	Duration     string // human form, e.g. "1:02:10"
	ViewCount    int64
	Thumbnail    string
}

// --- Data API wire types ---

type ytChannelsResp struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytPlaylistItemsResp struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			ResourceID   struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
			Thumbnails map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type ytVideosResp struct {
	Items []struct {
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// VideosFromChannels returns videos published after since across the given
// channels. Per-channel failures are logged and skipped so one dead channel
// never empties the digest.
func VideosFromChannels(ctx context.Context, channelIDs []string, since time.Time) []Video {
	var videos []Video
	for _, channelID := range channelIDs {
		vs, err := channelVideos(ctx, channelID, since)
		if err != nil {
			slog.Warn("catalog: channel lookup failed",
				slog.String("channel", channelID), slog.Any("error", err))
			continue
		}
		videos = append(videos, vs...)
	}
	return videos
}

func channelVideos(ctx context.Context, channelID string, since time.Time) ([]Video, error) {
	var channels ytChannelsResp
	err := dataAPIGet(ctx, "/channels", url.Values{
		"id":   {channelID},
		"part": {"contentDetails"},
	}, &channels)
	if err != nil {
		return nil, err
	}
	if len(channels.Items) == 0 {
		return nil, fmt.Errorf("channel not found: %s", channelID)
	}
	uploads := channels.Items[0].ContentDetails.RelatedPlaylists.Uploads

	var playlist ytPlaylistItemsResp
	err = dataAPIGet(ctx, "/playlistItems", url.Values{
		"playlistId": {uploads},
		"part":       {"snippet"},
		"maxResults": {"10"},
	}, &playlist)
	if err != nil {
		return nil, err
	}

	var videos []Video
	for _, item := range playlist.Items {
		sn := item.Snippet
		publishedAt, err := time.Parse(time.RFC3339, sn.PublishedAt)
		if err != nil || !publishedAt.After(since) {
			continue
		}
		videoID := sn.ResourceID.VideoID
		if videoID == "" {
			continue
		}

		duration, viewCount, err := videoDetails(ctx, videoID)
		if err != nil {
			slog.Debug("catalog: details lookup failed",
				slog.String("id", videoID), slog.Any("error", err))
			continue
		}

		thumb := sn.Thumbnails["high"].URL
		if thumb == "" {
			thumb = sn.Thumbnails["default"].URL
		}

		videos = append(videos, Video{
			ID:           videoID,
			Title:        sn.Title,
			Description:  sn.Description,
			ChannelTitle: sn.ChannelTitle,
			PublishedAt:  publishedAt,
			URL:          ytWatchURL + videoID,
			Duration:     duration,
			ViewCount:    viewCount,
			Thumbnail:    thumb,
		})
	}
	return videos, nil
}

func videoDetails(ctx context.Context, videoID string) (string, int64, error) {
	var details ytVideosResp
	err := dataAPIGet(ctx, "/videos", url.Values{
		"id":   {videoID},
		"part": {"contentDetails,statistics"},
	}, &details)
	if err != nil {
		return "", 0, err
	}
	if len(details.Items) == 0 {
		return "", 0, fmt.Errorf("video not found: %s", videoID)
	}
	item := details.Items[0]
	viewCount, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
	return FormatISODuration(item.ContentDetails.Duration), viewCount, nil
}

// dataAPIGet performs one Data API call, decoding JSON into out. Falls back
// to the secondary API key on quota/permission errors (403), mirroring the
// key rotation the transcript side does with proxies.
func dataAPIGet(ctx context.Context, path string, params url.Values, out any) error {
	engine.IncrCatalogRequests()

	keys := []string{engine.Cfg.YouTubeAPIKey}
	if engine.Cfg.YouTubeAPIKeyFallback != "" {
		keys = append(keys, engine.Cfg.YouTubeAPIKeyFallback)
	}

	var lastErr error
	for _, key := range keys {
		if err := doDataAPIGet(ctx, path, params, key, out); err != nil {
			lastErr = err
			if engine.ClassifyFailure(err) == engine.FailureBlocked {
				slog.Debug("catalog: API key rejected, trying fallback", slog.Any("error", err))
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

func doDataAPIGet(ctx context.Context, path string, params url.Values, apiKey string, out any) error {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("key", apiKey)
	apiURL := ytDataAPIBase + path + "?" + q.Encode()

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return fmt.Errorf("data API %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("data API %s HTTP %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode data API %s: %w", path, err)
	}
	return nil
}

var isoDurationRE = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// FormatISODuration converts an ISO 8601 duration (PT1H2M10S) to a readable
// clock form (1:02:10). Unparseable input renders as 0:00.
func FormatISODuration(iso string) string {
	m := isoDurationRE.FindStringSubmatch(iso)
	if m == nil {
		return "0:00"
	}
	atoi := func(s string) int {
		if s == "" {
			return 0
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	hours, minutes, seconds := atoi(m[1]), atoi(m[2]), atoi(m[3])
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
