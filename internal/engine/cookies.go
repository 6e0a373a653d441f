package engine

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// LoadCookies reads a Netscape-format cookies.txt export (the format browser
// exporters and yt-dlp produce): seven tab-separated fields per line, with
// name and value in the last two. The jar is passed through to the watch-page
// request untouched — a missing file is not an error, just no cookies.
func LoadCookies(path string) []*http.Cookie {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cookies: unreadable", slog.String("file", path), slog.Any("error", err))
		}
		return nil
	}

	var cookies []*http.Cookie
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		name, value := fields[5], fields[6]
		if name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}

	if len(cookies) > 0 {
		slog.Info("cookies: loaded", slog.Int("count", len(cookies)), slog.String("file", path))
	}
	return cookies
}

// CookieHeader renders cookies as a single Cookie header value.
func CookieHeader(cookies []*http.Cookie) string {
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
