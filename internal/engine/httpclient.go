package engine

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	xproxy "golang.org/x/net/proxy"
)

// BrowserClient wraps tls-client with Chrome TLS fingerprint.
// Requests appear as Chrome 131+ to TLS fingerprinting (JA3 hash).
// The watch-page endpoint serves bot pages to clients with a Go fingerprint,
// so this client fronts every scrape attempt.
type BrowserClient struct {
	client tls_client.HttpClient
}

// NewBrowserClient creates a client that impersonates Chrome 131.
func NewBrowserClient() (*BrowserClient, error) {
	jar := tls_client.NewCookieJar()
	opts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(15),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithNotFollowRedirects(),
		tls_client.WithCookieJar(jar),
		tls_client.WithInsecureSkipVerify(),
	}
	client, err := tls_client.NewHttpClient(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("tls-client init: %w", err)
	}
	return &BrowserClient{client: client}, nil
}

// Do executes a request with Chrome TLS fingerprint through the given proxy
// (nil = direct). Returns body bytes, HTTP status code, and any error.
func (bc *BrowserClient) Do(method, reqURL string, headers map[string]string, proxy *ProxyEntry, body io.Reader) ([]byte, int, error) {
	proxyURL := ""
	if proxy != nil {
		proxyURL = proxy.URL()
	}
	if err := bc.client.SetProxy(proxyURL); err != nil {
		return nil, 0, fmt.Errorf("set proxy: %w", err)
	}

	req, err := fhttp.NewRequest(method, reqURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	// Chrome-like header order matters for fingerprinting
	req.Header[fhttp.HeaderOrderKey] = []string{
		"accept",
		"accept-language",
		"accept-encoding",
		"referer",
		"cookie",
		"user-agent",
	}

	resp, err := bc.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("tls request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// NewProxyHTTPClient builds a plain *http.Client that routes through the
// given proxy entry. nil returns the shared configured client.
func NewProxyHTTPClient(p *ProxyEntry, timeout time.Duration) (*http.Client, error) {
	if p == nil {
		if cfg.HTTPClient != nil {
			return cfg.HTTPClient, nil
		}
		return &http.Client{Timeout: timeout}, nil
	}

	transport := &http.Transport{
		MaxIdleConns:        5,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	}

	switch p.Scheme {
	case "socks5":
		var auth *xproxy.Auth
		if p.Username != "" {
			auth = &xproxy.Auth{User: p.Username, Password: p.Password}
		}
		dialer, err := xproxy.SOCKS5("tcp", p.Addr(), auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.Dial = dialer.Dial //nolint:staticcheck // fallback for non-context dialers
		}
	default:
		u, err := url.Parse(p.URL())
		if err != nil {
			return nil, fmt.Errorf("proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// CheckProxy verifies that the proxy endpoint accepts TCP connections.
// Used by the proxies-check command, not by the fetch path.
func CheckProxy(p *ProxyEntry, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", p.Addr(), timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
