package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeProxyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseProxyLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    ProxyEntry
		wantErr bool
	}{
		{"host port", "10.0.0.1:8080", ProxyEntry{Host: "10.0.0.1", Port: 8080, Scheme: "http"}, false},
		{"with credentials", "10.0.0.1:8080:alice:s3cret", ProxyEntry{Host: "10.0.0.1", Port: 8080, Username: "alice", Password: "s3cret", Scheme: "http"}, false},
		{"socks5 scheme", "socks5://10.0.0.2:1080", ProxyEntry{Host: "10.0.0.2", Port: 1080, Scheme: "socks5"}, false},
		{"bad port", "10.0.0.1:eighty", ProxyEntry{}, true},
		{"too few fields", "10.0.0.1", ProxyEntry{}, true},
		{"three fields", "10.0.0.1:8080:alice", ProxyEntry{}, true},
		{"empty host", ":8080", ProxyEntry{}, true},
		{"unknown scheme", "ftp://10.0.0.1:21", ProxyEntry{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProxyLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseProxyLine(%q): %v", tt.line, err)
			}
			if got.Host != tt.want.Host || got.Port != tt.want.Port ||
				got.Username != tt.want.Username || got.Password != tt.want.Password ||
				got.Scheme != tt.want.Scheme {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadProxyFileSkipsMalformed(t *testing.T) {
	path := writeProxyFile(t, `# datacenter pool
10.0.0.1:8080
garbage line without port

10.0.0.2:8080:user:pass
10.0.0.3:notaport
`)
	pool := NewProxyPool(PoolConfig{File: path})
	if pool.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (malformed lines skipped)", pool.Len())
	}
}

func TestProxyEntryURL(t *testing.T) {
	p := &ProxyEntry{Host: "10.0.0.1", Port: 8080, Username: "u", Password: "p", Scheme: "http"}
	if got := p.URL(); got != "http://u:p@10.0.0.1:8080" {
		t.Errorf("URL() = %q", got)
	}
	bare := &ProxyEntry{Host: "10.0.0.2", Port: 1080, Scheme: "socks5"}
	if got := bare.URL(); got != "socks5://10.0.0.2:1080" {
		t.Errorf("URL() = %q", got)
	}
}

func TestPoolRotation(t *testing.T) {
	path := writeProxyFile(t, "10.0.0.1:8080\n10.0.0.2:8080\n10.0.0.3:8080\n")
	pool := NewProxyPool(PoolConfig{File: path})

	seen := make(map[string]int)
	for i := 0; i < 6; i++ {
		p := pool.Next()
		if p == nil {
			t.Fatal("Next() = nil with non-empty pool")
		}
		seen[p.Addr()]++
	}
	if len(seen) != 3 {
		t.Errorf("expected all 3 proxies used, got %v", seen)
	}
	for addr, n := range seen {
		if n != 2 {
			t.Errorf("uneven rotation: %s used %d times", addr, n)
		}
	}
}

func TestPoolEmptyReturnsNil(t *testing.T) {
	pool := NewProxyPool(PoolConfig{})
	if p := pool.Next(); p != nil {
		t.Errorf("Next() = %v, want nil for empty pool", p)
	}
}

func TestPoolDisableAndReenable(t *testing.T) {
	path := writeProxyFile(t, "10.0.0.1:8080\n10.0.0.2:8080\n")
	pool := NewProxyPool(PoolConfig{File: path, FailureThreshold: 3, DisableFor: 30 * time.Minute})

	base := time.Now()
	pool.now = func() time.Time { return base }

	bad := pool.Next()

	// Two failures: still in rotation.
	pool.ReportFailure(bad)
	pool.ReportFailure(bad)
	if !bad.available(base) {
		t.Fatal("proxy disabled before threshold")
	}

	// Third failure crosses the threshold.
	pool.ReportFailure(bad)
	if bad.available(base) {
		t.Fatal("proxy not disabled at threshold")
	}

	// Rotation now avoids the quarantined proxy.
	for i := 0; i < 4; i++ {
		if p := pool.Next(); p == bad {
			t.Fatal("quarantined proxy handed out while another is available")
		}
	}

	// After the quarantine window it rejoins the rotation.
	pool.now = func() time.Time { return base.Add(31 * time.Minute) }
	seen := map[*ProxyEntry]bool{}
	for i := 0; i < 4; i++ {
		seen[pool.Next()] = true
	}
	if !seen[bad] {
		t.Error("proxy not re-enabled after quarantine window")
	}
}

func TestPoolSuccessResetsFailureStreak(t *testing.T) {
	path := writeProxyFile(t, "10.0.0.1:8080\n")
	pool := NewProxyPool(PoolConfig{File: path, FailureThreshold: 3})

	p := pool.Next()
	pool.ReportFailure(p)
	pool.ReportFailure(p)
	pool.ReportSuccess(p)
	if p.FailureCount != 0 {
		t.Errorf("FailureCount = %d after success, want 0", p.FailureCount)
	}
	if p.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", p.SuccessCount)
	}
}

func TestPoolAllDisabledReturnsLeastBad(t *testing.T) {
	path := writeProxyFile(t, "10.0.0.1:8080\n10.0.0.2:8080\n")
	pool := NewProxyPool(PoolConfig{File: path, FailureThreshold: 1, DisableFor: 30 * time.Minute})

	base := time.Now()
	pool.now = func() time.Time { return base }
	first := pool.Next()
	pool.ReportFailure(first) // disabled until base+30m

	pool.now = func() time.Time { return base.Add(time.Minute) }
	second := pool.Next()
	if second == first {
		t.Fatal("expected the other proxy while one is quarantined")
	}
	pool.ReportFailure(second) // disabled until base+31m

	// Everything is quarantined: the pool degrades to the entry whose
	// quarantine expires soonest instead of refusing.
	got := pool.Next()
	if got == nil {
		t.Fatal("Next() = nil, want least-bad proxy")
	}
	if got != first {
		t.Errorf("least-bad should be the earliest-expiring proxy")
	}
}

func TestPoolStats(t *testing.T) {
	path := writeProxyFile(t, "10.0.0.1:8080\n10.0.0.2:8080\n10.0.0.3:8080\n")
	pool := NewProxyPool(PoolConfig{File: path, FailureThreshold: 1})

	p := pool.Next()
	pool.ReportSuccess(p)
	p2 := pool.Next()
	pool.ReportFailure(p2)

	s := pool.Stats()
	if s.Total != 3 || s.Available != 2 || s.Disabled != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.TotalSuccesses != 1 || s.TotalFailures != 1 {
		t.Errorf("unexpected counters: %+v", s)
	}
}
