package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy forwarded for", "10.0.0.2:5000", "198.51.100.1, 10.0.0.3", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:5000", "", "198.51.100.9", "198.51.100.9"},
		{"trusted proxy garbage", "192.168.1.1:5000", "not-an-ip", "", "192.168.1.1"},
		{"no port", "203.0.113.7", "", "", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	metrics := &securityMetrics{}
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"normal", http.MethodGet, "/api/profiles", "Mozilla/5.0", false},
		{"curl is fine", http.MethodGet, "/api/profiles", "curl/8.0", false},
		{"traversal", http.MethodGet, "/api/profiles/..%2F..%2Fetc/passwd", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"query injection", http.MethodGet, "/api/profiles?next=javascript:alert(1)", "", true},
		{"trace", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := detectSuspiciousRequest(r, metrics); got != tt.want {
				t.Errorf("detectSuspiciousRequest() = %v, want %v", got, tt.want)
			}
		})
	}
	if metrics.suspiciousRequests != 4 {
		t.Errorf("suspicious count = %d, want 4", metrics.suspiciousRequests)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.allow("a") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.allow("a") {
		t.Fatal("fourth request allowed")
	}
	if !rl.allow("b") {
		t.Fatal("other client rejected")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("a") {
		t.Fatal("request after window rejected")
	}

	now = now.Add(11 * time.Minute)
	if removed := rl.cleanupStaleEntries(); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if rl.ActiveClients() != 0 {
		t.Errorf("active clients = %d", rl.ActiveClients())
	}
	rl.stop()
}
