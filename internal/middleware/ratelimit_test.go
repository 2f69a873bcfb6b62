package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth request should be blocked")
	}
	// Other IPs are unaffected.
	if !rl.Allow("5.6.7.8") {
		t.Error("different IP should be allowed")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow("1.2.3.4") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("second request should be blocked")
	}

	time.Sleep(15 * time.Millisecond)
	if !rl.Allow("1.2.3.4") {
		t.Error("request after window expiry should be allowed")
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if ip := getClientIP(r); ip != "10.0.0.1" {
		t.Errorf("RemoteAddr ip = %q", ip)
	}

	r.Header.Set("X-Real-IP", "20.0.0.2")
	if ip := getClientIP(r); ip != "20.0.0.2" {
		t.Errorf("X-Real-IP ip = %q", ip)
	}

	r.Header.Set("X-Forwarded-For", "30.0.0.3, 40.0.0.4")
	if ip := getClientIP(r); ip != "30.0.0.3" {
		t.Errorf("X-Forwarded-For ip = %q", ip)
	}
}
