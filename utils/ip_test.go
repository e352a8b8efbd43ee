package utils

import (
	"net/http/httptest"
	"testing"
)

func TestRealClientIPPrefersFirstForwardedHop(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := RealClientIP(r); got != "203.0.113.7" {
		t.Fatalf("RealClientIP = %q, want 203.0.113.7", got)
	}
}

func TestRealClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.4:5555"

	if got := RealClientIP(r); got != "192.0.2.4" {
		t.Fatalf("RealClientIP = %q, want 192.0.2.4", got)
	}

	r.RemoteAddr = "192.0.2.4"
	if got := RealClientIP(r); got != "192.0.2.4" {
		t.Fatalf("RealClientIP without port = %q, want 192.0.2.4", got)
	}
}
