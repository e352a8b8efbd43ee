package utils

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP reports the address a request originated from. Behind a
// proxy the socket peer is the proxy itself, so the first X-Forwarded-For
// hop wins when the header is present.
func RealClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
