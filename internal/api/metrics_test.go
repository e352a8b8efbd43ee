package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func TestInstrumentedHandlerSupportsWebsocketUpgrade(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry(), ":0", nil)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		conn.Close()
	})

	server := httptest.NewServer(m.instrument(mux))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat/sess-1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusSwitchingProtocols)
	}
}

func TestSanitizePathCollapsesDeepPaths(t *testing.T) {
	cases := map[string]string{
		"/":                                   "/",
		"/api/chat/messages":                  "/api/chat/messages",
		"/api/chat/sessions/abc123/messages":  "/api/chat/sessions/...",
		"/api/chat/sessions/abc123/typing///": "/api/chat/sessions/...",
	}
	for in, want := range cases {
		if got := sanitizePath(in); got != want {
			t.Errorf("sanitizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
