package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBroadcastDeliversToConnectedClient(t *testing.T) {
	h := New(nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Upgrade(w, r, "p1")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ConnectionCount("p1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.ConnectionCount("p1") != 1 {
		t.Fatalf("expected 1 connection registered, got %d", h.ConnectionCount("p1"))
	}

	h.Broadcast("p1", "notification", map[string]string{"hello": "world"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if !strings.Contains(string(msg), "notification") {
		t.Fatalf("expected broadcast event in message, got %s", msg)
	}
}

func TestBroadcastToUnknownProjectIsANoop(t *testing.T) {
	h := New(nil)
	h.Broadcast("missing-project", "notification", nil)
	if h.ConnectionCount("missing-project") != 0 {
		t.Fatalf("expected no connections for an unknown project")
	}
}
