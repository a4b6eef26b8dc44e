// Package hub is the live-update websocket fan-out: one registry of
// connections per project, broadcast-with-dead-connection-pruning, no
// persistence and no replay on reconnect.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/R3E-Network/service_layer/pkg/logger"
)

// Message is the envelope written to every connected client.
type Message struct {
	Event     string `json:"event"`
	ProjectID string `json:"project_id"`
	Payload   any    `json:"payload"`
}

// Hub tracks live websocket connections grouped by project ID.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]struct{}
}

// New constructs an empty Hub.
func New(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("hub")
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:         log,
		connections: map[string]map[*websocket.Conn]struct{}{},
	}
}

// Upgrade promotes an HTTP request to a websocket connection registered
// under projectID, and blocks reading (and discarding) client frames until
// the connection closes, at which point it is pruned.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, projectID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.connect(projectID, conn)
	defer h.disconnect(projectID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *Hub) connect(projectID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[projectID] == nil {
		h.connections[projectID] = map[*websocket.Conn]struct{}{}
	}
	h.connections[projectID][conn] = struct{}{}
}

func (h *Hub) disconnect(projectID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.connections[projectID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.connections, projectID)
		}
	}
	conn.Close()
}

// Broadcast sends event/payload to every connection currently registered
// for projectID. Connections that fail to write are pruned immediately;
// the broadcast itself never errors.
func (h *Hub) Broadcast(projectID string, event string, payload any) {
	msg, err := json.Marshal(Message{Event: event, ProjectID: projectID, Payload: payload})
	if err != nil {
		h.log.Errorf("hub: marshal broadcast for %s: %v", projectID, err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections[projectID]))
	for c := range h.connections[projectID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var dead []*websocket.Conn
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.disconnect(projectID, c)
	}
}

// ConnectionCount returns the number of live connections for a project.
func (h *Hub) ConnectionCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[projectID])
}
