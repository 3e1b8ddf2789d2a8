package dashboard

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsSubscriber adapts a websocket connection to the hub.Subscriber interface.
// gorilla/websocket forbids concurrent writers, so all writes are serialized
// through one mutex shared by hub broadcasts and per-connection pushes.
type wsSubscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{conn: conn}
}

// Send writes one text frame. Errors bubble up to the hub, which evicts the
// subscriber.
func (s *wsSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// SendJSON writes one JSON frame through the same write lock.
func (s *wsSubscriber) SendJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *wsSubscriber) Close() error {
	return s.conn.Close()
}
