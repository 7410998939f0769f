package controller

import (
	"sync"

	"github.com/gorilla/websocket"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// connSender serializes writes to one websocket connection. Both the
// message handlers and the session's player commands go through it, so a
// connection only ever has one writer.
type connSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newConnSender(conn *websocket.Conn) *connSender {
	return &connSender{conn: conn}
}

func (s *connSender) Send(msgType string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.WriteJSON(&Output{Type: msgType, Payload: payload})
}
