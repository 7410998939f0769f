package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

// WSRouter dispatches typed json messages read from a websocket connection
// to registered handlers.
type WSRouter struct {
	routes       map[string]HandlerFunc
	errorHandler func(ctx context.Context, conn *websocket.Conn, err error)
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// HandleError registers a callback invoked when a handler returns an error.
// The connection stays open; only read failures terminate ServeConn.
func (r *WSRouter) HandleError(handler func(ctx context.Context, conn *websocket.Conn, err error)) {
	r.errorHandler = handler
}

func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, ok := r.routes[msg.Type]
		if !ok {
			if r.errorHandler != nil {
				r.errorHandler(ctx, conn, fmt.Errorf("unknown message type: %s", msg.Type))
			}
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			if r.errorHandler != nil {
				r.errorHandler(msgCtx, conn, err)
			}
		}
	}
}
