package controller

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/soundroom/server/internal/service/room"
	"github.com/soundroom/server/internal/session"
)

func (c *controller) getClient(conn *websocket.Conn) *client {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.clients[conn]
}

func (c *controller) getRoomClients(roomId string) []*client {
	conns := c.connRepo.GetRoomConns(roomId)

	c.mu.RLock()
	defer c.mu.RUnlock()

	clients := make([]*client, 0, len(conns))
	for _, conn := range conns {
		if cl, ok := c.clients[conn]; ok {
			clients = append(clients, cl)
		}
	}

	return clients
}

// broadcast sends one message to every live connection in the room. A
// failed write only drops that member's delivery; their read loop notices
// the broken connection and cleans up.
func (c *controller) broadcast(ctx context.Context, roomId string, out *Output) {
	for _, cl := range c.getRoomClients(roomId) {
		if err := cl.sender.Send(out.Type, out.Payload); err != nil {
			c.logger.DebugContext(ctx, "failed to write to conn", "room_id", roomId, "error", err)
		}
	}
}

// broadcastRoomState pushes a fresh snapshot to every member and feeds it
// to their sessions for reconciliation.
func (c *controller) broadcastRoomState(ctx context.Context, roomId string) {
	state, err := c.roomService.GetRoomState(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			c.closeRoom(ctx, roomId)
			return
		}

		c.logger.WarnContext(ctx, "failed to get room state", "room_id", roomId, "error", err)
		return
	}

	for _, cl := range c.getRoomClients(roomId) {
		if err := cl.sender.Send("ROOM_STATE", state); err != nil {
			c.logger.DebugContext(ctx, "failed to write to conn", "room_id", roomId, "error", err)
		}
		cl.session.OnRoomUpdate(ctx, state)
	}
}

// closeRoom tears down every connection in a room whose record is gone,
// for example after redis expiry. Closing the conns unwinds each member's
// serveRoom, which handles the rest of the cleanup.
func (c *controller) closeRoom(ctx context.Context, roomId string) {
	for _, conn := range c.connRepo.GetRoomConns(roomId) {
		if cl := c.getClient(conn); cl != nil {
			if err := cl.sender.Send("ROOM_CLOSED", nil); err != nil {
				c.logger.DebugContext(ctx, "failed to write to conn", "room_id", roomId, "error", err)
			}
		}
		conn.Close()
	}
}

// advanceFor builds the session callback that pops the queue and fans the
// outcome out to the room.
func (c *controller) advanceFor(roomId string) session.AdvanceFunc {
	return func(ctx context.Context, expectedSongId *string) {
		resp, err := c.roomService.ForceAdvance(ctx, &room.ForceAdvanceParams{
			RoomId:         roomId,
			ExpectedSongId: expectedSongId,
		})
		if err != nil {
			c.logger.WarnContext(ctx, "failed to advance", "room_id", roomId, "error", err)
			return
		}
		if !resp.Advanced {
			return
		}

		c.broadcastRoomState(ctx, roomId)
	}
}

func (c *controller) heartbeatFor(roomId string, identity room.Identity) session.HeartbeatFunc {
	return func(ctx context.Context) {
		if err := c.roomService.Heartbeat(ctx, &room.HeartbeatParams{
			RoomId:   roomId,
			Identity: identity,
		}); err != nil {
			c.logger.DebugContext(ctx, "failed to heartbeat", "room_id", roomId, "error", err)
		}
	}
}
