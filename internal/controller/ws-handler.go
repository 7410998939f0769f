package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/soundroom/server/internal/service/room"
	"github.com/soundroom/server/internal/session"
	"github.com/soundroom/server/pkg/rest"
)

// serveRoom is the websocket entrypoint for a room. It authenticates the
// member, upgrades the connection, starts their playback session and then
// serves messages until the connection dies.
func (c *controller) serveRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		return
	}

	identity, err := c.getIdentity(r)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to get identity", "error", err)
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "invalid token"})
		return
	}

	if err := c.roomService.ConnectMember(r.Context(), &room.ConnectMemberParams{
		RoomId:   roomId,
		Identity: identity,
	}); err != nil {
		switch {
		case errors.Is(err, room.ErrRoomNotFound):
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		case errors.Is(err, room.ErrMembersLimitReached):
			rest.WriteJSON(w, http.StatusConflict, rest.Envelope{"error": "room is full"})
		default:
			c.logger.WarnContext(r.Context(), "failed to connect member", "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		}
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		c.disconnect(r.Context(), nil, roomId, identity.UserId)
		return
	}
	defer conn.Close()

	if err := c.connRepo.Add(conn, identity.UserId, roomId); err != nil {
		c.logger.WarnContext(r.Context(), "failed to register conn", "error", err)
		c.disconnect(r.Context(), nil, roomId, identity.UserId)
		return
	}
	defer c.disconnect(r.Context(), conn, roomId, identity.UserId)

	sender := newConnSender(conn)
	player := session.NewRemotePlayer(sender)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New(&session.Config{
		RoomId:            roomId,
		Identity:          identity,
		Player:            player,
		SkipVoteThreshold: c.roomService.SkipVoteThreshold(),
		Advance:           c.advanceFor(roomId),
		Heartbeat:         c.heartbeatFor(roomId, identity),
		Logger:            c.logger,
	})
	defer sess.Close()

	c.mu.Lock()
	c.clients[conn] = &client{
		roomId:   roomId,
		identity: identity,
		sender:   sender,
		session:  sess,
		player:   player,
		cancel:   cancel,
	}
	c.mu.Unlock()

	roomState, err := c.roomService.GetRoomState(r.Context(), roomId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get room state", "error", err)
		return
	}

	messages, err := c.roomService.GetMessages(r.Context(), roomId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get messages", "error", err)
		return
	}

	if err := sender.Send("JOINED_ROOM", map[string]any{
		"room_state": roomState,
		"messages":   messages,
	}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write json", "error", err)
		return
	}

	sess.OnRoomUpdate(r.Context(), roomState)
	go sess.Run(runCtx)

	// let the rest of the room see the new member
	c.broadcastRoomState(r.Context(), roomId)

	ctx := context.WithValue(r.Context(), roomIdCtxKey, roomId)
	ctx = context.WithValue(ctx, userIdCtxKey, identity.UserId)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(r.Context(), "conn closed", "room_id", roomId, "error", err)
	}
}

// disconnect tears down everything serveRoom set up, in any failure order.
func (c *controller) disconnect(ctx context.Context, conn *websocket.Conn, roomId, userId string) {
	if conn != nil {
		c.mu.Lock()
		if cl, ok := c.clients[conn]; ok {
			cl.session.Close()
			cl.cancel()
			delete(c.clients, conn)
		}
		c.mu.Unlock()

		if err := c.connRepo.RemoveByConn(conn); err != nil {
			c.logger.DebugContext(ctx, "failed to remove conn", "error", err)
		}
	}

	if err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		RoomId: roomId,
		UserId: userId,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
	}

	c.broadcastRoomState(ctx, roomId)
}
