package controller

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/soundroom/server/internal/service/room"
	"github.com/soundroom/server/pkg/wsrouter"
)

func (c *controller) getWsRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Handle("ALIVE", c.handleAlive)

	// queue
	mux.Handle("ADD_SONG", c.handleAddSong)
	mux.Handle("REMOVE_SONG", c.handleRemoveSong)
	mux.Handle("REORDER_QUEUE", c.handleReorderQueue)
	mux.Handle("SHUFFLE_QUEUE", c.handleShuffleQueue)
	mux.Handle("SKIP", c.handleSkip)
	mux.Handle("VOTE_SKIP", c.handleVoteSkip)

	// player
	mux.Handle("UPDATE_PLAYER_STATE", c.handleUpdatePlayerState)
	mux.Handle("PLAYER_STATUS", c.handlePlayerStatus)
	mux.Handle("PLAYER_ERROR", c.handlePlayerError)
	mux.Handle("SET_VOLUME", c.handleSetVolume)

	// room
	mux.Handle("SEND_MESSAGE", c.handleSendMessage)
	mux.Handle("UPDATE_LISTEN_PERMISSION", c.handleUpdateListenPermission)

	// playlist
	mux.Handle("SAVE_SONG", c.handleSaveSong)
	mux.Handle("REMOVE_SAVED_SONG", c.handleRemoveSavedSong)
	mux.Handle("GET_PLAYLIST", c.handleGetPlaylist)

	mux.HandleError(c.handleWsError)

	return mux
}

// handleWsError reports a failed operation back to the sender. The
// connection stays open.
func (c *controller) handleWsError(ctx context.Context, conn *websocket.Conn, err error) {
	c.logger.DebugContext(ctx, "ws handler error",
		"room_id", c.getRoomIdFromCtx(ctx),
		"user_id", c.getUserIdFromCtx(ctx),
		"error", err,
	)

	msg := "internal error"
	switch {
	case errors.Is(err, room.ErrPermissionDenied):
		msg = "permission denied"
	case errors.Is(err, room.ErrRoomNotFound):
		msg = "room not found"
	case errors.Is(err, room.ErrQueueLimitReached):
		msg = "queue is full"
	case errors.Is(err, room.ErrQueueTooShort):
		msg = "not enough songs to shuffle"
	case errors.Is(err, room.ErrSongNotFound):
		msg = "song not found"
	case errors.Is(err, room.ErrSignInRequired):
		msg = "sign in required"
	}

	cl := c.getClient(conn)
	if cl == nil {
		return
	}

	if err := cl.sender.Send("ERROR", map[string]any{"error": msg}); err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "error", err)
	}
}
