package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/soundroom/server/internal/service/room"
	"github.com/soundroom/server/internal/session"
)

func decodePayload[T any](payload json.RawMessage, dst *T) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	return nil
}

func (c *controller) handleAlive(ctx context.Context, conn *websocket.Conn, _ json.RawMessage) error {
	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	return c.roomService.Heartbeat(ctx, &room.HeartbeatParams{
		RoomId:   cl.roomId,
		Identity: cl.identity,
	})
}

type addSongInput struct {
	VideoId      string  `json:"video_id" validate:"required,len=11"`
	Title        string  `json:"title"`
	Thumbnail    string  `json:"thumbnail"`
	ChannelTitle string  `json:"channel_title"`
	Duration     float64 `json:"duration"`
}

func (c *controller) handleAddSong(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input addSongInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid payload: %v", validationErrors)
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	// backfill display metadata when the client only sent a video id
	if input.Title == "" {
		data, err := c.videoData.Get(ctx, input.VideoId)
		if err != nil {
			return fmt.Errorf("failed to get video data: %w", err)
		}
		input.Title = data.Title
		if input.ChannelTitle == "" {
			input.ChannelTitle = data.AuthorName
		}
		if input.Thumbnail == "" {
			input.Thumbnail = data.ThumbnailUrl
		}
	}

	resp, err := c.roomService.AddSong(ctx, &room.AddSongParams{
		RoomId:       cl.roomId,
		AddedBy:      cl.identity,
		VideoId:      input.VideoId,
		Title:        input.Title,
		Thumbnail:    input.Thumbnail,
		ChannelTitle: input.ChannelTitle,
		Duration:     input.Duration,
	})
	if err != nil {
		return fmt.Errorf("failed to add song: %w", err)
	}

	c.broadcast(ctx, cl.roomId, &Output{
		Type: "SONG_ADDED",
		Payload: map[string]any{
			"song":        resp.Song,
			"playing_now": resp.PlayingNow,
		},
	})
	c.broadcastRoomState(ctx, cl.roomId)

	return nil
}

type removeSongInput struct {
	SongId string `json:"song_id" validate:"required"`
}

func (c *controller) handleRemoveSong(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input removeSongInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid payload: %v", validationErrors)
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	if err := c.roomService.RemoveSong(ctx, &room.RemoveSongParams{
		RoomId: cl.roomId,
		UserId: cl.identity.UserId,
		SongId: input.SongId,
	}); err != nil {
		return fmt.Errorf("failed to remove song: %w", err)
	}

	c.broadcast(ctx, cl.roomId, &Output{
		Type:    "SONG_REMOVED",
		Payload: map[string]any{"removed_song_id": input.SongId},
	})
	c.broadcastRoomState(ctx, cl.roomId)

	return nil
}

type reorderQueueInput struct {
	Songs []room.Song `json:"songs"`
}

func (c *controller) handleReorderQueue(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input reorderQueueInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	if err := c.roomService.ReorderQueue(ctx, &room.ReorderQueueParams{
		RoomId: cl.roomId,
		UserId: cl.identity.UserId,
		Songs:  input.Songs,
	}); err != nil {
		return fmt.Errorf("failed to reorder queue: %w", err)
	}

	c.broadcastRoomState(ctx, cl.roomId)

	return nil
}

func (c *controller) handleShuffleQueue(ctx context.Context, conn *websocket.Conn, _ json.RawMessage) error {
	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	if err := c.roomService.ShuffleQueue(ctx, &room.ShuffleQueueParams{
		RoomId: cl.roomId,
		UserId: cl.identity.UserId,
	}); err != nil {
		return fmt.Errorf("failed to shuffle queue: %w", err)
	}

	c.broadcastRoomState(ctx, cl.roomId)

	return nil
}

type skipInput struct {
	ExpectedSongId *string `json:"expected_song_id"`
}

func (c *controller) handleSkip(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input skipInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	resp, err := c.roomService.Advance(ctx, &room.AdvanceParams{
		RoomId:         cl.roomId,
		UserId:         cl.identity.UserId,
		ExpectedSongId: input.ExpectedSongId,
	})
	if err != nil {
		return fmt.Errorf("failed to skip: %w", err)
	}
	if !resp.Advanced {
		return nil
	}

	c.broadcastRoomState(ctx, cl.roomId)

	return nil
}

func (c *controller) handleVoteSkip(ctx context.Context, conn *websocket.Conn, _ json.RawMessage) error {
	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	c.registerSkipVote(ctx, cl.roomId, cl.identity.UserId)

	return nil
}

// registerSkipVote feeds the vote to every session in the room. Each
// session keeps its own tally; the creator's session advances the queue
// when its tally reaches quorum.
func (c *controller) registerSkipVote(ctx context.Context, roomId, voterId string) {
	votes := 0
	advanced := false
	for _, cl := range c.getRoomClients(roomId) {
		v, adv := cl.session.HandleSkipVote(ctx, voterId)
		votes = v
		if adv {
			advanced = true
		}
	}

	c.broadcast(ctx, roomId, &Output{
		Type: "SKIP_VOTES_UPDATED",
		Payload: map[string]any{
			"votes":     votes,
			"threshold": c.roomService.SkipVoteThreshold(),
		},
	})

	if advanced {
		msg, err := c.roomService.SendSystemMessage(ctx, roomId, "Skip vote passed, playing the next song")
		if err != nil {
			c.logger.WarnContext(ctx, "failed to send system message", "room_id", roomId, "error", err)
			return
		}
		c.broadcast(ctx, roomId, &Output{Type: "MESSAGE", Payload: msg})
	}
}

type updatePlayerStateInput struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
}

func (c *controller) handleUpdatePlayerState(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input updatePlayerStateInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	if _, err := c.roomService.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{
		RoomId:      cl.roomId,
		UserId:      cl.identity.UserId,
		IsPlaying:   input.IsPlaying,
		CurrentTime: input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to update playback state: %w", err)
	}

	c.broadcastRoomState(ctx, cl.roomId)

	return nil
}

type playerStatusInput struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	State       int     `json:"state"`
}

func (c *controller) handlePlayerStatus(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input playerStatusInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	cl.player.ReportStatus(input.CurrentTime, input.Duration, session.PlayerState(input.State))

	if session.PlayerState(input.State) == session.StateEnded {
		cl.session.HandleEnded(ctx)
	}

	return nil
}

type setVolumeInput struct {
	Volume int `json:"volume" validate:"min=0,max=100"`
}

// handleSetVolume routes a volume change back through the player command
// channel so volume handling stays uniform with the other player commands.
func (c *controller) handleSetVolume(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input setVolumeInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid payload: %v", validationErrors)
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	if err := cl.player.SetVolume(input.Volume); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}

	return nil
}

type playerErrorInput struct {
	Code int `json:"code"`
}

func (c *controller) handlePlayerError(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input playerErrorInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	cl.session.HandleError(ctx, input.Code)

	return nil
}

type sendMessageInput struct {
	Text string `json:"text" validate:"required,max=500"`
}

func (c *controller) handleSendMessage(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input sendMessageInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid payload: %v", validationErrors)
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	resp, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		RoomId: cl.roomId,
		Sender: cl.identity,
		Text:   input.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.broadcast(ctx, cl.roomId, &Output{Type: "MESSAGE", Payload: resp.Message})

	if resp.IsSkipVote {
		c.registerSkipVote(ctx, cl.roomId, cl.identity.UserId)
	}

	return nil
}

type updateListenPermissionInput struct {
	Allow bool `json:"allow"`
}

func (c *controller) handleUpdateListenPermission(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input updateListenPermissionInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	if err := c.roomService.SetAllowOthersToListen(ctx, &room.SetAllowOthersToListenParams{
		RoomId: cl.roomId,
		UserId: cl.identity.UserId,
		Allow:  input.Allow,
	}); err != nil {
		return fmt.Errorf("failed to update listen permission: %w", err)
	}

	c.broadcastRoomState(ctx, cl.roomId)

	return nil
}

type saveSongInput struct {
	Song room.Song `json:"song"`
}

func (c *controller) handleSaveSong(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input saveSongInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}
	if input.Song.Id == "" || input.Song.VideoId == "" {
		return fmt.Errorf("invalid payload: song id and video id are required")
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	if err := c.roomService.SaveSong(ctx, &room.SaveSongParams{
		User: cl.identity,
		Song: input.Song,
	}); err != nil {
		if errors.Is(err, room.ErrSignInRequired) {
			return err
		}

		return fmt.Errorf("failed to save song: %w", err)
	}

	return cl.sender.Send("SONG_SAVED", map[string]any{"song": input.Song})
}

type removeSavedSongInput struct {
	SongId string `json:"song_id" validate:"required"`
}

func (c *controller) handleRemoveSavedSong(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input removeSavedSongInput
	if err := decodePayload(payload, &input); err != nil {
		return err
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid payload: %v", validationErrors)
	}

	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	if err := c.roomService.RemoveSavedSong(ctx, &room.RemoveSavedSongParams{
		User:   cl.identity,
		SongId: input.SongId,
	}); err != nil {
		return err
	}

	return cl.sender.Send("SAVED_SONG_REMOVED", map[string]any{"song_id": input.SongId})
}

func (c *controller) handleGetPlaylist(ctx context.Context, conn *websocket.Conn, _ json.RawMessage) error {
	cl := c.getClient(conn)
	if cl == nil {
		return nil
	}

	playlist, err := c.roomService.GetPlaylist(ctx, cl.identity)
	if err != nil {
		return err
	}

	return cl.sender.Send("PLAYLIST", map[string]any{"songs": playlist})
}
