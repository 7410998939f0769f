package room

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/soundroom/server/internal/queue"
	roomRepo "github.com/soundroom/server/internal/repository/room"
)

type AddSongParams struct {
	RoomId  string
	AddedBy Identity

	VideoId      string
	Title        string
	Thumbnail    string
	ChannelTitle string
	Duration     float64
}

type AddSongResponse struct {
	Song Song
	// PlayingNow is set when the room was idle and the song bypassed the
	// queue to start playing immediately.
	PlayingNow bool
}

// AddSong appends a song to the queue, or starts it immediately when nothing
// is playing. Any member may add.
func (s *service) AddSong(ctx context.Context, params *AddSongParams) (AddSongResponse, error) {
	song := queue.Song{
		Id:               uuid.NewString(),
		VideoId:          params.VideoId,
		Title:            params.Title,
		Thumbnail:        params.Thumbnail,
		ChannelTitle:     params.ChannelTitle,
		AddedBy:          params.AddedBy.UserId,
		AddedByName:      params.AddedBy.DisplayName,
		AddedByAnonymous: params.AddedBy.IsAnonymous,
		Duration:         params.Duration,
	}

	current, err := s.roomRepo.GetCurrentSong(ctx, params.RoomId)
	if err != nil {
		return AddSongResponse{}, fmt.Errorf("failed to get current song: %w", err)
	}

	if current == nil {
		if _, err := s.roomRepo.SetCurrentSong(ctx, &roomRepo.SetCurrentSongParams{
			RoomId: params.RoomId,
			Song:   song,
		}); err != nil {
			return AddSongResponse{}, fmt.Errorf("failed to set current song: %w", err)
		}

		return AddSongResponse{Song: songFromQueue(song), PlayingNow: true}, nil
	}

	q, err := s.getQueue(ctx, params.RoomId)
	if err != nil {
		return AddSongResponse{}, err
	}

	if q.Len() >= s.queueLimit {
		return AddSongResponse{}, ErrQueueLimitReached
	}

	now, err := s.roomRepo.ServerTime(ctx)
	if err != nil {
		return AddSongResponse{}, fmt.Errorf("failed to get server time: %w", err)
	}

	s.rndMu.Lock()
	key := queue.PushKey(time.UnixMilli(now), s.rnd)
	s.rndMu.Unlock()

	q = q.Append(song, key)

	if err := s.setQueue(ctx, params.RoomId, q); err != nil {
		return AddSongResponse{}, err
	}

	return AddSongResponse{Song: songFromQueue(song)}, nil
}

type RemoveSongParams struct {
	RoomId string
	UserId string
	SongId string
}

// RemoveSong removes a queued song by its id. Members may remove their own
// additions, the creator may remove anything. Removing an absent song is a
// no-op.
func (s *service) RemoveSong(ctx context.Context, params *RemoveSongParams) error {
	q, err := s.getQueue(ctx, params.RoomId)
	if err != nil {
		return err
	}

	song, ok := lo.Find(q.Songs, func(s queue.Song) bool { return s.Id == params.SongId })
	if !ok {
		return nil
	}

	if song.AddedBy != params.UserId {
		if err := s.checkIfCreator(ctx, params.RoomId, params.UserId); err != nil {
			return err
		}
	}

	q, _ = q.RemoveById(params.SongId)

	return s.setQueue(ctx, params.RoomId, q)
}

type ReorderQueueParams struct {
	RoomId string
	UserId string
	Songs  []Song
}

// ReorderQueue replaces the queue with a client-supplied ordering. Creator
// only. The replacement is trusted wholesale and persists as an array.
func (s *service) ReorderQueue(ctx context.Context, params *ReorderQueueParams) error {
	if err := s.checkIfCreator(ctx, params.RoomId, params.UserId); err != nil {
		return err
	}

	q := queue.Reorder(lo.Map(params.Songs, func(s Song, _ int) queue.Song { return songToQueue(s) }))

	return s.setQueue(ctx, params.RoomId, q)
}

type ShuffleQueueParams struct {
	RoomId string
	UserId string
}

// ShuffleQueue randomly permutes the queue. Creator only, needs at least two
// songs.
func (s *service) ShuffleQueue(ctx context.Context, params *ShuffleQueueParams) error {
	if err := s.checkIfCreator(ctx, params.RoomId, params.UserId); err != nil {
		return err
	}

	q, err := s.getQueue(ctx, params.RoomId)
	if err != nil {
		return err
	}

	if q.Len() < 2 {
		return ErrQueueTooShort
	}

	s.rndMu.Lock()
	q = q.Shuffle(s.rnd)
	s.rndMu.Unlock()

	return s.setQueue(ctx, params.RoomId, q)
}

// GetQueueSongs returns the queue normalized to an ordered array.
func (s *service) GetQueueSongs(ctx context.Context, roomId string) ([]Song, error) {
	q, err := s.getQueue(ctx, roomId)
	if err != nil {
		return nil, err
	}

	return songsFromQueue(q.Songs), nil
}
