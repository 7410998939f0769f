package room

import (
	"context"
	"fmt"

	"github.com/soundroom/server/internal/playback"
	roomRepo "github.com/soundroom/server/internal/repository/room"
)

type UpdatePlaybackStateParams struct {
	RoomId      string
	UserId      string
	IsPlaying   bool
	CurrentTime float64
}

type PlaybackStateResponse struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	UpdatedAt   int64   `json:"updated_at"`
}

// UpdatePlaybackState writes a new reference point for the shared playback
// clock. Creator only, everyone else derives their position from it.
func (s *service) UpdatePlaybackState(ctx context.Context, params *UpdatePlaybackStateParams) (PlaybackStateResponse, error) {
	if err := s.checkIfCreator(ctx, params.RoomId, params.UserId); err != nil {
		return PlaybackStateResponse{}, err
	}

	state, err := s.roomRepo.UpdatePlaybackState(ctx, &roomRepo.UpdatePlaybackStateParams{
		RoomId:      params.RoomId,
		IsPlaying:   params.IsPlaying,
		CurrentTime: params.CurrentTime,
	})
	if err != nil {
		return PlaybackStateResponse{}, fmt.Errorf("failed to update playback state: %w", err)
	}

	return PlaybackStateResponse{
		IsPlaying:   state.IsPlaying,
		CurrentTime: state.CurrentTime,
		UpdatedAt:   state.UpdatedAt,
	}, nil
}

// GetPlaybackState returns the stored reference point together with the
// current song, the pair a session needs to reconcile against.
func (s *service) GetPlaybackState(ctx context.Context, roomId string) (playback.State, *Song, error) {
	state, err := s.roomRepo.GetPlaybackState(ctx, roomId)
	if err != nil {
		return playback.State{}, nil, fmt.Errorf("failed to get playback state: %w", err)
	}

	current, err := s.roomRepo.GetCurrentSong(ctx, roomId)
	if err != nil {
		return playback.State{}, nil, fmt.Errorf("failed to get current song: %w", err)
	}

	return state, songPtrFromQueue(current), nil
}
