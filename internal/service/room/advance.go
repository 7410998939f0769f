package room

import (
	"context"
	"errors"
	"fmt"

	roomRepo "github.com/soundroom/server/internal/repository/room"
)

type AdvanceParams struct {
	RoomId string
	UserId string
	// ExpectedSongId pins the advancement to the song the caller believes
	// is playing. A stale expectation means someone else already advanced
	// and the call becomes a no-op.
	ExpectedSongId *string
}

type AdvanceResponse struct {
	// Advanced is false when the epoch guard detected a concurrent
	// advancement and nothing was changed.
	Advanced      bool
	NowPlaying    *Song
	Queue         []Song
	PlaybackState PlaybackStateResponse
}

// Advance pops the queue head into the playing slot. Creator only. An empty
// queue clears playback back to idle.
func (s *service) Advance(ctx context.Context, params *AdvanceParams) (AdvanceResponse, error) {
	if err := s.checkIfCreator(ctx, params.RoomId, params.UserId); err != nil {
		return AdvanceResponse{}, err
	}

	return s.advance(ctx, params.RoomId, params.ExpectedSongId)
}

// advance is the permission-free advancement used both by Advance and by the
// skip-vote quorum path, where the session acts on the creator's behalf.
func (s *service) advance(ctx context.Context, roomId string, expectedSongId *string) (AdvanceResponse, error) {
	result, err := s.roomRepo.Advance(ctx, &roomRepo.AdvanceParams{
		RoomId:         roomId,
		ExpectedSongId: expectedSongId,
	})
	if err != nil {
		if errors.Is(err, roomRepo.ErrAdvanceConflict) {
			return AdvanceResponse{Advanced: false}, nil
		}
		return AdvanceResponse{}, fmt.Errorf("failed to advance: %w", err)
	}

	return AdvanceResponse{
		Advanced:   true,
		NowPlaying: songPtrFromQueue(result.NowPlaying),
		Queue:      songsFromQueue(result.Queue.Songs),
		PlaybackState: PlaybackStateResponse{
			IsPlaying:   result.PlaybackState.IsPlaying,
			CurrentTime: result.PlaybackState.CurrentTime,
			UpdatedAt:   result.PlaybackState.UpdatedAt,
		},
	}, nil
}

type ForceAdvanceParams struct {
	RoomId string
	// ExpectedSongId guards against double advancement from concurrent
	// quorum or error-escalation triggers.
	ExpectedSongId *string
}

// ForceAdvance advances without the creator check. Used by skip-vote quorum
// and unplayable-song escalation, which act for the room rather than for a
// member.
func (s *service) ForceAdvance(ctx context.Context, params *ForceAdvanceParams) (AdvanceResponse, error) {
	return s.advance(ctx, params.RoomId, params.ExpectedSongId)
}
