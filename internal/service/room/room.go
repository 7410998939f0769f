package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	roomRepo "github.com/soundroom/server/internal/repository/room"
)

type CreateRoomParams struct {
	Name                string
	CreatedBy           Identity
	AllowOthersToListen bool
	IsPrivate           bool
}

type CreateRoomResponse struct {
	RoomId string
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomId := s.generator.GenerateRandomString(8)

	if err := s.roomRepo.SetRoom(ctx, &roomRepo.SetRoomParams{
		RoomId:              roomId,
		Name:                params.Name,
		CreatedBy:           params.CreatedBy.UserId,
		AllowOthersToListen: params.AllowOthersToListen,
		IsPrivate:           params.IsPrivate,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	return CreateRoomResponse{RoomId: roomId}, nil
}

// GetRoomState assembles the full room snapshot. The queue is normalized to
// an ordered array regardless of how it is stored.
func (s *service) GetRoomState(ctx context.Context, roomId string) (RoomState, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return RoomState{}, ErrRoomNotFound
		}
		return RoomState{}, fmt.Errorf("failed to get room: %w", err)
	}

	q, err := s.getQueue(ctx, roomId)
	if err != nil {
		return RoomState{}, err
	}

	current, err := s.roomRepo.GetCurrentSong(ctx, roomId)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to get current song: %w", err)
	}

	playbackState, err := s.roomRepo.GetPlaybackState(ctx, roomId)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to get playback state: %w", err)
	}

	participants, err := s.roomRepo.GetParticipants(ctx, roomId)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to get participants: %w", err)
	}

	now, err := s.roomRepo.ServerTime(ctx)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to get server time: %w", err)
	}

	return RoomState{
		Id:                  roomId,
		Name:                rm.Name,
		CreatedBy:           rm.CreatedBy,
		Participants:        rm.Participants,
		ParticipantsList:    s.participantsFromRepo(participants, now),
		Queue:               songsFromQueue(q.Songs),
		CurrentlyPlaying:    songPtrFromQueue(current),
		PlaybackState:       playbackState,
		AllowOthersToListen: rm.AllowOthersToListen,
		IsPrivate:           rm.IsPrivate,
		SkipVoteThreshold:   s.skipVoteThreshold,
	}, nil
}

// ListRooms returns the dashboard listing of public rooms, newest first.
// Rooms that fail to load are skipped rather than failing the listing.
func (s *service) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	roomIds, err := s.roomRepo.GetRoomIds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get room ids: %w", err)
	}

	summaries := make([]RoomSummary, 0, len(roomIds))
	for _, roomId := range roomIds {
		rm, err := s.roomRepo.GetRoom(ctx, roomId)
		if err != nil {
			if errors.Is(err, roomRepo.ErrRoomNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get room: %w", err)
		}
		if rm.IsPrivate {
			continue
		}

		current, err := s.roomRepo.GetCurrentSong(ctx, roomId)
		if err != nil {
			slog.WarnContext(ctx, "failed to get current song", "room_id", roomId, "error", err)
			current = nil
		}

		summaries = append(summaries, RoomSummary{
			Id:               roomId,
			Name:             rm.Name,
			Participants:     rm.Participants,
			CurrentlyPlaying: songPtrFromQueue(current),
			CreatedAt:        rm.CreatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt > summaries[j].CreatedAt
	})

	return summaries, nil
}

type ConnectMemberParams struct {
	RoomId   string
	Identity Identity
}

// ConnectMember registers a user joining a room and refreshes the stored
// participant count.
func (s *service) ConnectMember(ctx context.Context, params *ConnectMemberParams) error {
	rm, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to get room: %w", err)
	}

	if rm.Participants >= s.membersLimit && rm.CreatedBy != params.Identity.UserId {
		return ErrMembersLimitReached
	}

	count, err := s.roomRepo.UpsertParticipant(ctx, &roomRepo.UpsertParticipantParams{
		RoomId:      params.RoomId,
		UserId:      params.Identity.UserId,
		DisplayName: params.Identity.DisplayName,
		IsAnonymous: params.Identity.IsAnonymous,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}

	if err := s.roomRepo.SetParticipantsCount(ctx, params.RoomId, count); err != nil {
		return fmt.Errorf("failed to set participants count: %w", err)
	}

	return nil
}

type DisconnectMemberParams struct {
	RoomId string
	UserId string
}

// DisconnectMember removes a participant. Removing an already absent
// participant is a no-op.
func (s *service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) error {
	count, err := s.roomRepo.RemoveParticipant(ctx, &roomRepo.RemoveParticipantParams{
		RoomId: params.RoomId,
		UserId: params.UserId,
	})
	if err != nil {
		if errors.Is(err, roomRepo.ErrParticipantNotFound) {
			return nil
		}
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	if err := s.roomRepo.SetParticipantsCount(ctx, params.RoomId, count); err != nil {
		return fmt.Errorf("failed to set participants count: %w", err)
	}

	return nil
}

type HeartbeatParams struct {
	RoomId   string
	Identity Identity
}

// Heartbeat refreshes the member's last-active timestamp. Reconnection after
// an outage heals through here, the upsert recreates the membership record.
func (s *service) Heartbeat(ctx context.Context, params *HeartbeatParams) error {
	count, err := s.roomRepo.UpsertParticipant(ctx, &roomRepo.UpsertParticipantParams{
		RoomId:      params.RoomId,
		UserId:      params.Identity.UserId,
		DisplayName: params.Identity.DisplayName,
		IsAnonymous: params.Identity.IsAnonymous,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}

	if err := s.roomRepo.SetParticipantsCount(ctx, params.RoomId, count); err != nil {
		return fmt.Errorf("failed to set participants count: %w", err)
	}

	return nil
}

type SetAllowOthersToListenParams struct {
	RoomId string
	UserId string
	Allow  bool
}

// SetAllowOthersToListen toggles whether non-creator members may play audio.
// Creator only.
func (s *service) SetAllowOthersToListen(ctx context.Context, params *SetAllowOthersToListenParams) error {
	if err := s.checkIfCreator(ctx, params.RoomId, params.UserId); err != nil {
		return err
	}

	if err := s.roomRepo.UpdateAllowOthersToListen(ctx, params.RoomId, params.Allow); err != nil {
		return fmt.Errorf("failed to update allow others to listen: %w", err)
	}

	return nil
}
