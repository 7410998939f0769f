package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/soundroom/server/internal/repository/room"
)

func (r repo) getParticipantsKey(roomId string) string {
	return "room:" + roomId + ":participants"
}

// UpsertParticipant writes the participant with a store-stamped lastActive
// and returns the resulting participant count.
func (r repo) UpsertParticipant(ctx context.Context, params *room.UpsertParticipantParams) (int, error) {
	now, err := r.ServerTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	raw, err := json.Marshal(room.Participant{
		Id:          params.UserId,
		DisplayName: params.DisplayName,
		IsAnonymous: params.IsAnonymous,
		LastActive:  now,
	})
	if err != nil {
		return 0, err
	}

	participantsKey := r.getParticipantsKey(params.RoomId)
	if err := r.rc.HSet(ctx, participantsKey, params.UserId, raw).Err(); err != nil {
		return 0, fmt.Errorf("failed to upsert participant: %w", err)
	}

	r.rc.Expire(ctx, participantsKey, r.expireDuration)

	count, err := r.rc.HLen(ctx, participantsKey).Result()
	if err != nil {
		return 0, err
	}

	return int(count), nil
}

// RemoveParticipant deregisters a participant and returns the remaining
// count.
func (r repo) RemoveParticipant(ctx context.Context, params *room.RemoveParticipantParams) (int, error) {
	participantsKey := r.getParticipantsKey(params.RoomId)
	removed, err := r.rc.HDel(ctx, participantsKey, params.UserId).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to remove participant: %w", err)
	}
	if removed == 0 {
		return 0, room.ErrParticipantNotFound
	}

	count, err := r.rc.HLen(ctx, participantsKey).Result()
	if err != nil {
		return 0, err
	}

	return int(count), nil
}

func (r repo) GetParticipants(ctx context.Context, roomId string) ([]room.Participant, error) {
	participantsKey := r.getParticipantsKey(roomId)
	fields, err := r.rc.HGetAll(ctx, participantsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	r.rc.Expire(ctx, participantsKey, r.expireDuration)

	participants := make([]room.Participant, 0, len(fields))
	for _, raw := range fields {
		var p room.Participant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to decode participant: %w", err)
		}

		participants = append(participants, p)
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].Id < participants[j].Id
	})

	return participants, nil
}

func (r repo) GetParticipantIds(ctx context.Context, roomId string) ([]string, error) {
	ids, err := r.rc.HKeys(ctx, r.getParticipantsKey(roomId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get participant ids: %w", err)
	}

	return ids, nil
}
