package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/soundroom/server/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getRoomsIndexKey() string {
	return "rooms"
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	now, err := r.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to get server time: %w", err)
	}

	roomKey := r.getRoomKey(params.RoomId)
	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, roomKey, room.Room{
		Name:                params.Name,
		CreatedBy:           params.CreatedBy,
		Participants:        0,
		AllowOthersToListen: params.AllowOthersToListen,
		IsPrivate:           params.IsPrivate,
		CreatedAt:           now,
	})
	pipe.Expire(ctx, roomKey, r.expireDuration)
	pipe.ZAdd(ctx, r.getRoomsIndexKey(), redis.Z{Score: float64(now), Member: params.RoomId})

	playerKey := r.getPlayerKey(params.RoomId)
	pipe.HSet(ctx, playerKey, "is_playing", false, "current_time", float64(0), "updated_at", now)
	pipe.Expire(ctx, playerKey, r.expireDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	roomKey := r.getRoomKey(roomId)
	var rm room.Room
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.CreatedBy == "" {
		return room.Room{}, room.ErrRoomNotFound
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return rm, nil
}

func (r repo) GetRoomIds(ctx context.Context) ([]string, error) {
	roomIds, err := r.rc.ZRange(ctx, r.getRoomsIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room ids: %w", err)
	}

	return roomIds, nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	pipe := r.rc.TxPipeline()
	pipe.Del(ctx,
		r.getRoomKey(roomId),
		r.getPlayerKey(roomId),
		r.getCurrentSongKey(roomId),
		r.getQueueKey(roomId),
		r.getParticipantsKey(roomId),
		r.getMessagesKey(roomId),
	)
	pipe.ZRem(ctx, r.getRoomsIndexKey(), roomId)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}

	return nil
}

func (r repo) UpdateAllowOthersToListen(ctx context.Context, roomId string, allow bool) error {
	roomKey := r.getRoomKey(roomId)
	exists, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, roomKey, "allow_others_to_listen", allow).Err(); err != nil {
		return err
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}

func (r repo) SetParticipantsCount(ctx context.Context, roomId string, count int) error {
	roomKey := r.getRoomKey(roomId)
	if err := r.rc.HSet(ctx, roomKey, "participants", count).Err(); err != nil {
		return err
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}
