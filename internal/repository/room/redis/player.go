package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/soundroom/server/internal/playback"
	"github.com/soundroom/server/internal/queue"
	"github.com/soundroom/server/internal/repository/room"
)

func (r repo) getPlayerKey(roomId string) string {
	return "room:" + roomId + ":player"
}

func (r repo) getCurrentSongKey(roomId string) string {
	return "room:" + roomId + ":current"
}

func (r repo) GetPlaybackState(ctx context.Context, roomId string) (playback.State, error) {
	playerKey := r.getPlayerKey(roomId)
	var state playback.State
	if err := r.rc.HGetAll(ctx, playerKey).Scan(&state); err != nil {
		return playback.State{}, fmt.Errorf("failed to get playback state: %w", err)
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return state, nil
}

// UpdatePlaybackState writes the transport fields and stamps them with the
// store clock. The stamped state is returned so callers can fan it out.
func (r repo) UpdatePlaybackState(ctx context.Context, params *room.UpdatePlaybackStateParams) (playback.State, error) {
	now, err := r.ServerTime(ctx)
	if err != nil {
		return playback.State{}, fmt.Errorf("failed to get server time: %w", err)
	}

	playerKey := r.getPlayerKey(params.RoomId)
	exists, err := r.rc.Exists(ctx, playerKey).Result()
	if err != nil {
		return playback.State{}, err
	}
	if exists == 0 {
		return playback.State{}, room.ErrRoomNotFound
	}

	state := playback.State{
		IsPlaying:   params.IsPlaying,
		CurrentTime: params.CurrentTime,
		UpdatedAt:   now,
	}
	if err := r.rc.HSet(ctx, playerKey, state).Err(); err != nil {
		return playback.State{}, fmt.Errorf("failed to update playback state: %w", err)
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return state, nil
}

func (r repo) GetCurrentSong(ctx context.Context, roomId string) (*queue.Song, error) {
	raw, err := r.rc.Get(ctx, r.getCurrentSongKey(roomId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get current song: %w", err)
	}

	var song queue.Song
	if err := json.Unmarshal(raw, &song); err != nil {
		return nil, fmt.Errorf("failed to decode current song: %w", err)
	}

	return &song, nil
}

// SetCurrentSong loads a song directly as currently playing, bypassing the
// queue, and resets the playback clock to playing-at-zero. Used by the
// append operation when nothing is playing.
func (r repo) SetCurrentSong(ctx context.Context, params *room.SetCurrentSongParams) (playback.State, error) {
	now, err := r.ServerTime(ctx)
	if err != nil {
		return playback.State{}, fmt.Errorf("failed to get server time: %w", err)
	}

	raw, err := json.Marshal(params.Song)
	if err != nil {
		return playback.State{}, fmt.Errorf("failed to encode song: %w", err)
	}

	state := playback.State{IsPlaying: true, CurrentTime: 0, UpdatedAt: now}

	pipe := r.rc.TxPipeline()
	currentKey := r.getCurrentSongKey(params.RoomId)
	pipe.Set(ctx, currentKey, raw, r.expireDuration)
	playerKey := r.getPlayerKey(params.RoomId)
	pipe.HSet(ctx, playerKey, state)
	pipe.Expire(ctx, playerKey, r.expireDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return playback.State{}, fmt.Errorf("failed to set current song: %w", err)
	}

	return state, nil
}

// Advance pops the queue head into currently-playing, or clears playback
// when the queue is empty. It runs under an optimistic transaction watching
// the current song and the queue, so concurrent triggers for the same
// elapsed song pop at most one entry.
func (r repo) Advance(ctx context.Context, params *room.AdvanceParams) (room.AdvanceResult, error) {
	now, err := r.ServerTime(ctx)
	if err != nil {
		return room.AdvanceResult{}, fmt.Errorf("failed to get server time: %w", err)
	}

	currentKey := r.getCurrentSongKey(params.RoomId)
	queueKey := r.getQueueKey(params.RoomId)
	playerKey := r.getPlayerKey(params.RoomId)

	var result room.AdvanceResult
	txf := func(tx *redis.Tx) error {
		var current *queue.Song
		curRaw, err := tx.Get(ctx, currentKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			current = &queue.Song{}
			if err := json.Unmarshal(curRaw, current); err != nil {
				return fmt.Errorf("failed to decode current song: %w", err)
			}
		}

		if params.ExpectedSongId != nil {
			if current == nil || current.Id != *params.ExpectedSongId {
				return room.ErrAdvanceConflict
			}
		}

		qRaw, err := tx.Get(ctx, queueKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		q, err := queue.Decode(qRaw)
		if err != nil {
			return err
		}

		head, rest, ok := q.PopHead()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ok {
				headRaw, err := json.Marshal(head)
				if err != nil {
					return err
				}
				restRaw, err := rest.Encode()
				if err != nil {
					return err
				}

				pipe.Set(ctx, currentKey, headRaw, r.expireDuration)
				pipe.Set(ctx, queueKey, restRaw, r.expireDuration)
				result.NowPlaying = &head
				result.Queue = rest
				result.PlaybackState = playback.State{IsPlaying: true, CurrentTime: 0, UpdatedAt: now}
			} else {
				pipe.Del(ctx, currentKey)
				result.NowPlaying = nil
				result.Queue = rest
				result.PlaybackState = playback.State{IsPlaying: false, CurrentTime: 0, UpdatedAt: now}
			}

			pipe.HSet(ctx, playerKey, result.PlaybackState)
			pipe.Expire(ctx, playerKey, r.expireDuration)

			return nil
		})

		return err
	}

	if err := r.rc.Watch(ctx, txf, currentKey, queueKey); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// another trigger advanced first
			return room.AdvanceResult{}, room.ErrAdvanceConflict
		}

		return room.AdvanceResult{}, err
	}

	return result, nil
}
