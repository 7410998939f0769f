package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/soundroom/server/internal/repository/room"
)

func (r repo) getPlaylistKey(userId string) string {
	return "user:" + userId + ":playlist"
}

func (r repo) SaveSong(ctx context.Context, params *room.SaveSongParams) error {
	now, err := r.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to get server time: %w", err)
	}

	raw, err := json.Marshal(room.SavedSong{Song: params.Song, SavedAt: now})
	if err != nil {
		return err
	}

	playlistKey := r.getPlaylistKey(params.UserId)
	if err := r.rc.HSet(ctx, playlistKey, params.Song.Id, raw).Err(); err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}

	r.rc.Expire(ctx, playlistKey, r.expireDuration)

	return nil
}

func (r repo) RemoveSavedSong(ctx context.Context, params *room.RemoveSavedSongParams) error {
	removed, err := r.rc.HDel(ctx, r.getPlaylistKey(params.UserId), params.SongId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove saved song: %w", err)
	}
	if removed == 0 {
		return room.ErrSongNotFound
	}

	return nil
}

func (r repo) GetSavedSongs(ctx context.Context, userId string) ([]room.SavedSong, error) {
	fields, err := r.rc.HGetAll(ctx, r.getPlaylistKey(userId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get saved songs: %w", err)
	}

	songs := make([]room.SavedSong, 0, len(fields))
	for _, raw := range fields {
		var s room.SavedSong
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("failed to decode saved song: %w", err)
		}

		songs = append(songs, s)
	}

	sort.Slice(songs, func(i, j int) bool {
		return songs[i].SavedAt < songs[j].SavedAt
	})

	return songs, nil
}

// FindSavedByVideoId returns the saved entry matching a video id, if any.
// Bookmarks are looked up by video, not by queue entry id.
func (r repo) FindSavedByVideoId(ctx context.Context, userId, videoId string) (*room.SavedSong, error) {
	songs, err := r.GetSavedSongs(ctx, userId)
	if err != nil {
		return nil, err
	}

	for _, s := range songs {
		if s.VideoId == videoId {
			return &s, nil
		}
	}

	return nil, nil
}
