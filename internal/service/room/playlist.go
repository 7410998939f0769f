package room

import (
	"context"
	"errors"
	"fmt"

	roomRepo "github.com/soundroom/server/internal/repository/room"
)

type SaveSongParams struct {
	User Identity
	Song Song
}

// SaveSong bookmarks a song to the user's personal playlist. Anonymous
// users have no durable playlist.
func (s *service) SaveSong(ctx context.Context, params *SaveSongParams) error {
	if params.User.IsAnonymous {
		return ErrSignInRequired
	}

	if err := s.roomRepo.SaveSong(ctx, &roomRepo.SaveSongParams{
		UserId: params.User.UserId,
		Song:   songToQueue(params.Song),
	}); err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}

	return nil
}

type RemoveSavedSongParams struct {
	User   Identity
	SongId string
}

func (s *service) RemoveSavedSong(ctx context.Context, params *RemoveSavedSongParams) error {
	if params.User.IsAnonymous {
		return ErrSignInRequired
	}

	if err := s.roomRepo.RemoveSavedSong(ctx, &roomRepo.RemoveSavedSongParams{
		UserId: params.User.UserId,
		SongId: params.SongId,
	}); err != nil {
		if errors.Is(err, roomRepo.ErrSongNotFound) {
			return ErrSongNotFound
		}
		return fmt.Errorf("failed to remove saved song: %w", err)
	}

	return nil
}

func (s *service) GetPlaylist(ctx context.Context, user Identity) ([]SavedSong, error) {
	if user.IsAnonymous {
		return nil, ErrSignInRequired
	}

	saved, err := s.roomRepo.GetSavedSongs(ctx, user.UserId)
	if err != nil {
		return nil, fmt.Errorf("failed to get saved songs: %w", err)
	}

	res := make([]SavedSong, 0, len(saved))
	for _, ss := range saved {
		res = append(res, SavedSong{
			Song:    songFromQueue(ss.Song),
			SavedAt: ss.SavedAt,
		})
	}

	return res, nil
}

// IsSongSaved reports whether the user already bookmarked this video.
// Anonymous users never have saved songs.
func (s *service) IsSongSaved(ctx context.Context, user Identity, videoId string) (bool, error) {
	if user.IsAnonymous {
		return false, nil
	}

	saved, err := s.roomRepo.FindSavedByVideoId(ctx, user.UserId, videoId)
	if err != nil {
		return false, fmt.Errorf("failed to find saved song: %w", err)
	}

	return saved != nil, nil
}
