package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/soundroom/server/internal/queue"
	roomRepo "github.com/soundroom/server/internal/repository/room"
)

// onlineWindow is how recently a participant must have heartbeated to be
// shown as online. Presentation only, never used for correctness.
const onlineWindow = 5 * time.Minute

func (s *service) checkIfCreator(ctx context.Context, roomId, userId string) error {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to get room: %w", err)
	}

	if rm.CreatedBy != userId {
		return ErrPermissionDenied
	}

	return nil
}

func songFromQueue(s queue.Song) Song {
	return Song{
		Id:               s.Id,
		VideoId:          s.VideoId,
		Title:            s.Title,
		Thumbnail:        s.Thumbnail,
		ChannelTitle:     s.ChannelTitle,
		AddedBy:          s.AddedBy,
		AddedByName:      s.AddedByName,
		AddedByAnonymous: s.AddedByAnonymous,
		Duration:         s.Duration,
	}
}

func songToQueue(s Song) queue.Song {
	return queue.Song{
		Id:               s.Id,
		VideoId:          s.VideoId,
		Title:            s.Title,
		Thumbnail:        s.Thumbnail,
		ChannelTitle:     s.ChannelTitle,
		AddedBy:          s.AddedBy,
		AddedByName:      s.AddedByName,
		AddedByAnonymous: s.AddedByAnonymous,
		Duration:         s.Duration,
	}
}

func songsFromQueue(songs []queue.Song) []Song {
	return lo.Map(songs, func(s queue.Song, _ int) Song { return songFromQueue(s) })
}

func songPtrFromQueue(s *queue.Song) *Song {
	if s == nil {
		return nil
	}

	song := songFromQueue(*s)

	return &song
}

func messageFromRepo(m roomRepo.Message) Message {
	return Message(m)
}

func (s *service) participantsFromRepo(participants []roomRepo.Participant, now int64) []Participant {
	return lo.Map(participants, func(p roomRepo.Participant, _ int) Participant {
		return Participant{
			Id:          p.Id,
			DisplayName: p.DisplayName,
			IsAnonymous: p.IsAnonymous,
			LastActive:  p.LastActive,
			IsOnline:    now-p.LastActive < onlineWindow.Milliseconds(),
		}
	})
}

func (s *service) getQueue(ctx context.Context, roomId string) (queue.Queue, error) {
	raw, err := s.roomRepo.GetQueueRaw(ctx, roomId)
	if err != nil {
		return queue.Queue{}, fmt.Errorf("failed to get queue: %w", err)
	}

	q, err := queue.Decode(raw)
	if err != nil {
		return queue.Queue{}, fmt.Errorf("failed to decode queue: %w", err)
	}

	return q, nil
}

func (s *service) setQueue(ctx context.Context, roomId string, q queue.Queue) error {
	raw, err := q.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}

	if err := s.roomRepo.SetQueueRaw(ctx, roomId, raw); err != nil {
		return fmt.Errorf("failed to set queue: %w", err)
	}

	return nil
}
