package room

import (
	"github.com/soundroom/server/internal/playback"
	"github.com/soundroom/server/internal/queue"
)

type SetRoomParams struct {
	RoomId              string
	Name                string
	CreatedBy           string
	AllowOthersToListen bool
	IsPrivate           bool
}

type UpsertParticipantParams struct {
	RoomId      string
	UserId      string
	DisplayName string
	IsAnonymous bool
}

type RemoveParticipantParams struct {
	RoomId string
	UserId string
}

type UpdatePlaybackStateParams struct {
	RoomId      string
	IsPlaying   bool
	CurrentTime float64
}

type SetCurrentSongParams struct {
	RoomId string
	Song   queue.Song
}

type AdvanceParams struct {
	RoomId string
	// ExpectedSongId guards the advancement epoch: when set, the pop only
	// happens if the currently playing song still matches it.
	ExpectedSongId *string
}

type AdvanceResult struct {
	NowPlaying    *queue.Song
	Queue         queue.Queue
	PlaybackState playback.State
}

type AddMessageParams struct {
	RoomId      string
	MessageId   string
	Text        string
	UserId      string
	Username    string
	IsAnonymous bool
	IsSystem    bool
}

type SaveSongParams struct {
	UserId string
	Song   queue.Song
}

type RemoveSavedSongParams struct {
	UserId string
	SongId string
}
