package room

import "github.com/soundroom/server/internal/playback"

type Song struct {
	Id               string  `json:"id"`
	VideoId          string  `json:"video_id"`
	Title            string  `json:"title"`
	Thumbnail        string  `json:"thumbnail"`
	ChannelTitle     string  `json:"channel_title"`
	AddedBy          string  `json:"added_by"`
	AddedByName      string  `json:"added_by_name"`
	AddedByAnonymous bool    `json:"added_by_anonymous,omitempty"`
	Duration         float64 `json:"duration,omitempty"`
}

type Participant struct {
	Id          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	LastActive  int64  `json:"last_active"`
	IsOnline    bool   `json:"is_online"`
}

type Message struct {
	Id          string `json:"id"`
	Text        string `json:"text"`
	UserId      string `json:"user_id"`
	Username    string `json:"username"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	IsSystem    bool   `json:"is_system,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

type SavedSong struct {
	Song
	SavedAt int64 `json:"saved_at"`
}

// RoomState is the full room snapshot sent to clients. The queue is always
// normalized to an ordered array here regardless of the stored
// representation.
type RoomState struct {
	Id                  string         `json:"id"`
	Name                string         `json:"name"`
	CreatedBy           string         `json:"created_by"`
	Participants        int            `json:"participants"`
	ParticipantsList    []Participant  `json:"participants_list"`
	Queue               []Song         `json:"queue"`
	CurrentlyPlaying    *Song          `json:"currently_playing"`
	PlaybackState       playback.State `json:"playback_state"`
	AllowOthersToListen bool           `json:"allow_others_to_listen"`
	IsPrivate           bool           `json:"is_private,omitempty"`
	SkipVoteThreshold   int            `json:"skip_vote_threshold"`
}

// RoomSummary is the dashboard listing entry for a public room.
type RoomSummary struct {
	Id               string `json:"id"`
	Name             string `json:"name"`
	Participants     int    `json:"participants"`
	CurrentlyPlaying *Song  `json:"currently_playing,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}
