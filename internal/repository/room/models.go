package room

import (
	"github.com/soundroom/server/internal/queue"
)

type Room struct {
	Name                string `redis:"name"`
	CreatedBy           string `redis:"created_by"`
	Participants        int    `redis:"participants"`
	AllowOthersToListen bool   `redis:"allow_others_to_listen"`
	IsPrivate           bool   `redis:"is_private"`
	CreatedAt           int64  `redis:"created_at"`
}

type Participant struct {
	Id          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	LastActive  int64  `json:"last_active"`
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
	queue.Song
	SavedAt int64 `json:"saved_at"`
}
