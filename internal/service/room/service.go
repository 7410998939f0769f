package room

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soundroom/server/internal/playback"
	"github.com/soundroom/server/internal/queue"
	roomRepo "github.com/soundroom/server/internal/repository/room"
	"github.com/soundroom/server/pkg/randstr"
)

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrRoomNotFound        = errors.New("room not found")
	ErrMembersLimitReached = errors.New("members limit reached")
	ErrQueueLimitReached   = errors.New("queue limit reached")
	ErrQueueTooShort       = errors.New("queue too short")
	ErrSongNotFound        = errors.New("song not found")
	ErrSignInRequired      = errors.New("sign in required")
)

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *roomRepo.SetRoomParams) error
	GetRoom(context.Context, string) (roomRepo.Room, error)
	GetRoomIds(context.Context) ([]string, error)
	RemoveRoom(context.Context, string) error
	UpdateAllowOthersToListen(ctx context.Context, roomId string, allow bool) error
	SetParticipantsCount(ctx context.Context, roomId string, count int) error
	// playback
	GetPlaybackState(context.Context, string) (playback.State, error)
	UpdatePlaybackState(context.Context, *roomRepo.UpdatePlaybackStateParams) (playback.State, error)
	GetCurrentSong(context.Context, string) (*queue.Song, error)
	SetCurrentSong(context.Context, *roomRepo.SetCurrentSongParams) (playback.State, error)
	Advance(context.Context, *roomRepo.AdvanceParams) (roomRepo.AdvanceResult, error)
	// queue
	GetQueueRaw(context.Context, string) ([]byte, error)
	SetQueueRaw(ctx context.Context, roomId string, raw []byte) error
	// participants
	UpsertParticipant(context.Context, *roomRepo.UpsertParticipantParams) (int, error)
	RemoveParticipant(context.Context, *roomRepo.RemoveParticipantParams) (int, error)
	GetParticipants(context.Context, string) ([]roomRepo.Participant, error)
	// messages
	AddMessage(context.Context, *roomRepo.AddMessageParams) (roomRepo.Message, error)
	GetMessages(context.Context, string) ([]roomRepo.Message, error)
	// playlist
	SaveSong(context.Context, *roomRepo.SaveSongParams) error
	RemoveSavedSong(context.Context, *roomRepo.RemoveSavedSongParams) error
	GetSavedSongs(context.Context, string) ([]roomRepo.SavedSong, error)
	FindSavedByVideoId(ctx context.Context, userId, videoId string) (*roomRepo.SavedSong, error)

	ServerTime(context.Context) (int64, error)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, userId, roomId string) error
	RemoveByConn(*websocket.Conn) error
	RemoveByUserId(string) error
	GetUserId(*websocket.Conn) (string, error)
	GetConn(string) (*websocket.Conn, error)
	GetRoomConns(string) []*websocket.Conn
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	MembersLimit      int
	QueueLimit        int
	SkipVoteThreshold int
	Secret            string
}

type service struct {
	roomRepo iRoomRepo
	connRepo iConnRepo

	generator iGenerator
	rnd       *rand.Rand
	rndMu     sync.Mutex

	membersLimit      int
	queueLimit        int
	skipVoteThreshold int
	secret            string
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, cfg *Config) *service {
	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	return &service{
		roomRepo:          roomRepo,
		connRepo:          connRepo,
		generator:         randstr.New(letterBytes),
		rnd:               rand.New(rand.NewSource(time.Now().UnixNano())),
		membersLimit:      cfg.MembersLimit,
		queueLimit:        cfg.QueueLimit,
		skipVoteThreshold: cfg.SkipVoteThreshold,
		secret:            cfg.Secret,
	}
}

// SkipVoteThreshold is the quorum of distinct voters that forces an
// advancement.
func (s *service) SkipVoteThreshold() int {
	return s.skipVoteThreshold
}
