package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soundroom/server/internal/playback"
	"github.com/soundroom/server/internal/service/room"
	"github.com/soundroom/server/internal/session"
	"github.com/soundroom/server/pkg/validator"
	"github.com/soundroom/server/pkg/wsrouter"
	"github.com/soundroom/server/pkg/ytsearch"
	"github.com/soundroom/server/pkg/ytvideodata"
)

type iRoomService interface {
	CreateIdentity(*room.CreateIdentityParams) (room.CreateIdentityResponse, error)
	ParseIdentity(token string) (room.Identity, error)

	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	GetRoomState(context.Context, string) (room.RoomState, error)
	ListRooms(context.Context) ([]room.RoomSummary, error)
	ConnectMember(context.Context, *room.ConnectMemberParams) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams) error
	Heartbeat(context.Context, *room.HeartbeatParams) error
	SetAllowOthersToListen(context.Context, *room.SetAllowOthersToListenParams) error

	AddSong(context.Context, *room.AddSongParams) (room.AddSongResponse, error)
	RemoveSong(context.Context, *room.RemoveSongParams) error
	ReorderQueue(context.Context, *room.ReorderQueueParams) error
	ShuffleQueue(context.Context, *room.ShuffleQueueParams) error

	Advance(context.Context, *room.AdvanceParams) (room.AdvanceResponse, error)
	ForceAdvance(context.Context, *room.ForceAdvanceParams) (room.AdvanceResponse, error)
	UpdatePlaybackState(context.Context, *room.UpdatePlaybackStateParams) (room.PlaybackStateResponse, error)
	GetPlaybackState(context.Context, string) (playback.State, *room.Song, error)

	SendMessage(context.Context, *room.SendMessageParams) (room.SendMessageResponse, error)
	SendSystemMessage(ctx context.Context, roomId, text string) (room.Message, error)
	GetMessages(context.Context, string) ([]room.Message, error)

	SaveSong(context.Context, *room.SaveSongParams) error
	RemoveSavedSong(context.Context, *room.RemoveSavedSongParams) error
	GetPlaylist(context.Context, room.Identity) ([]room.SavedSong, error)
	IsSongSaved(ctx context.Context, user room.Identity, videoId string) (bool, error)

	SkipVoteThreshold() int
}

type iConnRepo interface {
	Add(conn *websocket.Conn, userId, roomId string) error
	RemoveByConn(*websocket.Conn) error
	GetUserId(*websocket.Conn) (string, error)
	GetRoomConns(string) []*websocket.Conn
}

type iSearchClient interface {
	Search(ctx context.Context, query string) ([]ytsearch.Video, error)
}

type iVideoDataClient interface {
	Get(ctx context.Context, videoId string) (*ytvideodata.VideoData, error)
}

// client is everything the controller tracks for one live websocket: the
// serialized writer, the member's identity and their playback session.
type client struct {
	roomId   string
	identity room.Identity
	sender   *connSender
	session  *session.Session
	player   *session.RemotePlayer
	cancel   context.CancelFunc
}

type controller struct {
	roomService iRoomService
	connRepo    iConnRepo
	search      iSearchClient
	videoData   iVideoDataClient
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	logger      *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func NewController(roomService iRoomService, connRepo iConnRepo, search iSearchClient, videoData iVideoDataClient, logger *slog.Logger) *controller {
	c := &controller{
		roomService: roomService,
		connRepo:    connRepo,
		search:      search,
		videoData:   videoData,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
		clients:  make(map[*websocket.Conn]*client),
	}
	c.wsmux = c.getWsRouter()

	return c
}
