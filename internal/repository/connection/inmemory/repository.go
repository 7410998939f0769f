package inmemory

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soundroom/server/internal/repository/connection"
)

// repo tracks which websocket connection belongs to which user in which
// room. One live connection per user.
type repo struct {
	mu       sync.RWMutex
	connList map[*websocket.Conn]string
	userList map[string]*websocket.Conn
	roomList map[string]map[string]struct{}
	rooms    map[string]string
}

func NewRepo() *repo {
	return &repo{
		connList: make(map[*websocket.Conn]string),
		userList: make(map[string]*websocket.Conn),
		roomList: make(map[string]map[string]struct{}),
		rooms:    make(map[string]string),
	}
}

func (r *repo) Add(conn *websocket.Conn, userId, roomId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connList[conn] != "" || r.userList[userId] != nil {
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = userId
	r.userList[userId] = conn
	if r.roomList[roomId] == nil {
		r.roomList[roomId] = make(map[string]struct{})
	}
	r.roomList[roomId][userId] = struct{}{}
	r.rooms[userId] = roomId

	return nil
}

func (r *repo) RemoveByConn(conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userId, ok := r.connList[conn]
	if !ok {
		return connection.ErrNotFound
	}

	r.remove(conn, userId)

	return nil
}

func (r *repo) RemoveByUserId(userId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.userList[userId]
	if !ok {
		return connection.ErrNotFound
	}

	r.remove(conn, userId)

	return nil
}

func (r *repo) remove(conn *websocket.Conn, userId string) {
	delete(r.connList, conn)
	delete(r.userList, userId)
	if roomId, ok := r.rooms[userId]; ok {
		delete(r.roomList[roomId], userId)
		if len(r.roomList[roomId]) == 0 {
			delete(r.roomList, roomId)
		}
	}
	delete(r.rooms, userId)
}

func (r *repo) GetUserId(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userId, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return userId, nil
}

func (r *repo) GetConn(userId string) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.userList[userId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

// GetRoomConns returns the live connections of everyone in the room.
// Participants without a live connection are skipped.
func (r *repo) GetRoomConns(roomId string) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(r.roomList[roomId]))
	for userId := range r.roomList[roomId] {
		if conn, ok := r.userList[userId]; ok {
			conns = append(conns, conn)
		}
	}

	return conns
}
