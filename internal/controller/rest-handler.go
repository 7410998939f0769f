package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/soundroom/server/internal/service/room"
	"github.com/soundroom/server/pkg/rest"
	"github.com/soundroom/server/pkg/ytsearch"
)

var errNoToken = errors.New("authorization token was not provided")

func (c *controller) getIdentity(r *http.Request) (room.Identity, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("auth-token")
	}
	if token == "" {
		return room.Identity{}, errNoToken
	}

	return c.roomService.ParseIdentity(token)
}

type createIdentityInput struct {
	DisplayName string `json:"display_name" validate:"max=32"`
}

func (c *controller) createIdentity(w http.ResponseWriter, r *http.Request) {
	var req createIdentityInput

	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.roomService.CreateIdentity(&room.CreateIdentityParams{
		DisplayName: req.DisplayName,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create identity", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"identity": resp.Identity,
		"token":    resp.Token,
	}})
}

type createRoomInput struct {
	Name                string `json:"name" validate:"required,max=64"`
	AllowOthersToListen bool   `json:"allow_others_to_listen"`
	IsPrivate           bool   `json:"is_private"`
}

type createRoomResponse struct {
	RoomId string `json:"room_id"`
}

func (c *controller) createRoom(w http.ResponseWriter, r *http.Request) {
	identity, err := c.getIdentity(r)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to get identity", "error", err)
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "invalid token"})
		return
	}

	var req createRoomInput

	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		Name:                req.Name,
		CreatedBy:           identity,
		AllowOthersToListen: req.AllowOthersToListen,
		IsPrivate:           req.IsPrivate,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create room", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResponse{
		RoomId: resp.RoomId,
	}})
}

func (c *controller) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := c.roomService.ListRooms(r.Context())
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to list rooms", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rooms})
}

func (c *controller) searchSongs(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "query was not provided"})
		return
	}

	videos, err := c.search.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, ytsearch.ErrQuotaExceeded) {
			rest.WriteJSON(w, http.StatusTooManyRequests, rest.Envelope{"error": "search quota exceeded"})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to search", "error", err)
		rest.WriteJSON(w, http.StatusBadGateway, rest.Envelope{"error": "search unavailable"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": videos})
}
