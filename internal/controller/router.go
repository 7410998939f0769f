package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c *controller) Mux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Route("/api", func(r chi.Router) {
		r.Post("/identity", c.createIdentity)
		r.Post("/rooms", c.createRoom)
		r.Get("/rooms", c.listRooms)
		r.Get("/search", c.searchSongs)
	})

	r.HandleFunc("/ws/{room-id}", c.serveRoom)

	return r
}
