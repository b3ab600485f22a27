package routes

import (
	"github.com/go-chi/chi"

	"github.com/avvvet/bingo-rooms/internal/socketsvc/handlers"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/ws"
)

func SetRoutes(r *chi.Mux, s *ws.Ws, port string) {
	h := handlers.NewHandler(s, port)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
		r.Get("/rooms", h.RoomsHandler)
	})
}
