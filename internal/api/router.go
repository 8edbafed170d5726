package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/asterisk/internal/dispatch"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(d *dispatch.Dispatcher, hc HostController, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(d, hc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Command protocol.
	r.Post("/commands", h.Command)

	// Simulated host.
	r.Route("/host", func(r chi.Router) {
		r.Get("/state", h.HostState)
		r.Post("/selection", h.SetSelection)
		r.Post("/page", h.SetPage)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
