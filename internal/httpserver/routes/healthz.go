package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/handlers"
)

func init() { Register("GET /healthz", registerHealthz, adminOnly) }

func registerHealthz(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
}
