package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/handlers"
)

func init() { Register("GET /status", registerStatus, adminOnly, hostOnly) }

func registerStatus(r chi.Router, d deps.Deps) {
	r.Get("/status", handlers.Status(d))
}
