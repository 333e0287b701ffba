package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/handlers"
)

func init() { Register("POST /register", registerRegister, registrarsOnly) }

func registerRegister(r chi.Router, d deps.Deps) {
	r.Post("/register", handlers.Register(d))
}
