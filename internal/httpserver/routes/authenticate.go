package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/mw"
)

func init() { Register("POST /authenticate", registerAuthenticate, hostOnly) }

func registerAuthenticate(r chi.Router, d deps.Deps) {
	if d.AuthRateLimit {
		r = r.With(mw.ThrottleFailures(mw.ThrottleConfig{
			MaxFailures:     d.AuthBurst,
			RefillPerMinute: d.AuthRefillPerMinute,
			TrustProxy:      d.TrustProxy,
			Now:             d.TimeNow,
		}, d.Logger))
	}
	r.Post("/authenticate", handlers.Authenticate(d))
}
