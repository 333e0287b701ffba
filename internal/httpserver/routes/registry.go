package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/mw"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
	// Guard builds a middleware once the dependencies are known.
	Guard func(d deps.Deps) Middleware
)

type entry struct {
	name   string
	reg    Registrar
	guards []Guard
}

var registry []entry

// Register adds a route under a display name ("METHOD /path"). Guards run in
// order ahead of whatever the registrar adds itself.
func Register(name string, reg Registrar, guards ...Guard) {
	registry = append(registry, entry{name: name, reg: reg, guards: guards})
}

// RegisterAll mounts every registered route on r and returns their names in
// registration order. Called once from httpserver.Router.
func RegisterAll(r chi.Router, d deps.Deps) []string {
	names := make([]string, 0, len(registry))
	for _, e := range registry {
		if len(e.guards) == 0 {
			e.reg(r, d)
		} else {
			mws := make([]Middleware, 0, len(e.guards))
			for _, g := range e.guards {
				mws = append(mws, g(d))
			}
			e.reg(r.With(mws...), d)
		}
		names = append(names, e.name)
	}
	return names
}

// hostOnly restricts a route to the configured Host headers.
func hostOnly(d deps.Deps) Middleware {
	return mw.EnforceHost(d.AllowedHosts, d.Logger)
}

// adminOnly restricts a route to the operator networks.
func adminOnly(d deps.Deps) Middleware {
	return mw.AllowOnlyCIDRS(d.AdminAllowedCIDRS, d.TrustProxy, d.Logger)
}

// registrarsOnly restricts a route to the networks allowed to register.
func registrarsOnly(d deps.Deps) Middleware {
	return mw.AllowOnlyCIDRS(d.RegisterAllowedCIDRS, d.TrustProxy, d.Logger)
}
