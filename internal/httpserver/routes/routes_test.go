package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/logger"
	domains "github.com/MrSnakeDoc/schluessel/internal/registry"
)

func TestRegisterAllBuildsGuardsFromDeps(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = nil

	tag := func(d deps.Deps) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Tagged", d.Version)
				next.ServeHTTP(w, r)
			})
		}
	}
	Register("GET /plain", func(r chi.Router, d deps.Deps) {
		r.Get("/plain", func(w http.ResponseWriter, r *http.Request) {})
	})
	Register("GET /tagged", func(r chi.Router, d deps.Deps) {
		r.Get("/tagged", func(w http.ResponseWriter, r *http.Request) {})
	}, tag)

	r := chi.NewRouter()
	names := RegisterAll(r, deps.Deps{Version: "v9"})
	assert.Equal(t, []string{"GET /plain", "GET /tagged"}, names)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Empty(t, rec.Header().Get("X-Tagged"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tagged", nil))
	assert.Equal(t, "v9", rec.Header().Get("X-Tagged"))
}

func TestBuiltinRoutesRegistered(t *testing.T) {
	names := make(map[string]bool, len(registry))
	for _, e := range registry {
		names[e.name] = true
	}
	for _, want := range []string{
		"GET /", "POST /authenticate", "POST /register",
		"GET /healthz", "GET /readyz", "GET /status", "POST /reload",
	} {
		assert.True(t, names[want], "route %s not registered", want)
	}
}

func TestBuiltinGuards(t *testing.T) {
	d := deps.Deps{
		Logger:               logger.Nop(),
		Registry:             domains.New(),
		AllowedHosts:         []string{"gate.example.com"},
		AdminAllowedCIDRS:    []string{"10.0.0.0/8"},
		RegisterAllowedCIDRS: []string{"192.168.0.0/16"},
	}
	r := chi.NewRouter()
	RegisterAll(r, d)

	tests := []struct {
		name   string
		method string
		path   string
		host   string
		remote string
		want   int
	}{
		{name: "healthz from admin net", method: http.MethodGet, path: "/healthz", host: "gate.example.com", remote: "10.1.1.1:1", want: http.StatusOK},
		{name: "healthz from outside", method: http.MethodGet, path: "/healthz", host: "gate.example.com", remote: "8.8.8.8:1", want: http.StatusForbidden},
		{name: "status wrong host", method: http.MethodGet, path: "/status", host: "other.example.com", remote: "10.1.1.1:1", want: http.StatusForbidden},
		{name: "register from outside", method: http.MethodPost, path: "/register", host: "gate.example.com", remote: "10.1.1.1:1", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Host = tt.host
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
