package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/logger"
)

// Index serves the sign-in form.
func Index(d deps.Deps) http.HandlerFunc {
	page := d.Renderer.SignIn()
	return func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, d, page)
	}
}

func writeHTML(w http.ResponseWriter, d deps.Deps, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}
