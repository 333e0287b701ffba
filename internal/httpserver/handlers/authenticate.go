package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/schluessel/internal/gate"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/logger"
)

// Authenticate checks the submitted password and, when granted, renders the
// dashboard from a registry snapshot. The registry lock is released before
// rendering starts.
func Authenticate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, d.MaxBodyBytes)
		}
		if err := r.ParseForm(); err != nil {
			status := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				status = http.StatusRequestEntityTooLarge
			}
			d.Logger.Debug("malformed authentication request", logger.Error(err))
			http.Error(w, http.StatusText(status), status)
			return
		}

		if _, ok := r.PostForm["password"]; !ok {
			d.Logger.Debug("authentication request without password field")
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if d.Gate.Authenticate(r.PostForm.Get("password")) != gate.Granted {
			d.Logger.Info("authentication denied",
				logger.String("remote_ip", r.RemoteAddr))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		snap := d.Registry.Snapshot()
		page, err := d.Renderer.Dashboard(snap, d.SharedSecret)
		if err != nil {
			d.Logger.Error("failed to render dashboard", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		d.Logger.Info("authentication granted",
			logger.String("remote_ip", r.RemoteAddr),
			logger.Int("domains", len(snap)))
		writeHTML(w, d, page)
	}
}
