package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/logger"
	"github.com/MrSnakeDoc/schluessel/internal/registry"
)

// Register stores the announced services for a domain, replacing any earlier
// list, and echoes the payload. Anything that does not decode is rejected
// before the registry is touched.
func Register(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, d.MaxBodyBytes)
		}

		reg, err := registry.DecodeRegistration(r.Body)
		if err != nil {
			status := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				status = http.StatusRequestEntityTooLarge
			}
			d.Logger.Info("rejected registration",
				logger.String("remote_ip", r.RemoteAddr),
				logger.Error(err))
			http.Error(w, err.Error(), status)
			return
		}

		echo := d.Registry.Register(reg)
		d.Publisher.Publish(echo)

		d.Logger.Info("domain registered",
			logger.String("domain", echo.Domain),
			logger.Int("services", len(echo.Services)),
			logger.String("remote_ip", r.RemoteAddr))

		if echo.Services == nil {
			echo.Services = []registry.Service{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(echo); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
