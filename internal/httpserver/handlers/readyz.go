package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Readyz reports whether the gate can serve a complete dashboard. With a seed
// file configured that means the file has been applied at least once.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyzResponse{Ready: true}
		if d.Seed != nil {
			if last, _ := d.Seed.LastReload(); last.IsZero() {
				resp = readyzResponse{Reason: "seed file not applied yet"}
			}
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
