package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/notify"
)

type domainStatus struct {
	Domain   string `json:"domain"`
	Services int    `json:"services"`
}

type seedStatus struct {
	Enabled    bool   `json:"enabled"`
	LastReload string `json:"last_reload,omitempty"`
	Domains    int    `json:"domains"`
}

type statusResponse struct {
	Domains []domainStatus `json:"domains"`
	Events  notify.Stats   `json:"events"`
	Seed    seedStatus     `json:"seed"`
}

// Status lists registered domains with their service counts. URLs, names and
// the shared secret are left out: this endpoint sits outside the gate.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := d.Registry.Snapshot()

		resp := statusResponse{Domains: make([]domainStatus, 0, len(snap))}
		for _, domain := range snap.Domains() {
			resp.Domains = append(resp.Domains, domainStatus{
				Domain:   domain,
				Services: len(snap[domain]),
			})
		}

		if d.EventStats != nil {
			resp.Events = d.EventStats.Stats()
		}

		if d.Seed != nil {
			resp.Seed.Enabled = true
			last, count := d.Seed.LastReload()
			resp.Seed.Domains = count
			if !last.IsZero() {
				resp.Seed.LastReload = last.Format("2006-01-02 15:04:05")
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
