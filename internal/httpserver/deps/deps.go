package deps

import (
	"time"

	"github.com/MrSnakeDoc/schluessel/internal/gate"
	"github.com/MrSnakeDoc/schluessel/internal/logger"
	"github.com/MrSnakeDoc/schluessel/internal/notify"
	"github.com/MrSnakeDoc/schluessel/internal/registry"
	"github.com/MrSnakeDoc/schluessel/internal/render"
)

// StatsReporter exposes registration event counters.
type StatsReporter interface {
	Stats() notify.Stats
}

// SeedStatus reports the last application of the seed file.
type SeedStatus interface {
	LastReload() (time.Time, int)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time   // for testing, defaults to time.Now
	Registry     *registry.Registry // shared domain -> services map
	Gate         *gate.Gate         // password check
	Renderer     *render.Renderer   // sign-in page and dashboard
	SharedSecret string             // embedded in every delegation form
	Publisher    notify.Publisher   // registration events (notify.Nop when disabled)
	EventStats   StatsReporter      // counters for the status endpoint (may be nil)
	Seed         SeedStatus         // nil when no seed file is configured
	MaxBodyBytes int64              // request body cap for form and JSON bodies

	AllowedHosts         []string      // Host headers allowed to access the server
	RegisterAllowedCIDRS []string      // who may call /register (empty = anyone)
	AdminAllowedCIDRS    []string      // who may call health/status/reload endpoints
	TrustProxy           bool          // true if running behind a trusted reverse proxy
	AuthRateLimit        bool          // throttle /authenticate per client IP
	AuthBurst            int           // token bucket capacity
	AuthRefillPerMinute  int           // tokens restored per minute
	ReloadTrigger        chan struct{} // manual seed reload (nil if seeding is disabled)
}
