package version

import (
	"os"
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.1.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version()               // go version
)

// Resolve returns the version announced at startup.
// SCHLUESSEL_VERSION wins over the value injected at link time.
func Resolve() string {
	if v := os.Getenv("SCHLUESSEL_VERSION"); v != "" {
		return v
	}
	return Version
}
