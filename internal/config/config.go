package config

import (
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPHost        string        // ex: "127.0.0.1"
	HTTPPort        string        // ex: "8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline (ex: 5s)
	MaxBodyBytes    int64         // cap on /register and /authenticate bodies

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Password     string // expected password for the gate
	SharedSecret string // forwarded to every downstream service

	SeedFile       string        // optional YAML file of static registrations (empty = disabled)
	ReloadInterval time.Duration // interval to re-apply the seed file (default: 1h)

	AuthRateLimit       bool // per-IP budget of failed /authenticate attempts
	AuthBurst           int  // failed attempts allowed back to back
	AuthRefillPerMinute int  // failed attempts forgiven per minute

	// Redis (optional registration event publisher, empty addr = disabled)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisChannel        string        // Pub/Sub channel for registration events
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts         []string // optional, restrict access to specific Host headers
	RegisterAllowedCIDRS []string // optional, restrict who may call /register (empty = open)
	AdminAllowedCIDRS    []string // optional, restrict health/status/reload endpoints
	TrustProxy           bool     // true => trust X-Forwarded-For headers
}

// Addr returns the bind address built from HTTPHost and HTTPPort.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.HTTPHost, c.HTTPPort)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		HTTPHost:        lookupenv("HTTP_HOST", "127.0.0.1"),
		HTTPPort:        lookupenv("HTTP_PORT", "8080"),
		ShutdownTimeout: mustDuration("SCHLUESSEL_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("SCHLUESSEL_REQUEST_TIMEOUT", 5*time.Second),
		MaxBodyBytes:    int64(getenvInt("SCHLUESSEL_MAX_BODY_BYTES", 1<<20)),

		// Logging
		LogLevel:  getenv("SCHLUESSEL_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SCHLUESSEL_PRETTY_LOG", true),

		// Gate
		Password:     lookupenv("PASSWORD", "password"),
		SharedSecret: lookupenv("SHARED_SECRET", "shared_secret"),

		// Seed registrations
		SeedFile:       getenv("SCHLUESSEL_SEED_FILE", ""),
		ReloadInterval: mustDuration("SCHLUESSEL_RELOAD_INTERVAL", time.Hour),

		// Authentication throttling
		AuthRateLimit:       mustBool("SCHLUESSEL_AUTH_RATE_LIMIT", true),
		AuthBurst:           getenvInt("SCHLUESSEL_AUTH_BURST", 10),
		AuthRefillPerMinute: getenvInt("SCHLUESSEL_AUTH_REFILL_PER_MIN", 30),

		// Redis settings
		RedisAddr:           getenv("SCHLUESSEL_REDIS_ADDR", ""),
		RedisUser:           getenv("SCHLUESSEL_REDIS_USERNAME", ""),
		RedisPassword:       getenv("SCHLUESSEL_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("SCHLUESSEL_REDIS_DB", 0),
		RedisChannel:        getenv("SCHLUESSEL_REDIS_CHANNEL", "schluessel:registrations"),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:         splitAndTrim(getenv("SCHLUESSEL_ALLOWED_HOSTS", "")),
		RegisterAllowedCIDRS: splitAndTrim(getenv("SCHLUESSEL_REGISTER_ALLOWED_CIDRS", "")),
		AdminAllowedCIDRS:    splitAndTrim(getenv("SCHLUESSEL_ADMIN_ALLOWED_CIDRS", "")),
		TrustProxy:           mustBool("SCHLUESSEL_TRUST_PROXY", false),
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	cp.Password = redact(cp.Password)
	cp.SharedSecret = redact(cp.SharedSecret)
	cp.RedisPassword = redact(cp.RedisPassword)
	if cp.RedisUser != "" {
		cp.RedisUser = redact(cp.RedisUser)
	}
	return cp
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}

// helpers

// lookupenv falls back to def only when key is unset; an empty value is kept.
func lookupenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
