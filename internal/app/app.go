package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/schluessel/internal/config"
	"github.com/MrSnakeDoc/schluessel/internal/gate"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver"
	"github.com/MrSnakeDoc/schluessel/internal/httpserver/deps"
	"github.com/MrSnakeDoc/schluessel/internal/logger"
	"github.com/MrSnakeDoc/schluessel/internal/notify"
	"github.com/MrSnakeDoc/schluessel/internal/redis"
	"github.com/MrSnakeDoc/schluessel/internal/registry"
	"github.com/MrSnakeDoc/schluessel/internal/render"
	"github.com/MrSnakeDoc/schluessel/internal/scheduler"
	"github.com/MrSnakeDoc/schluessel/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	registry    *registry.Registry
	redisClient *goredis.Client
	publisher   *notify.RedisPublisher
	reloader    *scheduler.SeedReloader
	version     string
}

// New wires the application from the environment.
func New() (*App, error) {
	return NewWithConfig(config.Load())
}

// NewWithConfig wires the application from cfg. Nothing listens until Run.
func NewWithConfig(cfg *config.Config) (*App, error) {
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	reg := registry.New()

	// Registration events are optional: an unreachable Redis degrades to no events.
	var (
		redisClient *goredis.Client
		publisher   *notify.RedisPublisher
		pub         notify.Publisher    = notify.Nop{}
		stats       deps.StatsReporter = notify.Nop{}
	)
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Warn("redis unavailable, registration events disabled", logger.Error(err))
			redisClient = nil
		} else {
			loggerClient.Info("Redis initialized successfully",
				logger.String("channel", cfg.RedisChannel))
			publisher = notify.NewRedisPublisher(redisClient, cfg.RedisChannel, loggerClient)
			pub = publisher
			stats = publisher
		}
	} else {
		loggerClient.Info("redis not configured, registration events disabled")
	}

	// Seed file is optional too.
	var (
		reloader      *scheduler.SeedReloader
		reloadTrigger chan struct{}
		seedStatus    deps.SeedStatus
	)
	if cfg.SeedFile != "" {
		loggerClient.Info("seed file configured, initializing seed reloader",
			logger.String("file", cfg.SeedFile))
		reloadTrigger = make(chan struct{}, 1)
		reloader = scheduler.NewSeedReloader(
			cfg.SeedFile,
			reg,
			pub,
			loggerClient,
			cfg.ReloadInterval,
			reloadTrigger,
		)
		seedStatus = reloader
	}

	ver := version.Resolve()

	d := deps.Deps{
		Logger:               loggerClient,
		StartTime:            time.Now(),
		Version:              ver,
		Commit:               version.Commit,
		BuildDate:            version.BuildDate,
		GoVersion:            version.GoVersion,
		TimeNow:              time.Now,
		Registry:             reg,
		Gate:                 gate.New(cfg.Password),
		Renderer:             renderer,
		SharedSecret:         cfg.SharedSecret,
		Publisher:            pub,
		EventStats:           stats,
		Seed:                 seedStatus,
		MaxBodyBytes:         cfg.MaxBodyBytes,
		AllowedHosts:         cfg.AllowedHosts,
		RegisterAllowedCIDRS: cfg.RegisterAllowedCIDRS,
		AdminAllowedCIDRS:    cfg.AdminAllowedCIDRS,
		TrustProxy:           cfg.TrustProxy,
		AuthRateLimit:        cfg.AuthRateLimit,
		AuthBurst:            cfg.AuthBurst,
		AuthRefillPerMinute:  cfg.AuthRefillPerMinute,
		ReloadTrigger:        reloadTrigger,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		registry:    reg,
		redisClient: redisClient,
		publisher:   publisher,
		reloader:    reloader,
		version:     ver,
	}, nil
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	a.logger.Infof("🔑 Starting Schluessel v%s", a.version)
	a.logger.Infof("Schluessel %s (commit=%s, built=%s, go=%s)",
		a.version, version.Commit, version.BuildDate, version.GoVersion)

	// Bind before anything else so a taken port stops startup immediately.
	if err := a.server.Listen(); err != nil {
		a.closeRedis()
		return fmt.Errorf("failed to bind: %w", err)
	}
	a.logger.Infof("Serving at %s", a.server.Addr())

	if a.publisher != nil {
		// Detached from the signal so queued events drain during shutdown.
		if err := a.publisher.Start(context.WithoutCancel(ctx)); err != nil {
			a.releaseListener()
			a.closeRedis()
			return fmt.Errorf("failed to start event publisher: %w", err)
		}
		a.logger.Info("registration event publisher started",
			logger.String("channel", a.cfg.RedisChannel))
	}

	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			a.releaseListener()
			a.stopPublisher()
			a.closeRedis()
			return fmt.Errorf("failed to start seed reloader: %w", err)
		}
		a.logger.Info("seed reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if a.reloader != nil {
		a.reloader.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Publisher drains after the server stops accepting registrations.
	a.stopPublisher()
	a.closeRedis()

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ Schluessel stopped cleanly")
	return nil
}

// releaseListener frees the bound port when startup aborts before serving.
func (a *App) releaseListener() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Warn("failed to release listener", logger.Error(err))
	}
}

func (a *App) stopPublisher() {
	if a.publisher != nil {
		a.publisher.Stop()
	}
}

func (a *App) closeRedis() {
	if a.redisClient == nil {
		return
	}
	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}
}
