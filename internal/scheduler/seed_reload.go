package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/schluessel/internal/logger"
	"github.com/MrSnakeDoc/schluessel/internal/notify"
	"github.com/MrSnakeDoc/schluessel/internal/registry"
	"github.com/MrSnakeDoc/schluessel/internal/sources/seed"
)

// SeedReloader applies the static registrations of the seed file to the
// registry, at startup, periodically, and on demand.
//
// Entries go through the same overwrite path as POST /register, so a lock that
// registers itself later replaces the seeded list, and the next reload puts the
// seeded list back. Domains dropped from the file are left registered: the
// registry has no unregister operation.
type SeedReloader struct {
	loader        *seed.Loader
	registry      *registry.Registry
	publisher     notify.Publisher
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
	wg            sync.WaitGroup

	mu         sync.Mutex
	lastReload time.Time
	lastCount  int
}

// NewSeedReloader creates a new seed reloader
func NewSeedReloader(
	seedFile string,
	reg *registry.Registry,
	pub notify.Publisher,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SeedReloader {
	if pub == nil {
		pub = notify.Nop{}
	}
	return &SeedReloader{
		loader:        seed.NewLoader(seedFile),
		registry:      reg,
		publisher:     pub,
		logger:        log.With(logger.Component("seed")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start applies the file once and then keeps it applied in the background.
// A failure of the first load is returned: a configured but broken seed file
// should stop startup.
func (sr *SeedReloader) Start(ctx context.Context) error {
	if err := sr.Reload(ctx); err != nil {
		return fmt.Errorf("initial seed load failed: %w", err)
	}

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	if sr.interval > 0 {
		ticker = time.NewTicker(sr.interval)
		tick = ticker.C
	}

	sr.wg.Add(1)
	go func() {
		defer sr.wg.Done()
		if ticker != nil {
			defer ticker.Stop()
		}
		sr.loop(ctx, tick)
	}()

	return nil
}

func (sr *SeedReloader) loop(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-tick:
			if err := sr.Reload(ctx); err != nil {
				sr.logger.Error("failed to reload seed registrations", logger.Error(err))
			}
		case <-sr.manualTrigger:
			sr.logger.Info("manual seed reload triggered")
			if err := sr.Reload(ctx); err != nil {
				sr.logger.Error("failed to reload seed registrations", logger.Error(err))
			}
		case <-sr.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the reloader and waits for the background loop to exit.
func (sr *SeedReloader) Stop() {
	close(sr.stopCh)
	sr.wg.Wait()
}

// Reload reads the seed file and registers every entry.
func (sr *SeedReloader) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := sr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}

	regs, err := file.Registrations()
	if err != nil {
		return fmt.Errorf("invalid seed file %s: %w", sr.loader.Path(), err)
	}

	for _, reg := range regs {
		sr.registry.Register(reg)
		sr.publisher.Publish(reg)
	}

	sr.mu.Lock()
	sr.lastReload = time.Now()
	sr.lastCount = len(regs)
	sr.mu.Unlock()

	sr.logger.Info("seed registrations applied",
		logger.String("file", sr.loader.Path()),
		logger.Int("domains", len(regs)))

	return nil
}

// LastReload returns when the file was last applied and how many domains it held.
func (sr *SeedReloader) LastReload() (time.Time, int) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.lastReload, sr.lastCount
}
