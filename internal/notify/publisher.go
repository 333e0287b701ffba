// Package notify announces registrations to interested listeners.
//
// Announcing is fire-and-forget: the request path only enqueues, and a single
// worker talks to the broker. Nothing is stored; a listener that is not
// subscribed when an event is sent never sees it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/schluessel/internal/logger"
	"github.com/MrSnakeDoc/schluessel/internal/registry"
)

const (
	// DefaultChannel is the Pub/Sub channel registration events go to.
	DefaultChannel = "schluessel:registrations"
	// DefaultQueueSize bounds events waiting for the worker.
	DefaultQueueSize = 256
	// DefaultPublishTimeout bounds a single PUBLISH round trip.
	DefaultPublishTimeout = 2 * time.Second
)

// Event is the message body published for each registration.
type Event struct {
	Domain       string             `json:"domain"`
	Services     []registry.Service `json:"services"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// Publisher announces a registration. Implementations must not block.
type Publisher interface {
	Publish(reg registry.Registration)
}

// Stats is a point-in-time view of a publisher's counters.
type Stats struct {
	Enabled   bool   `json:"enabled"`
	Channel   string `json:"channel,omitempty"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// Nop discards every registration.
type Nop struct{}

func (Nop) Publish(registry.Registration) {}

func (Nop) Stats() Stats { return Stats{} }

// client is the slice of go-redis used here.
type client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher sends registration events to a Redis Pub/Sub channel.
type RedisPublisher struct {
	client  client
	channel string
	timeout time.Duration
	logger  logger.Logger
	now     func() time.Time

	queue  chan Event
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewRedisPublisher creates a publisher; call Start before use.
func NewRedisPublisher(c client, channel string, log logger.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  c,
		channel: channel,
		timeout: DefaultPublishTimeout,
		logger:  log.With(logger.Component("notify")),
		now:     time.Now,
		queue:   make(chan Event, DefaultQueueSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Publish enqueues reg. When the queue is full the event is dropped.
func (p *RedisPublisher) Publish(reg registry.Registration) {
	ev := Event{
		Domain:       reg.Domain,
		Services:     reg.Services,
		RegisteredAt: p.now().UTC(),
	}
	if ev.Services == nil {
		ev.Services = []registry.Service{}
	}

	select {
	case p.queue <- ev:
	default:
		p.dropped.Add(1)
		p.logger.Warn("registration event queue full, dropping event",
			logger.String("domain", reg.Domain))
	}
}

// Start launches the worker. It returns once the worker is running.
func (p *RedisPublisher) Start(ctx context.Context) error {
	go p.run(ctx)
	return nil
}

// Stop asks the worker to flush what is queued and waits for it.
func (p *RedisPublisher) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	<-p.done
}

func (p *RedisPublisher) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case ev := <-p.queue:
			p.send(ctx, ev)
		case <-p.stopCh:
			p.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *RedisPublisher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-p.queue:
			p.send(ctx, ev)
		default:
			return
		}
	}
}

func (p *RedisPublisher) send(ctx context.Context, ev Event) {
	if err := p.publish(ctx, ev); err != nil {
		p.failed.Add(1)
		p.logger.Warn("failed to publish registration event",
			logger.String("domain", ev.Domain),
			logger.String("channel", p.channel),
			logger.Error(err))
		return
	}
	p.published.Add(1)
	p.logger.Debug("registration event published",
		logger.String("domain", ev.Domain),
		logger.String("channel", p.channel))
}

func (p *RedisPublisher) publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return nil
}

// Stats reports the publisher's counters.
func (p *RedisPublisher) Stats() Stats {
	return Stats{
		Enabled:   true,
		Channel:   p.channel,
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}
