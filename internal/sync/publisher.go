package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/CareWatch/internal/models"
)

// redisPublisher is the minimal broker surface used by the publisher.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher broadcasts reminder mutations on the shared channel.
//
// If the broker is unreachable at construction the publisher marks itself
// unavailable and every Publish call becomes a silent no-op; local CRUD
// results are never affected by channel health.
type Publisher struct {
	rdb       redisPublisher
	topic     string
	source    string
	timeout   time.Duration
	available bool
	clock     func() time.Time
}

// NewPublisher connects to the broker and returns a publisher. Connection
// failure is not an error: the publisher comes back in local-only mode.
func NewPublisher(opts ...Option) *Publisher {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.resolve()

	p := &Publisher{
		topic:   cfg.Topic,
		source:  cfg.Source,
		timeout: cfg.Timeout,
		clock:   time.Now,
	}
	if cfg.Addr == "" {
		slog.Warn("Publisher: no broker address configured, running local-only")
		return p
	}
	rdb, err := dial(cfg.Addr, cfg.Timeout)
	if err != nil {
		slog.Warn("Publisher: broker unreachable, running local-only", "error", err, "addr", cfg.Addr)
		return p
	}
	p.rdb = rdb
	p.available = true
	slog.Info("Publisher: connected", "topic", p.topic, "source", p.source)
	return p
}

// Available reports whether the publisher has a live broker connection.
func (p *Publisher) Available() bool {
	return p.available
}

// Source returns the origin identity stamped on outbound events.
func (p *Publisher) Source() string {
	return p.source
}

// Publish broadcasts one reminder mutation. Best-effort: failures are logged
// and swallowed.
func (p *Publisher) Publish(ctx context.Context, reminder models.Reminder, event models.SyncEventType) {
	if !p.available {
		return
	}
	payload := models.SyncEvent{
		Event:       event,
		Reminder:    reminder.Payload(),
		PublishedAt: p.clock().UTC(),
		Source:      p.source,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Publisher.Publish: failed to encode sync event", "error", err, "id", reminder.ID)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.topic, data).Err(); err != nil {
		slog.Error("Publisher.Publish: broadcast failed", "error", err, "id", reminder.ID, "event", event)
		return
	}
	slog.Debug("Publisher.Publish: broadcast sent", "id", reminder.ID, "event", event, "topic", p.topic)
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	if closer, ok := p.rdb.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
