// Package sync implements reminder replication over the shared
// publish/subscribe channel.
//
// The Publisher broadcasts every local mutation as a SyncEvent tagged with
// this process's origin identity; the Synchronizer applies remote mutations
// to the local store while discarding self-originated and malformed events.
// Delivery is best-effort: there are no acknowledgements and no retries, and
// an unreachable broker degrades publishing to a silent no-op. The store
// stays authoritative; the network is advisory.
package sync

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/CareWatch/internal/util"
)

// Channel defaults.
const (
	// DefaultReminderTopic carries reminder SyncEvents between devices.
	DefaultReminderTopic = "carewatch.health.reminders"
	// DefaultTimeout bounds each broker operation.
	DefaultTimeout = 3 * time.Second
)

// Opts holds configuration options for the channel components.
type Opts struct {
	Addr    string
	Topic   string
	Source  string
	Timeout time.Duration
}

// Option defines a configuration option for the channel components.
type Option func(*Opts)

// WithAddr sets the broker address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTopic overrides the reminder topic.
func WithTopic(topic string) Option {
	return func(o *Opts) { o.Topic = topic }
}

// WithSource sets the origin identity stamped on outbound events and used to
// discard echoes of our own publications.
func WithSource(source string) Option {
	return func(o *Opts) { o.Source = source }
}

// WithTimeout overrides the per-operation broker timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// resolve applies env fallbacks and defaults.
func (o *Opts) resolve() {
	if o.Addr == "" {
		o.Addr = os.Getenv("REDIS_ADDR")
	}
	if o.Topic == "" {
		o.Topic = os.Getenv("REMINDER_TOPIC")
	}
	if o.Topic == "" {
		o.Topic = DefaultReminderTopic
	}
	if o.Source == "" {
		o.Source = DefaultSourceID()
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
}

// DefaultSourceID resolves this process's origin identity: the
// REMINDER_SOURCE_ID environment variable, the hostname, or a random id as a
// last resort.
func DefaultSourceID() string {
	if id := os.Getenv("REMINDER_SOURCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return util.GenerateSourceID()
}

// dial connects to the broker and verifies it within the timeout.
func dial(addr string, timeout time.Duration) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	slog.Debug("sync.dial: broker reachable", "addr", addr)
	return rdb, nil
}
