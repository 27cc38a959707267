package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

// DefaultOutputTopic carries cleaned route results to downstream presentation.
const DefaultOutputTopic = "carewatch.health.output"

// Output publishes cleaned route payloads on the downstream output topic.
// Like the reminder publisher it degrades to a silent no-op when the broker
// is unreachable.
type Output struct {
	rdb       redisPublisher
	topic     string
	timeout   time.Duration
	available bool
}

// NewOutput connects to the broker for downstream emission. Connection
// failure is not an error.
func NewOutput(opts ...Option) *Output {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("REDIS_ADDR")
	}
	if cfg.Topic == "" {
		cfg.Topic = os.Getenv("LLM_OUTPUT_TOPIC")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultOutputTopic
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	o := &Output{topic: cfg.Topic, timeout: cfg.Timeout}
	if cfg.Addr == "" {
		slog.Warn("Output: no broker address configured, downstream emission disabled")
		return o
	}
	rdb, err := dial(cfg.Addr, cfg.Timeout)
	if err != nil {
		slog.Warn("Output: broker unreachable, downstream emission disabled", "error", err)
		return o
	}
	o.rdb = rdb
	o.available = true
	return o
}

// Publish emits one payload downstream, best-effort.
func (o *Output) Publish(ctx context.Context, payload interface{}) {
	if !o.available {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Output.Publish: failed to encode payload", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.rdb.Publish(ctx, o.topic, data).Err(); err != nil {
		slog.Error("Output.Publish: emission failed", "error", err, "topic", o.topic)
		return
	}
	slog.Debug("Output.Publish: payload emitted", "topic", o.topic)
}

// Close releases the broker connection.
func (o *Output) Close() error {
	if closer, ok := o.rdb.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
