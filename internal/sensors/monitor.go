// Package sensors provides the background vitals listener.
//
// The monitor subscribes to the wearable's sensor topic and keeps the latest
// readings. It owns its own network loop with an explicit start/stop
// lifecycle; consumers read an immutable copy through Snapshot and never
// touch the listener's internal state.
package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/CareWatch/internal/models"
)

// DefaultSensorTopic carries wearable readings.
const DefaultSensorTopic = "carewatch.health.monitor"

// DefaultTimeout bounds broker operations.
const DefaultTimeout = 3 * time.Second

// Opts holds configuration options for the monitor.
type Opts struct {
	Addr    string
	Topic   string
	Timeout time.Duration
}

// Option defines a configuration option for the monitor.
type Option func(*Opts)

// WithAddr sets the broker address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTopic overrides the sensor topic.
func WithTopic(topic string) Option {
	return func(o *Opts) { o.Topic = topic }
}

// WithTimeout overrides the broker timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// sensorMessage is the wire format emitted by the wearable bridge.
type sensorMessage struct {
	DeviceID string `json:"device_id"`
	Metrics  struct {
		HeartRate *float64 `json:"heart_rate"`
		Steps     *int     `json:"steps"`
		Sleep     *float64 `json:"sleep"`
	} `json:"metrics"`
}

// Monitor listens for vitals on the sensor topic.
type Monitor struct {
	addr    string
	topic   string
	timeout time.Duration

	mu     sync.RWMutex
	vitals models.Vitals

	rdb    *redis.Client
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a vitals monitor.
func NewMonitor(opts ...Option) *Monitor {
	cfg := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("REDIS_ADDR")
	}
	if cfg.Topic == "" {
		cfg.Topic = os.Getenv("SENSOR_TOPIC")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultSensorTopic
	}
	return &Monitor{addr: cfg.Addr, topic: cfg.Topic, timeout: cfg.Timeout}
}

// Start connects and launches the background listener.
func (m *Monitor) Start(ctx context.Context) error {
	if m.addr == "" {
		return fmt.Errorf("no broker address configured")
	}
	rdb := redis.NewClient(&redis.Options{Addr: m.addr, DialTimeout: m.timeout})
	pingCtx, cancelPing := context.WithTimeout(ctx, m.timeout)
	defer cancelPing()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("sensor monitor connect failed: %w", err)
	}
	m.rdb = rdb

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	sub := m.rdb.Subscribe(loopCtx, m.topic)
	if _, err := sub.Receive(loopCtx); err != nil {
		cancel()
		_ = sub.Close()
		_ = m.rdb.Close()
		return fmt.Errorf("subscribe to %s failed: %w", m.topic, err)
	}
	slog.Info("Monitor.Start: listening for vitals", "topic", m.topic)

	go func() {
		defer close(m.done)
		ch := sub.Channel()
		for {
			select {
			case <-loopCtx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					_ = sub.Close()
					return
				}
				m.handleMessage([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

// Stop terminates the listener and closes the connection.
func (m *Monitor) Stop() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	if m.rdb != nil {
		return m.rdb.Close()
	}
	return nil
}

// handleMessage merges one sensor reading into the latest vitals. Fields
// absent from the message keep their previous value.
func (m *Monitor) handleMessage(payload []byte) {
	var msg sensorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		slog.Warn("Monitor.handleMessage: discarding malformed reading", "error", err)
		return
	}
	m.mu.Lock()
	if msg.Metrics.HeartRate != nil {
		m.vitals.HeartRate = msg.Metrics.HeartRate
	}
	if msg.Metrics.Steps != nil {
		m.vitals.Steps = msg.Metrics.Steps
	}
	if msg.Metrics.Sleep != nil {
		m.vitals.Sleep = msg.Metrics.Sleep
	}
	m.mu.Unlock()
	slog.Debug("Monitor.handleMessage: reading merged", "device_id", msg.DeviceID)
}

// Snapshot returns an immutable copy of the latest vitals.
func (m *Monitor) Snapshot() models.Vitals {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out models.Vitals
	if m.vitals.HeartRate != nil {
		hr := *m.vitals.HeartRate
		out.HeartRate = &hr
	}
	if m.vitals.Steps != nil {
		steps := *m.vitals.Steps
		out.Steps = &steps
	}
	if m.vitals.Sleep != nil {
		sleep := *m.vitals.Sleep
		out.Sleep = &sleep
	}
	return out
}
