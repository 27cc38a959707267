package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/store"
)

// Synchronizer subscribes to the shared channel and applies remote reminder
// mutations to the local store.
//
// It must be constructed with the plain (non-publishing) store: applying a
// remote event through a publishing store would re-broadcast it and relay
// loops would never terminate. Echo of our own publications is filtered by
// origin identity.
type Synchronizer struct {
	store   store.Store
	rdb     *redis.Client
	addr    string
	topic   string
	source  string
	timeout time.Duration
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSynchronizer creates a synchronizer over the given local store.
func NewSynchronizer(st store.Store, opts ...Option) *Synchronizer {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.resolve()
	return &Synchronizer{
		store:   st,
		addr:    cfg.Addr,
		topic:   cfg.Topic,
		source:  cfg.Source,
		timeout: cfg.Timeout,
	}
}

// Start connects, subscribes to the reminder topic, and launches the
// background listener. It returns an error if the broker is unreachable;
// callers may treat that as non-fatal (local mode).
func (s *Synchronizer) Start(ctx context.Context) error {
	if s.addr == "" {
		return fmt.Errorf("no broker address configured")
	}

	rdb, err := dial(s.addr, s.timeout)
	if err != nil {
		return fmt.Errorf("synchronizer connect failed: %w", err)
	}
	s.rdb = rdb

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	sub := s.rdb.Subscribe(loopCtx, s.topic)
	// confirm the subscription actually started
	if _, err := sub.Receive(loopCtx); err != nil {
		cancel()
		_ = sub.Close()
		_ = s.rdb.Close()
		return fmt.Errorf("subscribe to %s failed: %w", s.topic, err)
	}
	slog.Info("Synchronizer.Start: subscribed", "topic", s.topic, "source", s.source)

	go func() {
		defer close(s.done)
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
				s.handleMessage(loopCtx, []byte(msg.Payload))
			}
		}
	}()
	return nil
}

// Stop terminates the listener loop and closes the broker connection.
func (s *Synchronizer) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}

// handleMessage applies one channel message to the local store.
//
// Processing contract: malformed payloads are discarded with a log line;
// self-originated events are dropped to prevent echo; only status events
// carrying a reminder id are applied; store failures (unknown id, invalid
// status) are logged and the loop continues.
func (s *Synchronizer) handleMessage(ctx context.Context, payload []byte) {
	var event models.SyncEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		slog.Warn("Synchronizer.handleMessage: discarding malformed message", "error", err)
		return
	}

	if event.Source == s.source {
		slog.Debug("Synchronizer.handleMessage: discarding own event", "event", event.Event)
		return
	}

	if !models.IsApplicableSyncEvent(event.Event) || event.Reminder.ID == 0 {
		slog.Debug("Synchronizer.handleMessage: ignoring event", "event", event.Event, "id", event.Reminder.ID)
		return
	}

	status := event.Reminder.Status
	if status == "" {
		status = string(event.Event)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	// applied through the plain store: no re-publication on this path
	if _, err := s.store.UpdateStatus(opCtx, event.Reminder.ID, models.ReminderStatus(status), ""); err != nil {
		slog.Error("Synchronizer.handleMessage: failed to apply remote status",
			"error", err, "id", event.Reminder.ID, "status", status, "source", event.Source)
		return
	}
	slog.Info("Synchronizer.handleMessage: applied remote status",
		"id", event.Reminder.ID, "status", status, "source", event.Source)
}
