package sync

import (
	"context"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/store"
)

// PublishingStore decorates a reminder store so every successful local
// mutation is broadcast on the shared channel. Reads pass straight through.
//
// The synchronizer must bypass this decorator and hold the inner store
// directly; that is what suppresses re-publication of applied remote events.
type PublishingStore struct {
	store.Store
	publisher *Publisher
}

// NewPublishingStore wraps the inner store with the given publisher.
func NewPublishingStore(inner store.Store, publisher *Publisher) *PublishingStore {
	return &PublishingStore{Store: inner, publisher: publisher}
}

// CreateReminder inserts the reminder locally, then broadcasts it.
func (s *PublishingStore) CreateReminder(ctx context.Context, p store.CreateParams) (models.Reminder, error) {
	reminder, err := s.Store.CreateReminder(ctx, p)
	if err != nil {
		return models.Reminder{}, err
	}
	s.publisher.Publish(ctx, reminder, models.SyncEventCreated)
	return reminder, nil
}

// UpdateStatus updates the reminder locally, then broadcasts the new status.
func (s *PublishingStore) UpdateStatus(ctx context.Context, id int64, status models.ReminderStatus, note string) (models.Reminder, error) {
	reminder, err := s.Store.UpdateStatus(ctx, id, status, note)
	if err != nil {
		return models.Reminder{}, err
	}
	s.publisher.Publish(ctx, reminder, models.SyncEventType(status))
	return reminder, nil
}

// TriggerDue sweeps locally, then broadcasts each transitioned reminder so
// the other devices converge on the sweep result.
func (s *PublishingStore) TriggerDue(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	triggered, err := s.Store.TriggerDue(ctx, now)
	for _, r := range triggered {
		s.publisher.Publish(ctx, r, models.SyncEventTriggered)
	}
	return triggered, err
}
