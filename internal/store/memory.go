package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
)

// InMemoryStore is a mutex-guarded reminder store. It backs tests and can
// serve as a throwaway backend when no DSN is configured.
type InMemoryStore struct {
	mu        sync.Mutex
	reminders map[int64]models.Reminder
	nextID    int64
	recorder  memoryRecorder
}

// memoryRecorder is the subset of memory.Recorder the store needs; declared
// locally so the in-memory backend stays dependency-free for tests.
type memoryRecorder interface {
	LogReminderEvent(ctx context.Context, userID string, reminderID int64, status string, note string) error
}

// NewInMemoryStore creates an empty in-memory reminder store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reminders: make(map[int64]models.Reminder), nextID: 1}
}

// SetRecorder attaches a lifecycle recorder.
func (s *InMemoryStore) SetRecorder(r memoryRecorder) {
	s.recorder = r
}

// CreateReminder inserts a new pending reminder.
func (s *InMemoryStore) CreateReminder(ctx context.Context, p CreateParams) (models.Reminder, error) {
	if err := p.Validate(); err != nil {
		return models.Reminder{}, err
	}
	s.mu.Lock()
	r := models.Reminder{
		ID:         s.nextID,
		UserID:     p.UserID,
		Content:    p.Content,
		Severity:   normalizeSeverity(p.Severity),
		DueTime:    copyTime(p.DueTime),
		RepeatRule: p.RepeatRule,
		Status:     models.StatusPending,
		Tags:       append([]string(nil), p.Tags...),
		CreatedAt:  time.Now().UTC(),
	}
	s.nextID++
	s.reminders[r.ID] = r
	s.mu.Unlock()

	s.record(ctx, r.UserID, r.ID, "created", r.Content)
	return r, nil
}

// ListReminders returns matching reminders ordered by due time, falling back
// to creation time.
func (s *InMemoryStore) ListReminders(ctx context.Context, f ListFilter) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reminder
	for _, r := range s.reminders {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return orderKey(out[i]).Before(orderKey(out[j]))
	})
	return out, nil
}

// UpdateStatus overwrites the status of a reminder, last-write-wins.
func (s *InMemoryStore) UpdateStatus(ctx context.Context, id int64, status models.ReminderStatus, note string) (models.Reminder, error) {
	if !models.IsValidStatus(status) {
		return models.Reminder{}, fmt.Errorf("%w: %s", models.ErrInvalidStatus, status)
	}
	s.mu.Lock()
	r, ok := s.reminders[id]
	if !ok {
		s.mu.Unlock()
		return models.Reminder{}, fmt.Errorf("reminder %d: %w", id, models.ErrReminderNotFound)
	}
	r.Status = status
	s.reminders[id] = r
	s.mu.Unlock()

	s.record(ctx, r.UserID, id, string(status), note)
	return r, nil
}

// GetRemindersByIDs fetches a batch of reminders in the caller's id order.
func (s *InMemoryStore) GetRemindersByIDs(ctx context.Context, ids []int64) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Reminder, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.reminders[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// TriggerDue transitions pending reminders past their due time to triggered.
func (s *InMemoryStore) TriggerDue(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	s.mu.Lock()
	var due []models.Reminder
	for _, r := range s.reminders {
		if r.Status == models.StatusPending && r.DueTime != nil && !r.DueTime.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	for i, r := range due {
		r.Status = models.StatusTriggered
		s.reminders[r.ID] = r
		due[i] = r
	}
	s.mu.Unlock()

	for _, r := range due {
		s.record(ctx, r.UserID, r.ID, string(models.StatusTriggered), "")
	}
	return due, nil
}

// Close is a no-op for the in-memory backend.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) record(ctx context.Context, userID string, id int64, status, note string) {
	if s.recorder == nil {
		return
	}
	// best-effort, matching the persistent backends
	_ = s.recorder.LogReminderEvent(ctx, userID, id, status, note)
}

func orderKey(r models.Reminder) time.Time {
	if r.DueTime != nil {
		return *r.DueTime
	}
	return r.CreatedAt
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
