// Package store provides storage backends for CareWatch reminders.
//
// The Store interface is the storage port consumed by the routing engine and
// the synchronizer; SQLite and PostgreSQL backends implement it with the same
// schema, and an in-memory backend backs tests. Every mutating operation
// records a lifecycle event to the injected memory recorder, best-effort.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/CareWatch/internal/memory"
	"github.com/BTreeMap/CareWatch/internal/models"
)

// CreateParams carries the caller-supplied fields for a new reminder.
// Severity defaults to medium when empty; status is always pending and
// created_at is assigned by the store.
type CreateParams struct {
	UserID     string
	Content    string
	Severity   models.Severity
	DueTime    *time.Time
	RepeatRule string
	Tags       []string
}

// Validate checks the create parameters against the schema contract.
func (p *CreateParams) Validate() error {
	if p.Content == "" {
		return models.ErrEmptyContent
	}
	if p.UserID == "" {
		return models.ErrEmptyUserID
	}
	if p.Severity != "" && !models.IsValidSeverity(p.Severity) {
		return models.ErrInvalidSeverity
	}
	return nil
}

// ListFilter narrows a reminder listing. Zero values mean no filtering.
type ListFilter struct {
	Status models.ReminderStatus
	UserID string
}

// Store is the storage port for reminder records.
//
// Status updates are last-write-wins: UpdateStatus overwrites unconditionally
// and a remote event may move a reminder back to an earlier state. TriggerDue
// is idempotent by construction: it only selects pending reminders, so a
// repeated sweep with the same clock reading returns an empty set.
type Store interface {
	// CreateReminder inserts a new pending reminder and returns it with its
	// assigned id.
	CreateReminder(ctx context.Context, p CreateParams) (models.Reminder, error)

	// ListReminders returns reminders matching the filter, ordered by due
	// time when present, otherwise creation time, ascending.
	ListReminders(ctx context.Context, f ListFilter) ([]models.Reminder, error)

	// UpdateStatus overwrites the status of a reminder. It returns
	// models.ErrReminderNotFound if the id does not exist and
	// models.ErrInvalidStatus for an unknown status value.
	UpdateStatus(ctx context.Context, id int64, status models.ReminderStatus, note string) (models.Reminder, error)

	// GetRemindersByIDs fetches the given reminders; an empty input yields an
	// empty result without error.
	GetRemindersByIDs(ctx context.Context, ids []int64) ([]models.Reminder, error)

	// TriggerDue transitions every pending reminder whose due time has passed
	// to triggered and returns the transitioned set.
	TriggerDue(ctx context.Context, now time.Time) ([]models.Reminder, error)

	// Close releases the underlying storage resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN      string
	Recorder memory.Recorder
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRecorder sets the memory recorder that receives reminder lifecycle
// events.
func WithRecorder(r memory.Recorder) Option {
	return func(o *Opts) { o.Recorder = r }
}

// recordLifecycle forwards a reminder transition to the memory recorder.
// Failures are logged and swallowed: memory is advisory, the store is
// authoritative.
func recordLifecycle(ctx context.Context, rec memory.Recorder, userID string, reminderID int64, status, note string) {
	if rec == nil {
		return
	}
	if err := rec.LogReminderEvent(ctx, userID, reminderID, status, note); err != nil {
		slog.Warn("store: lifecycle record failed", "error", err, "reminder_id", reminderID, "status", status)
	}
}
