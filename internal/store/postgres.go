// Package store provides storage backends for CareWatch reminders.
//
// This file implements the PostgreSQL-backed reminder store, used when
// several observers share a networked database instead of per-device files.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "embed"

	"github.com/BTreeMap/CareWatch/internal/memory"
	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists reminders in PostgreSQL.
type PostgresStore struct {
	db       *sql.DB
	recorder memory.Recorder
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db, recorder: cfg.Recorder}, nil
}

// CreateReminder inserts a new pending reminder and returns the stored row.
func (s *PostgresStore) CreateReminder(ctx context.Context, p CreateParams) (models.Reminder, error) {
	if err := p.Validate(); err != nil {
		return models.Reminder{}, err
	}
	severity := normalizeSeverity(p.Severity)

	var due interface{}
	if p.DueTime != nil {
		due = p.DueTime.UTC()
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reminders (user_id, content, severity, due_time, repeat_rule, status, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.UserID, p.Content, string(severity), due, nilIfEmpty(p.RepeatRule),
		string(models.StatusPending), joinTags(p.Tags), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore.CreateReminder: insert failed", "error", err, "user_id", p.UserID)
		return models.Reminder{}, fmt.Errorf("failed to insert reminder: %w", err)
	}

	reminder, err := s.getByID(ctx, id)
	if err != nil {
		return models.Reminder{}, err
	}
	slog.Debug("PostgresStore.CreateReminder: succeeded", "id", id, "user_id", p.UserID)
	recordLifecycle(ctx, s.recorder, reminder.UserID, reminder.ID, "created", reminder.Content)
	return reminder, nil
}

// ListReminders returns reminders matching the filter, ordered by due time
// when present, otherwise creation time.
func (s *PostgresStore) ListReminders(ctx context.Context, f ListFilter) ([]models.Reminder, error) {
	query := `SELECT id, user_id, content, severity, due_time, repeat_rule, status, tags, created_at
		FROM reminders WHERE 1=1`
	var params []interface{}
	if f.Status != "" {
		params = append(params, string(f.Status))
		query += " AND status = $" + strconv.Itoa(len(params))
	}
	if f.UserID != "" {
		params = append(params, f.UserID)
		query += " AND user_id = $" + strconv.Itoa(len(params))
	}
	query += " ORDER BY COALESCE(due_time, created_at)"

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		slog.Error("PostgresStore.ListReminders: query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()
	return collectPostgresReminders(rows)
}

// UpdateStatus overwrites the status of a reminder, last-write-wins.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status models.ReminderStatus, note string) (models.Reminder, error) {
	if !models.IsValidStatus(status) {
		return models.Reminder{}, fmt.Errorf("%w: %s", models.ErrInvalidStatus, status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		slog.Error("PostgresStore.UpdateStatus: update failed", "error", err, "id", id)
		return models.Reminder{}, fmt.Errorf("failed to update reminder %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Reminder{}, fmt.Errorf("failed to check update of reminder %d: %w", id, err)
	}
	if affected == 0 {
		return models.Reminder{}, fmt.Errorf("reminder %d: %w", id, models.ErrReminderNotFound)
	}

	reminder, err := s.getByID(ctx, id)
	if err != nil {
		return models.Reminder{}, err
	}
	slog.Debug("PostgresStore.UpdateStatus: succeeded", "id", id, "status", status)
	recordLifecycle(ctx, s.recorder, reminder.UserID, id, string(status), note)
	return reminder, nil
}

// GetRemindersByIDs fetches a batch of reminders. Empty input yields an empty
// result.
func (s *PostgresStore) GetRemindersByIDs(ctx context.Context, ids []int64) ([]models.Reminder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, user_id, content, severity, due_time, repeat_rule, status, tags, created_at
		FROM reminders WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		slog.Error("PostgresStore.GetRemindersByIDs: query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders by ids: %w", err)
	}
	defer rows.Close()

	reminders, err := collectPostgresReminders(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Reminder, len(reminders))
	for _, r := range reminders {
		byID[r.ID] = r
	}
	ordered := make([]models.Reminder, 0, len(reminders))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

// TriggerDue transitions every pending reminder whose due time has passed to
// triggered and returns the transitioned set.
func (s *PostgresStore) TriggerDue(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, severity, due_time, repeat_rule, status, tags, created_at
		FROM reminders
		WHERE status = $1 AND due_time IS NOT NULL AND due_time <= $2`,
		string(models.StatusPending), now.UTC(),
	)
	if err != nil {
		slog.Error("PostgresStore.TriggerDue: query failed", "error", err)
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	due, err := collectPostgresReminders(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	triggered := make([]models.Reminder, 0, len(due))
	for _, r := range due {
		updated, err := s.UpdateStatus(ctx, r.ID, models.StatusTriggered, "")
		if err != nil {
			slog.Error("PostgresStore.TriggerDue: transition failed", "error", err, "id", r.ID)
			return triggered, err
		}
		triggered = append(triggered, updated)
	}
	if len(triggered) > 0 {
		slog.Info("PostgresStore.TriggerDue: reminders triggered", "count", len(triggered))
	}
	return triggered, nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) getByID(ctx context.Context, id int64) (models.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, severity, due_time, repeat_rule, status, tags, created_at
		FROM reminders WHERE id = $1`, id)
	reminder, err := scanPostgresReminder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reminder{}, fmt.Errorf("reminder %d: %w", id, models.ErrReminderNotFound)
	}
	return reminder, err
}

// scanPostgresReminder scans one row; lib/pq yields time.Time for the
// TIMESTAMPTZ columns.
func scanPostgresReminder(scan func(dest ...interface{}) error) (models.Reminder, error) {
	var r models.Reminder
	var severity, status string
	var repeatRule, tags sql.NullString
	var dueTime sql.NullTime
	if err := scan(&r.ID, &r.UserID, &r.Content, &severity, &dueTime, &repeatRule, &status, &tags, &r.CreatedAt); err != nil {
		return r, err
	}
	r.Severity = models.Severity(severity)
	r.Status = models.ReminderStatus(status)
	r.RepeatRule = repeatRule.String
	r.Tags = splitTags(tags.String)
	if dueTime.Valid {
		t := dueTime.Time
		r.DueTime = &t
	}
	return r, nil
}

func collectPostgresReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var reminders []models.Reminder
	for rows.Next() {
		r, err := scanPostgresReminder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	return reminders, nil
}
