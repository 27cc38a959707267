// Package store provides storage backends for CareWatch reminders.
//
// This file implements the SQLite-backed reminder store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/CareWatch/internal/memory"
	"github.com/BTreeMap/CareWatch/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists reminders in a local SQLite database. It is the
// default backend: one file per device, replicated through the sync channel.
type SQLiteStore struct {
	db       *sql.DB
	recorder memory.Recorder
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, recorder: cfg.Recorder}, nil
}

// CreateReminder inserts a new pending reminder and returns the stored row.
func (s *SQLiteStore) CreateReminder(ctx context.Context, p CreateParams) (models.Reminder, error) {
	if err := p.Validate(); err != nil {
		return models.Reminder{}, err
	}
	severity := normalizeSeverity(p.Severity)
	createdAt := formatTime(time.Now())

	var dueStr interface{}
	if p.DueTime != nil {
		dueStr = formatTime(*p.DueTime)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (user_id, content, severity, due_time, repeat_rule, status, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Content, string(severity), dueStr, nilIfEmpty(p.RepeatRule),
		string(models.StatusPending), joinTags(p.Tags), createdAt,
	)
	if err != nil {
		slog.Error("SQLiteStore.CreateReminder: insert failed", "error", err, "user_id", p.UserID)
		return models.Reminder{}, fmt.Errorf("failed to insert reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Reminder{}, fmt.Errorf("failed to read reminder id: %w", err)
	}

	reminder, err := s.getByID(ctx, id)
	if err != nil {
		return models.Reminder{}, err
	}
	slog.Debug("SQLiteStore.CreateReminder: succeeded", "id", id, "user_id", p.UserID)
	recordLifecycle(ctx, s.recorder, reminder.UserID, reminder.ID, "created", reminder.Content)
	return reminder, nil
}

// ListReminders returns reminders matching the filter, ordered by due time
// when present, otherwise creation time.
func (s *SQLiteStore) ListReminders(ctx context.Context, f ListFilter) ([]models.Reminder, error) {
	query := `SELECT id, user_id, content, severity, due_time, repeat_rule, status, tags, created_at
		FROM reminders WHERE 1=1`
	var params []interface{}
	if f.Status != "" {
		query += " AND status = ?"
		params = append(params, string(f.Status))
	}
	if f.UserID != "" {
		query += " AND user_id = ?"
		params = append(params, f.UserID)
	}
	query += " ORDER BY COALESCE(due_time, created_at)"

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		slog.Error("SQLiteStore.ListReminders: query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()
	return collectSQLiteReminders(rows)
}

// UpdateStatus overwrites the status of a reminder, last-write-wins.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status models.ReminderStatus, note string) (models.Reminder, error) {
	if !models.IsValidStatus(status) {
		return models.Reminder{}, fmt.Errorf("%w: %s", models.ErrInvalidStatus, status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		slog.Error("SQLiteStore.UpdateStatus: update failed", "error", err, "id", id)
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
	slog.Debug("SQLiteStore.UpdateStatus: succeeded", "id", id, "status", status)
	recordLifecycle(ctx, s.recorder, reminder.UserID, id, string(status), note)
	return reminder, nil
}

// GetRemindersByIDs fetches a batch of reminders. Empty input yields an empty
// result.
func (s *SQLiteStore) GetRemindersByIDs(ctx context.Context, ids []int64) ([]models.Reminder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, user_id, content, severity, due_time, repeat_rule, status, tags, created_at
		FROM reminders WHERE id IN (?` + repeatPlaceholders(len(ids)-1) + `)`
	params := make([]interface{}, len(ids))
	for i, id := range ids {
		params[i] = id
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		slog.Error("SQLiteStore.GetRemindersByIDs: query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]models.Reminder, len(ids))
	reminders, err := collectSQLiteReminders(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range reminders {
		byID[r.ID] = r
	}
	// preserve the caller's id order
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
func (s *SQLiteStore) TriggerDue(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, severity, due_time, repeat_rule, status, tags, created_at
		FROM reminders
		WHERE status = ? AND due_time IS NOT NULL AND due_time <= ?`,
		string(models.StatusPending), formatTime(now),
	)
	if err != nil {
		slog.Error("SQLiteStore.TriggerDue: query failed", "error", err)
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	due, err := collectSQLiteReminders(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	triggered := make([]models.Reminder, 0, len(due))
	for _, r := range due {
		updated, err := s.UpdateStatus(ctx, r.ID, models.StatusTriggered, "")
		if err != nil {
			slog.Error("SQLiteStore.TriggerDue: transition failed", "error", err, "id", r.ID)
			return triggered, err
		}
		triggered = append(triggered, updated)
	}
	if len(triggered) > 0 {
		slog.Info("SQLiteStore.TriggerDue: reminders triggered", "count", len(triggered))
	}
	return triggered, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) getByID(ctx context.Context, id int64) (models.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, severity, due_time, repeat_rule, status, tags, created_at
		FROM reminders WHERE id = ?`, id)
	reminder, err := scanSQLiteReminder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reminder{}, fmt.Errorf("reminder %d: %w", id, models.ErrReminderNotFound)
	}
	return reminder, err
}

// repeatPlaceholders returns n occurrences of ", ?" for IN clauses.
func repeatPlaceholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

// scanSQLiteReminder scans one row using the given scan function. SQLite
// stores timestamps as RFC3339 text.
func scanSQLiteReminder(scan func(dest ...interface{}) error) (models.Reminder, error) {
	var r models.Reminder
	var severity, status string
	var dueTime, repeatRule, tags sql.NullString
	var createdAt string
	if err := scan(&r.ID, &r.UserID, &r.Content, &severity, &dueTime, &repeatRule, &status, &tags, &createdAt); err != nil {
		return r, err
	}
	r.Severity = models.Severity(severity)
	r.Status = models.ReminderStatus(status)
	r.RepeatRule = repeatRule.String
	r.Tags = splitTags(tags.String)
	if dueTime.Valid {
		t, err := parseTime(dueTime.String)
		if err != nil {
			return r, fmt.Errorf("failed to parse due_time of reminder %d: %w", r.ID, err)
		}
		r.DueTime = &t
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return r, fmt.Errorf("failed to parse created_at of reminder %d: %w", r.ID, err)
	}
	r.CreatedAt = created
	return r, nil
}

func collectSQLiteReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var reminders []models.Reminder
	for rows.Next() {
		r, err := scanSQLiteReminder(rows.Scan)
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
