// Package models defines the core data structures for CareWatch.
//
// It includes the reminder entity, risk evaluation and routing results, the
// state snapshot consumed by the risk evaluator, and the sync event exchanged
// between devices over the shared reminder channel.
package models

import (
	"errors"
	"strings"
	"time"
)

// Severity classifies how urgent a reminder is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ReminderStatus describes the lifecycle state of a reminder.
type ReminderStatus string

const (
	// StatusPending is the initial state of every reminder.
	StatusPending ReminderStatus = "pending"
	// StatusTriggered means the due-time sweep has fired the reminder.
	StatusTriggered ReminderStatus = "triggered"
	// StatusCompleted means the user acted on the reminder.
	StatusCompleted ReminderStatus = "completed"
	// StatusIgnored means the user dismissed the reminder.
	StatusIgnored ReminderStatus = "ignored"
)

// RiskLevel is the coarse classification derived from a risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Route identifies the response strategy chosen for a risk level.
type Route string

const (
	// RouteMacro runs deterministic care macros that create reminders.
	RouteMacro Route = "macro"
	// RouteRAG invokes the advice-generation collaborator.
	RouteRAG Route = "rag"
	// RouteTemplate produces a canned message.
	RouteTemplate Route = "template"
)

// SyncEventType labels a reminder mutation on the shared channel.
type SyncEventType string

const (
	SyncEventCreated   SyncEventType = "created"
	SyncEventPending   SyncEventType = "pending"
	SyncEventTriggered SyncEventType = "triggered"
	SyncEventCompleted SyncEventType = "completed"
	SyncEventIgnored   SyncEventType = "ignored"
)

// Error variables for better error handling and testability
var (
	ErrReminderNotFound  = errors.New("reminder not found")
	ErrEmptyContent      = errors.New("reminder content cannot be empty")
	ErrEmptyUserID       = errors.New("user id cannot be empty")
	ErrInvalidSeverity   = errors.New("invalid reminder severity")
	ErrInvalidStatus     = errors.New("invalid reminder status")
	ErrMissingReminderID = errors.New("reminder id is required")
)

// IsValidSeverity checks if the given severity is supported.
func IsValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// IsValidStatus checks if the given reminder status is supported.
func IsValidStatus(s ReminderStatus) bool {
	switch s {
	case StatusPending, StatusTriggered, StatusCompleted, StatusIgnored:
		return true
	default:
		return false
	}
}

// IsApplicableSyncEvent reports whether a remote event of this type may be
// applied to the local store. Creation events are intentionally excluded:
// each device owns its reminder rows and only status changes replicate.
func IsApplicableSyncEvent(e SyncEventType) bool {
	switch e {
	case SyncEventPending, SyncEventTriggered, SyncEventCompleted, SyncEventIgnored:
		return true
	default:
		return false
	}
}

// Reminder is a persisted, schedulable care task.
//
// The id is store-assigned and immutable. Status follows last-write-wins
// semantics: a later remote sync event may legitimately move status backward
// (re-opening a completed reminder); no version vector is kept.
type Reminder struct {
	ID         int64          `json:"id"`
	UserID     string         `json:"user_id"`
	Content    string         `json:"content"`
	Severity   Severity       `json:"severity"`
	DueTime    *time.Time     `json:"due_time,omitempty"`
	RepeatRule string         `json:"repeat_rule,omitempty"`
	Status     ReminderStatus `json:"status"`
	Tags       []string       `json:"tags,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ReminderPayload is the wire form of a reminder as carried inside a
// SyncEvent. Nullable columns map to pointer fields so the JSON matches the
// persisted schema (tags are a comma-joined list, times are RFC3339).
type ReminderPayload struct {
	ID         int64   `json:"id"`
	UserID     string  `json:"user_id"`
	Content    string  `json:"content"`
	Severity   string  `json:"severity"`
	DueTime    *string `json:"due_time"`
	RepeatRule *string `json:"repeat_rule"`
	Status     string  `json:"status"`
	Tags       *string `json:"tags"`
	CreatedAt  string  `json:"created_at"`
}

// Payload converts a reminder to its wire form.
func (r Reminder) Payload() ReminderPayload {
	p := ReminderPayload{
		ID:        r.ID,
		UserID:    r.UserID,
		Content:   r.Content,
		Severity:  string(r.Severity),
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.DueTime != nil {
		due := r.DueTime.UTC().Format(time.RFC3339)
		p.DueTime = &due
	}
	if r.RepeatRule != "" {
		rule := r.RepeatRule
		p.RepeatRule = &rule
	}
	if len(r.Tags) > 0 {
		tags := strings.Join(r.Tags, ",")
		p.Tags = &tags
	}
	return p
}

// SyncEvent is the message broadcast on the shared reminder channel whenever
// a local mutation happens, and consumed by remote synchronizers.
type SyncEvent struct {
	Event       SyncEventType   `json:"event"`
	Reminder    ReminderPayload `json:"reminder"`
	PublishedAt time.Time       `json:"published_at"`
	Source      string          `json:"source"`
}

// Weather holds the weather part of a state snapshot. Nil readings mean the
// field was unavailable and is skipped during scoring.
type Weather struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *int     `json:"humidity"`
	Warnings    []string `json:"warnings"`
}

// HasWarning reports whether the given observatory warning code is active.
func (w Weather) HasWarning(code string) bool {
	for _, c := range w.Warnings {
		if c == code {
			return true
		}
	}
	return false
}

// Vitals holds the wearable readings of a state snapshot.
type Vitals struct {
	HeartRate *float64 `json:"heart_rate"`
	Steps     *int     `json:"steps"`
	Sleep     *float64 `json:"sleep"`
}

// StateSnapshot is the externally supplied input to risk evaluation: one
// observation of the user's vitals plus local weather.
type StateSnapshot struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Weather   Weather   `json:"weather"`
	Vitals    Vitals    `json:"vitals"`
	Notes     string    `json:"notes,omitempty"`
}

// RiskEvaluation is the deterministic output of the risk evaluator. Reasons
// are ordered by evaluation order of the scoring table.
type RiskEvaluation struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Reasons []string  `json:"reasons"`
}

// RouteResult is the outcome of dispatching one state snapshot.
//
// ReminderIDs is populated on the macro path only; Evidence carries the
// diagnostic payload of the rag and template paths and is stripped before
// external emission.
type RouteResult struct {
	Route       Route          `json:"route"`
	RiskLevel   RiskLevel      `json:"risk_level"`
	Message     string         `json:"message"`
	ReminderIDs []int64        `json:"reminder_ids,omitempty"`
	Evidence    map[string]any `json:"evidence,omitempty"`
}

// ReminderEntry is the external projection of a reminder inside a
// WatchPayload: tags expanded to a list, internal bookkeeping dropped.
type ReminderEntry struct {
	ID       int64    `json:"id"`
	Content  string   `json:"content"`
	Severity string   `json:"severity"`
	DueTime  *string  `json:"due_time"`
	Status   string   `json:"status"`
	Tags     []string `json:"tags"`
}

// WatchPayload is the cleaned route result consumed by downstream
// presentation: evidence and raw reminder ids are stripped, reminders are
// expanded, and the weather block is attached.
type WatchPayload struct {
	Route     string          `json:"route"`
	RiskLevel string          `json:"risk_level"`
	Message   string          `json:"message"`
	Weather   Weather         `json:"weather"`
	Reminders []ReminderEntry `json:"reminders"`
}
