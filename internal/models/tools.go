// Package models defines capability parameter structures for the agent
// surface. A capability is described by a name, a JSON parameter schema, and
// a handler, independent of any particular agent-orchestration framework.
package models

import (
	"fmt"
	"time"
)

// Capability names exposed to an external decision agent.
const (
	CapabilityCreateReminder   = "create_health_reminder"
	CapabilityListReminders    = "list_health_reminders"
	CapabilityCompleteReminder = "complete_health_reminder"
)

// CreateReminderParams defines the parameters for the create capability.
type CreateReminderParams struct {
	Content string `json:"content"`            // free-text instruction, e.g. "drink 500ml of water"
	DueTime string `json:"due_time,omitempty"` // optional RFC3339 deadline
}

// Validate ensures the create parameters are usable.
func (p *CreateReminderParams) Validate() error {
	if p.Content == "" {
		return ErrEmptyContent
	}
	if p.DueTime != "" {
		if _, err := time.Parse(time.RFC3339, p.DueTime); err != nil {
			return fmt.Errorf("invalid due_time format: %w", err)
		}
	}
	return nil
}

// ParsedDueTime returns the due time as a time pointer, or nil if unset.
// Validate must have been called first.
func (p *CreateReminderParams) ParsedDueTime() *time.Time {
	if p.DueTime == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, p.DueTime)
	if err != nil {
		return nil
	}
	return &t
}

// ListRemindersParams defines the parameters for the list capability.
type ListRemindersParams struct {
	Status string `json:"status,omitempty"` // optional filter: pending/triggered/completed/ignored
}

// Validate ensures the list parameters are usable.
func (p *ListRemindersParams) Validate() error {
	if p.Status != "" && !IsValidStatus(ReminderStatus(p.Status)) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, p.Status)
	}
	return nil
}

// CompleteReminderParams defines the parameters for the complete capability.
type CompleteReminderParams struct {
	ReminderID int64 `json:"reminder_id"`
}

// Validate ensures the complete parameters are usable.
func (p *CompleteReminderParams) Validate() error {
	if p.ReminderID <= 0 {
		return ErrMissingReminderID
	}
	return nil
}
