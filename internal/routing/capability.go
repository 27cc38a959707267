package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/store"
)

// Capability describes one operation exposed to an external decision agent:
// a name, a JSON parameter schema, and a handler. The descriptor is
// independent of any agent-orchestration framework so it can be adapted to
// whatever runtime drives the agent.
type Capability struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Handler     func(ctx context.Context, args json.RawMessage) (string, error)
}

// ReminderCapabilities returns the reminder capability surface backed by the
// given store. Handlers return the serialized reminder payload(s).
func ReminderCapabilities(st store.Store, defaultUserID string) []Capability {
	return []Capability{
		{
			Name:        models.CapabilityCreateReminder,
			Description: "Create a health reminder for the user, e.g. hydration or a blood-pressure check. Arguments: content (string), due_time (optional RFC3339).",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"content": {"type": "string"},
					"due_time": {"type": "string", "format": "date-time"}
				},
				"required": ["content"]
			}`),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var params models.CreateReminderParams
				if err := json.Unmarshal(args, &params); err != nil {
					return "", fmt.Errorf("invalid create_health_reminder arguments: %w", err)
				}
				if err := params.Validate(); err != nil {
					return "", err
				}
				reminder, err := st.CreateReminder(ctx, store.CreateParams{
					UserID:  defaultUserID,
					Content: params.Content,
					DueTime: params.ParsedDueTime(),
				})
				if err != nil {
					return "", err
				}
				slog.Info("capability: reminder created", "id", reminder.ID, "user_id", reminder.UserID)
				return marshalPayload(reminder.Payload())
			},
		},
		{
			Name:        models.CapabilityListReminders,
			Description: "List the user's health reminders, optionally filtered by status (pending/triggered/completed/ignored).",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"status": {"type": "string", "enum": ["pending", "triggered", "completed", "ignored"]}
				}
			}`),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var params models.ListRemindersParams
				if len(args) > 0 {
					if err := json.Unmarshal(args, &params); err != nil {
						return "", fmt.Errorf("invalid list_health_reminders arguments: %w", err)
					}
				}
				if err := params.Validate(); err != nil {
					return "", err
				}
				reminders, err := st.ListReminders(ctx, store.ListFilter{Status: models.ReminderStatus(params.Status)})
				if err != nil {
					return "", err
				}
				payloads := make([]models.ReminderPayload, 0, len(reminders))
				for _, r := range reminders {
					payloads = append(payloads, r.Payload())
				}
				return marshalPayload(payloads)
			},
		},
		{
			Name:        models.CapabilityCompleteReminder,
			Description: "Mark a health reminder as completed. Arguments: reminder_id (integer).",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"reminder_id": {"type": "integer"}
				},
				"required": ["reminder_id"]
			}`),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var params models.CompleteReminderParams
				if err := json.Unmarshal(args, &params); err != nil {
					return "", fmt.Errorf("invalid complete_health_reminder arguments: %w", err)
				}
				if err := params.Validate(); err != nil {
					return "", err
				}
				reminder, err := st.UpdateStatus(ctx, params.ReminderID, models.StatusCompleted, "")
				if err != nil {
					return "", err
				}
				slog.Info("capability: reminder completed", "id", reminder.ID)
				return marshalPayload(reminder.Payload())
			},
		},
	}
}

func marshalPayload(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize reminder payload: %w", err)
	}
	return string(data), nil
}
