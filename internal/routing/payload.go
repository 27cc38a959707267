package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/store"
)

// BuildWatchPayload cleans a route result for external emission: evidence is
// stripped, reminder ids are replaced by expanded reminder entries, the
// weather block is attached, and a JSON-wrapped advice message is unwrapped.
func BuildWatchPayload(ctx context.Context, result models.RouteResult, state models.StateSnapshot, st store.Store) models.WatchPayload {
	payload := models.WatchPayload{
		Route:     string(result.Route),
		RiskLevel: string(result.RiskLevel),
		Message:   extractMessageText(result.Message),
		Weather: models.Weather{
			Temperature: state.Weather.Temperature,
			Humidity:    state.Weather.Humidity,
			Warnings:    warningsOrEmpty(state.Weather.Warnings),
		},
		Reminders: []models.ReminderEntry{},
	}

	if len(result.ReminderIDs) == 0 {
		return payload
	}
	reminders, err := st.GetRemindersByIDs(ctx, result.ReminderIDs)
	if err != nil {
		slog.Error("BuildWatchPayload: reminder expansion failed", "error", err, "ids", result.ReminderIDs)
		return payload
	}
	for _, r := range reminders {
		entry := models.ReminderEntry{
			ID:       r.ID,
			Content:  r.Content,
			Severity: string(r.Severity),
			Status:   string(r.Status),
			Tags:     tagsOrEmpty(r.Tags),
		}
		if r.DueTime != nil {
			due := r.DueTime.UTC().Format(time.RFC3339)
			entry.DueTime = &due
		}
		payload.Reminders = append(payload.Reminders, entry)
	}
	return payload
}

// extractMessageText unwraps a message field from generated advice that came
// back as a JSON object, optionally inside a fenced code block. Anything that
// does not parse is returned unchanged.
func extractMessageText(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
			lines = lines[1:]
		}
		if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
			lines = lines[:len(lines)-1]
		}
		text = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		if msg, ok := parsed["message"].(string); ok {
			return msg
		}
	}
	return raw
}

func warningsOrEmpty(warnings []string) []string {
	if warnings == nil {
		return []string{}
	}
	return warnings
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
