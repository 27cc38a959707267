package routing

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/store"
)

func capabilityByName(t *testing.T, caps []Capability, name string) Capability {
	t.Helper()
	for _, c := range caps {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("capability %s not found", name)
	return Capability{}
}

func TestReminderCapabilities(t *testing.T) {
	st := store.NewInMemoryStore()
	caps := ReminderCapabilities(st, "user_001")
	if len(caps) != 3 {
		t.Fatalf("capability count = %d, want 3", len(caps))
	}

	create := capabilityByName(t, caps, models.CapabilityCreateReminder)
	list := capabilityByName(t, caps, models.CapabilityListReminders)
	complete := capabilityByName(t, caps, models.CapabilityCompleteReminder)

	out, err := create.Handler(context.Background(), json.RawMessage(`{"content":"Check blood pressure","due_time":"2025-07-01T09:00:00Z"}`))
	if err != nil {
		t.Fatalf("create handler error = %v", err)
	}
	var created models.ReminderPayload
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("create handler output not JSON: %v", err)
	}
	if created.Content != "Check blood pressure" || created.UserID != "user_001" || created.Status != "pending" {
		t.Errorf("created payload = %+v", created)
	}

	out, err = list.Handler(context.Background(), json.RawMessage(`{"status":"pending"}`))
	if err != nil {
		t.Fatalf("list handler error = %v", err)
	}
	var listed []models.ReminderPayload
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list handler output not JSON: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d reminders, want 1", len(listed))
	}

	out, err = complete.Handler(context.Background(), json.RawMessage(`{"reminder_id":`+strconv.FormatInt(created.ID, 10)+`}`))
	if err != nil {
		t.Fatalf("complete handler error = %v", err)
	}
	var completed models.ReminderPayload
	if err := json.Unmarshal([]byte(out), &completed); err != nil {
		t.Fatalf("complete handler output not JSON: %v", err)
	}
	if completed.Status != "completed" {
		t.Errorf("completed status = %s, want completed", completed.Status)
	}
}

func TestReminderCapabilitiesValidation(t *testing.T) {
	st := store.NewInMemoryStore()
	caps := ReminderCapabilities(st, "user_001")

	create := capabilityByName(t, caps, models.CapabilityCreateReminder)
	if _, err := create.Handler(context.Background(), json.RawMessage(`{"content":""}`)); err == nil {
		t.Error("create handler accepted empty content")
	}
	if _, err := create.Handler(context.Background(), json.RawMessage(`{"content":"x","due_time":"tomorrow"}`)); err == nil {
		t.Error("create handler accepted non-RFC3339 due_time")
	}

	list := capabilityByName(t, caps, models.CapabilityListReminders)
	if _, err := list.Handler(context.Background(), json.RawMessage(`{"status":"snoozed"}`)); err == nil {
		t.Error("list handler accepted unknown status")
	}

	complete := capabilityByName(t, caps, models.CapabilityCompleteReminder)
	if _, err := complete.Handler(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("complete handler accepted missing reminder_id")
	}
	if _, err := complete.Handler(context.Background(), json.RawMessage(`{"reminder_id":99}`)); err == nil {
		t.Error("complete handler accepted unknown reminder id")
	}
}
