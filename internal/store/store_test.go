package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
)

// storeFactory builds a fresh store per subtest so both backends run the same
// behavioral suite.
type storeFactory func(t *testing.T) Store

func inMemoryFactory(t *testing.T) Store {
	return NewInMemoryStore()
}

func sqliteFactory(t *testing.T) Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "carewatch_test.db")
	st, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreBehavior(t *testing.T) {
	backends := map[string]storeFactory{
		"in-memory": inMemoryFactory,
		"sqlite":    sqliteFactory,
	}
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("create round trip", func(t *testing.T) { testCreateRoundTrip(t, factory(t)) })
			t.Run("create validation", func(t *testing.T) { testCreateValidation(t, factory(t)) })
			t.Run("list ordering and filtering", func(t *testing.T) { testListOrdering(t, factory(t)) })
			t.Run("update status", func(t *testing.T) { testUpdateStatus(t, factory(t)) })
			t.Run("get by ids", func(t *testing.T) { testGetByIDs(t, factory(t)) })
			t.Run("trigger due", func(t *testing.T) { testTriggerDue(t, factory(t)) })
		})
	}
}

func testCreateRoundTrip(t *testing.T, st Store) {
	ctx := context.Background()
	due := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	created, err := st.CreateReminder(ctx, CreateParams{
		UserID:     "user_001",
		Content:    "Measure blood pressure",
		Severity:   models.SeverityHigh,
		DueTime:    &due,
		RepeatRule: "daily",
		Tags:       []string{"health", "bp"},
	})
	if err != nil {
		t.Fatalf("CreateReminder() error = %v", err)
	}
	if created.ID == 0 {
		t.Error("CreateReminder() assigned no id")
	}
	if created.Status != models.StatusPending {
		t.Errorf("new reminder status = %s, want pending", created.Status)
	}

	listed, err := st.ListReminders(ctx, ListFilter{UserID: "user_001"})
	if err != nil {
		t.Fatalf("ListReminders() error = %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d reminders, want 1", len(listed))
	}
	got := listed[0]
	if got.Content != "Measure blood pressure" || got.Severity != models.SeverityHigh || got.RepeatRule != "daily" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.DueTime == nil || !got.DueTime.UTC().Equal(due) {
		t.Errorf("due time = %v, want %v", got.DueTime, due)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "health" || got.Tags[1] != "bp" {
		t.Errorf("tags = %v, want [health bp]", got.Tags)
	}

	// Unspecified severity defaults to medium.
	noSev, err := st.CreateReminder(ctx, CreateParams{UserID: "user_001", Content: "Walk"})
	if err != nil {
		t.Fatalf("CreateReminder() error = %v", err)
	}
	if noSev.Severity != models.SeverityMedium {
		t.Errorf("default severity = %s, want medium", noSev.Severity)
	}
}

func testCreateValidation(t *testing.T, st Store) {
	ctx := context.Background()
	if _, err := st.CreateReminder(ctx, CreateParams{UserID: "user_001"}); !errors.Is(err, models.ErrEmptyContent) {
		t.Errorf("empty content error = %v, want ErrEmptyContent", err)
	}
	if _, err := st.CreateReminder(ctx, CreateParams{Content: "x"}); !errors.Is(err, models.ErrEmptyUserID) {
		t.Errorf("empty user error = %v, want ErrEmptyUserID", err)
	}
	if _, err := st.CreateReminder(ctx, CreateParams{UserID: "u", Content: "x", Severity: "urgent"}); !errors.Is(err, models.ErrInvalidSeverity) {
		t.Errorf("invalid severity error = %v, want ErrInvalidSeverity", err)
	}
}

func testListOrdering(t *testing.T, st Store) {
	ctx := context.Background()
	late := time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC)
	early := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

	if _, err := st.CreateReminder(ctx, CreateParams{UserID: "user_001", Content: "evening", DueTime: &late}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateReminder(ctx, CreateParams{UserID: "user_001", Content: "morning", DueTime: &early}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateReminder(ctx, CreateParams{UserID: "user_002", Content: "other user", DueTime: &early}); err != nil {
		t.Fatal(err)
	}

	listed, err := st.ListReminders(ctx, ListFilter{UserID: "user_001"})
	if err != nil {
		t.Fatalf("ListReminders() error = %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d reminders, want 2", len(listed))
	}
	if listed[0].Content != "morning" || listed[1].Content != "evening" {
		t.Errorf("ordering = [%s, %s], want due-time ascending", listed[0].Content, listed[1].Content)
	}

	all, err := st.ListReminders(ctx, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered list = %d, want 3", len(all))
	}

	pending, err := st.ListReminders(ctx, ListFilter{Status: models.StatusPending, UserID: "user_002"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("combined filter = %d, want 1", len(pending))
	}
}

func testUpdateStatus(t *testing.T, st Store) {
	ctx := context.Background()
	created, err := st.CreateReminder(ctx, CreateParams{UserID: "user_001", Content: "take pills"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := st.UpdateStatus(ctx, created.ID, models.StatusCompleted, "done at breakfast")
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if updated.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}

	// Last-write-wins: moving back to an earlier state is allowed.
	reverted, err := st.UpdateStatus(ctx, created.ID, models.StatusPending, "")
	if err != nil {
		t.Fatalf("UpdateStatus() revert error = %v", err)
	}
	if reverted.Status != models.StatusPending {
		t.Errorf("reverted status = %s, want pending", reverted.Status)
	}

	if _, err := st.UpdateStatus(ctx, 9999, models.StatusCompleted, ""); !errors.Is(err, models.ErrReminderNotFound) {
		t.Errorf("unknown id error = %v, want ErrReminderNotFound", err)
	}
	if _, err := st.UpdateStatus(ctx, created.ID, "snoozed", ""); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("invalid status error = %v, want ErrInvalidStatus", err)
	}
}

func testGetByIDs(t *testing.T, st Store) {
	ctx := context.Background()
	a, _ := st.CreateReminder(ctx, CreateParams{UserID: "u", Content: "a"})
	b, _ := st.CreateReminder(ctx, CreateParams{UserID: "u", Content: "b"})

	got, err := st.GetRemindersByIDs(ctx, []int64{b.ID, 777, a.ID})
	if err != nil {
		t.Fatalf("GetRemindersByIDs() error = %v", err)
	}
	// Unknown ids are skipped and the caller's order is preserved.
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("GetRemindersByIDs() = %v, want [b a]", got)
	}

	empty, err := st.GetRemindersByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("GetRemindersByIDs(nil) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("GetRemindersByIDs(nil) = %d entries, want 0", len(empty))
	}
}

func testTriggerDue(t *testing.T, st Store) {
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdue, _ := st.CreateReminder(ctx, CreateParams{UserID: "u", Content: "overdue", DueTime: &past})
	if _, err := st.CreateReminder(ctx, CreateParams{UserID: "u", Content: "future", DueTime: &future}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateReminder(ctx, CreateParams{UserID: "u", Content: "no due"}); err != nil {
		t.Fatal(err)
	}

	triggered, err := st.TriggerDue(ctx, now)
	if err != nil {
		t.Fatalf("TriggerDue() error = %v", err)
	}
	if len(triggered) != 1 || triggered[0].ID != overdue.ID {
		t.Fatalf("TriggerDue() = %v, want the overdue reminder only", triggered)
	}
	if triggered[0].Status != models.StatusTriggered {
		t.Errorf("swept status = %s, want triggered", triggered[0].Status)
	}

	// Idempotent: a second sweep with the same clock finds nothing pending.
	again, err := st.TriggerDue(ctx, now)
	if err != nil {
		t.Fatalf("TriggerDue() second error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second sweep = %d reminders, want 0", len(again))
	}
}

// recordingRecorder captures reminder lifecycle events.
type recordingRecorder struct {
	statuses []string
}

func (r *recordingRecorder) LogReminderEvent(ctx context.Context, userID string, reminderID int64, status string, note string) error {
	r.statuses = append(r.statuses, status)
	return nil
}

func TestInMemoryStoreLifecycleRecording(t *testing.T) {
	st := NewInMemoryStore()
	rec := &recordingRecorder{}
	st.SetRecorder(rec)

	ctx := context.Background()
	due := time.Now().UTC().Add(-time.Minute)
	created, err := st.CreateReminder(ctx, CreateParams{UserID: "u", Content: "x", DueTime: &due})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.TriggerDue(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	if _, err := st.UpdateStatus(ctx, created.ID, models.StatusCompleted, "ok"); err != nil {
		t.Fatal(err)
	}

	want := []string{"created", "triggered", "completed"}
	if len(rec.statuses) != len(want) {
		t.Fatalf("recorded %d lifecycle events, want %d: %v", len(rec.statuses), len(want), rec.statuses)
	}
	for i, s := range want {
		if rec.statuses[i] != s {
			t.Errorf("lifecycle event %d = %s, want %s", i, rec.statuses[i], s)
		}
	}
}
