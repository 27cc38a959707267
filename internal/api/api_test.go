package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/notify"
	"github.com/BTreeMap/CareWatch/internal/routing"
	"github.com/BTreeMap/CareWatch/internal/store"
)

func testServer(t *testing.T, opts ...Option) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	dispatcher := routing.NewDispatcher(st, nil, nil, nil)
	srv := NewServer(st, dispatcher, nil, nil, nil, nil, opts...)
	return srv, st
}

func decodeResponse(t *testing.T, body *bytes.Buffer) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	return resp
}

func TestHealthHandler(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rr.Code)
	}
}

func TestWatchStateHighScenario(t *testing.T) {
	srv, st := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/watch_state?scenario=high", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var envelope struct {
		State  models.StateSnapshot `json:"state"`
		Output models.WatchPayload  `json:"output"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if envelope.Output.Route != "macro" || envelope.Output.RiskLevel != "high" {
		t.Errorf("output route/level = %s/%s, want macro/high", envelope.Output.Route, envelope.Output.RiskLevel)
	}
	// The high scenario fires both care macros.
	if len(envelope.Output.Reminders) != 4 {
		t.Errorf("output reminders = %d, want 4", len(envelope.Output.Reminders))
	}
	if envelope.State.Weather.Temperature == nil || *envelope.State.Weather.Temperature != 35 {
		t.Errorf("state temperature = %v, want 35", envelope.State.Weather.Temperature)
	}

	stored, _ := st.ListReminders(req.Context(), store.ListFilter{})
	if len(stored) != 4 {
		t.Errorf("store has %d reminders, want 4", len(stored))
	}
}

func TestWatchStateLowScenario(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/watch_state?scenario=low&user_id=user_042", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	var envelope struct {
		State  models.StateSnapshot `json:"state"`
		Output models.WatchPayload  `json:"output"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if envelope.Output.Route != "template" {
		t.Errorf("output route = %s, want template", envelope.Output.Route)
	}
	if envelope.State.UserID != "user_042" {
		t.Errorf("state user = %s, want user_042", envelope.State.UserID)
	}
	if len(envelope.Output.Reminders) != 0 {
		t.Errorf("output reminders = %d, want 0", len(envelope.Output.Reminders))
	}
}

func TestWatchStateHighScenarioAlertsCaregiver(t *testing.T) {
	st := store.NewInMemoryStore()
	dispatcher := routing.NewDispatcher(st, nil, nil, nil)
	mock := notify.NewMockClient()
	srv := NewServer(st, dispatcher, nil, nil, nil, mock, WithAlertTo("+85291234567"))

	req := httptest.NewRequest(http.MethodGet, "/api/watch_state?scenario=high", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if len(mock.SentAlerts) != 1 {
		t.Fatalf("sent %d alerts, want 1", len(mock.SentAlerts))
	}
	if mock.SentAlerts[0].To != "+85291234567" {
		t.Errorf("alert to = %s", mock.SentAlerts[0].To)
	}

	// Low risk must not alert.
	req = httptest.NewRequest(http.MethodGet, "/api/watch_state?scenario=low", nil)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
	if len(mock.SentAlerts) != 1 {
		t.Errorf("low-risk evaluation sent an alert")
	}
}

func TestCreateAndListReminders(t *testing.T) {
	srv, _ := testServer(t)
	body := `{"content": "Take medication", "severity": "high", "due_time": "2025-07-01T09:00:00Z", "tags": ["medication"]}`
	req := httptest.NewRequest(http.MethodPost, "/reminders", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr.Body)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("create response status = %s", resp.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/reminders?status=pending", nil)
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rr.Code)
	}
	resp = decodeResponse(t, rr.Body)
	listed, ok := resp.Result.([]interface{})
	if !ok || len(listed) != 1 {
		t.Errorf("listed result = %v, want 1 reminder", resp.Result)
	}
}

func TestCreateReminderValidation(t *testing.T) {
	srv, _ := testServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"empty content", `{"content": ""}`},
		{"bad due time", `{"content": "x", "due_time": "tomorrow"}`},
		{"bad severity", `{"content": "x", "severity": "urgent"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/reminders", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestCompleteReminder(t *testing.T) {
	srv, st := testServer(t)
	created, err := st.CreateReminder(httptest.NewRequest(http.MethodGet, "/", nil).Context(), store.CreateParams{
		UserID:  "user_001",
		Content: "Take medication",
	})
	if err != nil {
		t.Fatal(err)
	}

	body := `{"reminder_id": 1, "note": "taken with breakfast"}`
	req := httptest.NewRequest(http.MethodPost, "/reminders/complete", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("complete status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	got, _ := st.GetRemindersByIDs(req.Context(), []int64{created.ID})
	if got[0].Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", got[0].Status)
	}

	// Unknown id maps to 404.
	req = httptest.NewRequest(http.MethodPost, "/reminders/complete", strings.NewReader(`{"reminder_id": 99}`))
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rr.Code)
	}

	// Missing id maps to 400.
	req = httptest.NewRequest(http.MethodPost, "/reminders/complete", strings.NewReader(`{}`))
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing id status = %d, want 400", rr.Code)
	}
}

func TestSweepHandler(t *testing.T) {
	srv, st := testServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	past := time.Now().UTC().Add(-time.Hour)
	if _, err := st.CreateReminder(ctx, store.CreateParams{UserID: "u", Content: "overdue", DueTime: &past}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/reminders/sweep", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("sweep status = %d, want 200", rr.Code)
	}
	resp := decodeResponse(t, rr.Body)
	swept, ok := resp.Result.([]interface{})
	if !ok || len(swept) != 1 {
		t.Errorf("swept result = %v, want 1 reminder", resp.Result)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/watch_state"},
		{http.MethodDelete, "/reminders"},
		{http.MethodGet, "/reminders/complete"},
		{http.MethodGet, "/reminders/sweep"},
		{http.MethodPost, "/health"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status = %d, want 405", tt.method, tt.path, rr.Code)
		}
	}
}
