package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/routing"
	"github.com/BTreeMap/CareWatch/internal/store"
)

// watchStateEnvelope is the frontend-facing wrapper around one evaluation.
type watchStateEnvelope struct {
	UserName string               `json:"user_name,omitempty"`
	State    models.StateSnapshot `json:"state"`
	Output   models.WatchPayload  `json:"output"`
}

// createReminderRequest is the POST /reminders body.
type createReminderRequest struct {
	UserID     string   `json:"user_id"`
	Content    string   `json:"content"`
	Severity   string   `json:"severity"`
	DueTime    *string  `json:"due_time"`
	RepeatRule string   `json:"repeat_rule"`
	Tags       []string `json:"tags"`
}

// completeReminderRequest is the POST /reminders/complete body.
type completeReminderRequest struct {
	ReminderID int64  `json:"reminder_id"`
	Note       string `json:"note"`
}

func (s *Server) watchStateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.watchStateHandler: processing watch state request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.watchStateHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = s.userID
	}
	scenario := r.URL.Query().Get("scenario")
	if scenario == "" {
		scenario = "live"
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	state := s.buildState(ctx, userID, scenario)

	result, err := s.dispatcher.Dispatch(ctx, state)
	if err != nil {
		slog.Error("Server.watchStateHandler: dispatch failed", "error", err, "user_id", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to evaluate watch state"))
		return
	}

	output := routing.BuildWatchPayload(ctx, result, state, s.st)

	// Keep original behavior: evaluations flow downstream regardless of who
	// asked for them.
	if s.output != nil {
		s.output.Publish(ctx, output)
	}
	if s.notifier != nil && s.alertTo != "" && result.RiskLevel == models.RiskHigh {
		if err := s.notifier.SendAlert(ctx, s.alertTo, output.Message); err != nil {
			slog.Error("Server.watchStateHandler: caregiver alert failed", "error", err, "to", s.alertTo)
		}
	}

	slog.Info("Server.watchStateHandler: state evaluated", "user_id", userID, "scenario", scenario, "route", result.Route, "risk_level", result.RiskLevel)
	writeJSONResponse(w, http.StatusOK, watchStateEnvelope{
		UserName: s.userName,
		State:    state,
		Output:   output,
	})
}

// buildState assembles the snapshot fed to the router: live sensor and
// weather data, or one of the canned demo scenarios. An unknown scenario
// falls back to live data.
func (s *Server) buildState(ctx context.Context, userID, scenario string) models.StateSnapshot {
	switch scenario {
	case "high", "medium", "low":
		return demoState(userID, scenario)
	}

	state := models.StateSnapshot{
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Notes:     "live sensor sample",
	}
	if s.weather != nil {
		weather, err := s.weather.Current(ctx)
		if err != nil {
			slog.Warn("Server.buildState: weather unavailable", "error", err)
		} else {
			state.Weather = weather
		}
	}
	if s.vitals != nil {
		state.Vitals = s.vitals.Snapshot()
	}
	return state
}

// demoState returns the fixed snapshots used for frontend demonstrations.
func demoState(userID, scenario string) models.StateSnapshot {
	state := models.StateSnapshot{
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Weather:   models.Weather{Warnings: []string{}},
	}
	switch scenario {
	case "high":
		state.Weather.Temperature = floatPtr(35)
		state.Weather.Warnings = []string{"WHOT"}
		state.Vitals = models.Vitals{HeartRate: floatPtr(115), Steps: intPtr(1800), Sleep: floatPtr(5.5)}
		state.Notes = "Demo: hot weather, elevated heart rate, short sleep"
	case "medium":
		state.Weather.Temperature = floatPtr(32)
		state.Weather.Humidity = intPtr(88)
		state.Vitals = models.Vitals{HeartRate: floatPtr(95), Steps: intPtr(2000), Sleep: floatPtr(5.5)}
		state.Notes = "Demo: warm outside, user reports fatigue, no outing planned"
	case "low":
		state.Weather.Temperature = floatPtr(24)
		state.Vitals = models.Vitals{HeartRate: floatPtr(78), Steps: intPtr(2500), Sleep: floatPtr(7.2)}
		state.Notes = "Demo: stable condition, well rested"
	}
	return state
}

func (s *Server) remindersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.createReminder(w, r)
	case http.MethodGet:
		s.listReminders(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.remindersHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createReminder(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createReminder: processing create request")
	var req createReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createReminder: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.UserID == "" {
		req.UserID = s.userID
	}

	params := store.CreateParams{
		UserID:     req.UserID,
		Content:    req.Content,
		Severity:   models.Severity(req.Severity),
		RepeatRule: req.RepeatRule,
		Tags:       req.Tags,
	}
	if req.DueTime != nil && *req.DueTime != "" {
		due, err := time.Parse(time.RFC3339, *req.DueTime)
		if err != nil {
			slog.Warn("Server.createReminder: invalid due_time", "error", err, "due_time", *req.DueTime)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid due_time: expected RFC3339"))
			return
		}
		params.DueTime = &due
	}
	if err := params.Validate(); err != nil {
		slog.Warn("Server.createReminder: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	reminder, err := s.st.CreateReminder(r.Context(), params)
	if err != nil {
		slog.Error("Server.createReminder: store create failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create reminder"))
		return
	}
	slog.Info("Server.createReminder: reminder created", "id", reminder.ID, "user_id", reminder.UserID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Reminder created", reminder.Payload()))
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listReminders: processing list request")
	filter := store.ListFilter{
		Status: models.ReminderStatus(r.URL.Query().Get("status")),
		UserID: r.URL.Query().Get("user_id"),
	}
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		slog.Warn("Server.listReminders: invalid status filter", "status", filter.Status)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid status filter"))
		return
	}

	reminders, err := s.st.ListReminders(r.Context(), filter)
	if err != nil {
		slog.Error("Server.listReminders: store list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list reminders"))
		return
	}
	payloads := make([]models.ReminderPayload, 0, len(reminders))
	for _, reminder := range reminders {
		payloads = append(payloads, reminder.Payload())
	}
	writeJSONResponse(w, http.StatusOK, models.Success(payloads))
}

func (s *Server) completeReminderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.completeReminderHandler: processing complete request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.completeReminderHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req completeReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.completeReminderHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.ReminderID == 0 {
		slog.Warn("Server.completeReminderHandler: missing reminder_id")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: reminder_id"))
		return
	}

	reminder, err := s.st.UpdateStatus(r.Context(), req.ReminderID, models.StatusCompleted, req.Note)
	if err != nil {
		if errors.Is(err, models.ErrReminderNotFound) {
			slog.Warn("Server.completeReminderHandler: reminder not found", "id", req.ReminderID)
			writeJSONResponse(w, http.StatusNotFound, models.Error("Reminder not found"))
			return
		}
		slog.Error("Server.completeReminderHandler: store update failed", "error", err, "id", req.ReminderID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to complete reminder"))
		return
	}
	slog.Info("Server.completeReminderHandler: reminder completed", "id", reminder.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Reminder completed", reminder.Payload()))
}

func (s *Server) sweepHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sweepHandler: processing sweep request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.sweepHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	triggered, err := s.st.TriggerDue(r.Context(), time.Now().UTC())
	if err != nil {
		slog.Error("Server.sweepHandler: sweep failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to sweep reminders"))
		return
	}
	payloads := make([]models.ReminderPayload, 0, len(triggered))
	for _, reminder := range triggered {
		payloads = append(payloads, reminder.Payload())
	}
	slog.Info("Server.sweepHandler: sweep complete", "triggered", len(triggered))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Sweep complete", payloads))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
