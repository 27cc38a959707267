// Package routing implements the risk routing engine: the three-way route
// dispatcher and the deterministic care macro planner.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/store"
	"github.com/BTreeMap/CareWatch/internal/weather"
)

// Macro timing constants.
const (
	hydrationDue     = 30 * time.Minute
	familyContactDue = time.Hour
	sleepLogDue      = 12 * time.Hour
	windDownHour     = 22
)

// Advisory sentences, one per macro, joined in rule order.
const (
	heatAdvisory   = "High heat risk detected: hydration and family-contact reminders have been scheduled. Act on them now and stay cool."
	sleepAdvisory  = "Sustained sleep shortfall detected: wind-down and sleep-tracking reminders have been scheduled. Follow them tonight."
	genericCaution = "Elevated risk detected. Stay alert and review your reminder list."
)

// CareMacroPlanner turns a high-risk evaluation into concrete reminders and a
// composed advisory message. Each macro is independently evaluable; a state
// may trigger several, and the final message concatenates their sentences in
// fixed rule order.
type CareMacroPlanner struct {
	store store.Store
	clock func() time.Time
}

// NewCareMacroPlanner creates a planner backed by the given reminder store.
func NewCareMacroPlanner(st store.Store) *CareMacroPlanner {
	return &CareMacroPlanner{store: st, clock: time.Now}
}

// macroResult is the outcome of one fired macro.
type macroResult struct {
	message   string
	reminders []models.Reminder
}

// Run executes every macro whose condition holds and assembles the macro
// route result. When no macro fires the result carries a generic caution and
// zero reminders; this can happen even at high risk when the score accrues
// from humidity, heart-rate, or warning terms alone.
func (p *CareMacroPlanner) Run(ctx context.Context, evaluation models.RiskEvaluation, state models.StateSnapshot) (models.RouteResult, error) {
	var macros []macroResult
	userID := state.UserID

	temp := state.Weather.Temperature
	if (temp != nil && *temp >= 33) || state.Weather.HasWarning(weather.WarningHot) {
		m, err := p.heatMacro(ctx, userID)
		if err != nil {
			return models.RouteResult{}, err
		}
		macros = append(macros, m)
	}

	if sleep := state.Vitals.Sleep; sleep != nil && *sleep < 6 {
		m, err := p.sleepMacro(ctx, userID)
		if err != nil {
			return models.RouteResult{}, err
		}
		macros = append(macros, m)
	}

	if len(macros) == 0 {
		slog.Info("CareMacroPlanner.Run: no macro fired, generic caution", "user_id", userID, "level", evaluation.Level)
		macros = append(macros, macroResult{message: genericCaution})
	}

	messages := make([]string, 0, len(macros))
	var reminderIDs []int64
	for _, m := range macros {
		messages = append(messages, m.message)
		for _, r := range m.reminders {
			reminderIDs = append(reminderIDs, r.ID)
		}
	}

	return models.RouteResult{
		Route:       models.RouteMacro,
		RiskLevel:   evaluation.Level,
		Message:     strings.Join(messages, "\n"),
		ReminderIDs: reminderIDs,
	}, nil
}

// heatMacro schedules hydration and family-contact reminders.
func (p *CareMacroPlanner) heatMacro(ctx context.Context, userID string) (macroResult, error) {
	now := p.clock().UTC()
	hydrationAt := now.Add(hydrationDue)
	familyAt := now.Add(familyContactDue)

	hydration, err := p.store.CreateReminder(ctx, store.CreateParams{
		UserID:   userID,
		Content:  "Drink 500ml of water within the next hour and avoid going out at midday",
		Severity: models.SeverityHigh,
		DueTime:  &hydrationAt,
		Tags:     []string{"heat", "hydration"},
	})
	if err != nil {
		return macroResult{}, fmt.Errorf("heat macro: hydration reminder failed: %w", err)
	}
	family, err := p.store.CreateReminder(ctx, store.CreateParams{
		UserID:   userID,
		Content:  "Contact family to confirm your status; seek medical help if discomfort persists",
		Severity: models.SeverityHigh,
		DueTime:  &familyAt,
		Tags:     []string{"family", "safety"},
	})
	if err != nil {
		return macroResult{}, fmt.Errorf("heat macro: family-contact reminder failed: %w", err)
	}

	return macroResult{
		message:   heatAdvisory,
		reminders: []models.Reminder{hydration, family},
	}, nil
}

// sleepMacro schedules wind-down and sleep-tracking reminders.
func (p *CareMacroPlanner) sleepMacro(ctx context.Context, userID string) (macroResult, error) {
	now := p.clock().UTC()
	windDownAt := nextEvening(now)
	sleepLogAt := now.Add(sleepLogDue)

	windDown, err := p.store.CreateReminder(ctx, store.CreateParams{
		UserID:   userID,
		Content:  "Finish a wind-down activity (music, stretching) before 22:00 and prepare for an early night",
		Severity: models.SeverityMedium,
		DueTime:  &windDownAt,
		Tags:     []string{"sleep", "routine"},
	})
	if err != nil {
		return macroResult{}, fmt.Errorf("sleep macro: wind-down reminder failed: %w", err)
	}
	sleepLog, err := p.store.CreateReminder(ctx, store.CreateParams{
		UserID:   userID,
		Content:  "Record tonight's sleep duration and how you feel, confirm in the morning",
		Severity: models.SeverityLow,
		DueTime:  &sleepLogAt,
		Tags:     []string{"sleep", "tracking"},
	})
	if err != nil {
		return macroResult{}, fmt.Errorf("sleep macro: sleep-log reminder failed: %w", err)
	}

	return macroResult{
		message:   sleepAdvisory,
		reminders: []models.Reminder{windDown, sleepLog},
	}, nil
}

// nextEvening returns the next upcoming 22:00: today if not yet passed,
// otherwise tomorrow.
func nextEvening(now time.Time) time.Time {
	evening := time.Date(now.Year(), now.Month(), now.Day(), windDownHour, 0, 0, 0, now.Location())
	if !evening.After(now) {
		evening = evening.Add(24 * time.Hour)
	}
	return evening
}
