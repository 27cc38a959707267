package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CareWatch/internal/memory"
	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/risk"
	"github.com/BTreeMap/CareWatch/internal/store"
)

// Template path sentences.
const (
	calmTemplate      = "Conditions are stable today. Keep to your regular routine and stay hydrated."
	cautionTemplate   = "Minor weather fluctuations detected. Keep an eye on system reminders."
	activityTemplate  = " Light activity helps maintain heart and lung fitness."
	lowStepsThreshold = 3000
)

// adviceSystemPrompt frames the advice-generation collaborator.
const adviceSystemPrompt = "You are a health companion for an elderly user. " +
	"Based on the provided health knowledge, user profile, and recent memory, " +
	"give a short caring advisory and explain the basis for your judgement. " +
	"Respond with JSON containing message and evidence fields."

// AdviceGenerator is the opaque text-generation collaborator invoked on the
// medium-risk path. Implementations must honor the context deadline.
type AdviceGenerator interface {
	GenerateAdvice(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Dispatcher selects a response strategy for each state snapshot: care macros
// at high risk, generated advice at medium risk, a canned template at low
// risk. Routing decisions are recorded on the memory timeline, best-effort.
type Dispatcher struct {
	macro     *CareMacroPlanner
	advice    AdviceGenerator
	retriever memory.Retriever
	recorder  memory.Recorder
}

// NewDispatcher creates a dispatcher. The advice generator may be nil, in
// which case the medium-risk path always degrades to the fallback message.
func NewDispatcher(st store.Store, advice AdviceGenerator, retriever memory.Retriever, recorder memory.Recorder) *Dispatcher {
	return &Dispatcher{
		macro:     NewCareMacroPlanner(st),
		advice:    advice,
		retriever: retriever,
		recorder:  recorder,
	}
}

// Dispatch evaluates the snapshot and runs the selected path. Every path
// returns a RouteResult; only store failures on the macro path surface as
// errors.
func (d *Dispatcher) Dispatch(ctx context.Context, state models.StateSnapshot) (models.RouteResult, error) {
	evaluation := risk.Evaluate(state)
	slog.Info("Dispatcher.Dispatch: evaluated snapshot",
		"user_id", state.UserID, "score", evaluation.Score, "level", evaluation.Level)

	d.recordEvent(ctx, state.UserID, memory.Event{
		UserID:     state.UserID,
		Content:    fmt.Sprintf("Routing request level=%s reasons=%v", evaluation.Level, evaluation.Reasons),
		EventType:  "routing_request",
		Importance: 1.2,
		Extra:      map[string]any{"level": string(evaluation.Level)},
	})

	var result models.RouteResult
	var err error
	switch evaluation.Level {
	case models.RiskHigh:
		result, err = d.macro.Run(ctx, evaluation, state)
		if err != nil {
			return models.RouteResult{}, err
		}
	case models.RiskMedium:
		result = d.runRAGPath(ctx, evaluation, state)
	default:
		result = d.runTemplatePath(evaluation, state)
	}

	d.recordEvent(ctx, state.UserID, memory.Event{
		UserID:    state.UserID,
		Content:   fmt.Sprintf("Routing result via %s: %s", result.Route, result.Message),
		EventType: "routing_result",
	})
	return result, nil
}

// runRAGPath builds the prompt context from the memory collaborator and
// invokes the advice generator. Any failure substitutes a fallback message;
// the route is still reported as rag and the evidence is the prompt context
// actually sent.
func (d *Dispatcher) runRAGPath(ctx context.Context, evaluation models.RiskEvaluation, state models.StateSnapshot) models.RouteResult {
	var retrieved memory.RetrievedContext
	if d.retriever != nil {
		var err error
		retrieved, err = d.retriever.Retrieve(ctx, state)
		if err != nil {
			slog.Warn("Dispatcher.runRAGPath: memory retrieval failed, proceeding without context", "error", err)
			retrieved = memory.RetrievedContext{}
		}
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		slog.Error("Dispatcher.runRAGPath: failed to serialize state", "error", err)
		stateJSON = []byte("{}")
	}
	promptContext := map[string]any{
		"state":      string(stateJSON),
		"knowledge":  orNone(strings.Join(retrieved.Knowledge, "\n")),
		"short_term": orNone(strings.Join(retrieved.ShortTerm, "\n")),
		"profile":    orNone(retrieved.Profile),
	}
	userPrompt := fmt.Sprintf(
		"Current state: %s\nKnowledge snippets: %s\nRecent memory: %s\nUser profile: %s",
		promptContext["state"], promptContext["knowledge"], promptContext["short_term"], promptContext["profile"],
	)

	var message string
	if d.advice == nil {
		message = "Advice generation is not configured; falling back to rule-based guidance. Keep hydrated and rest well."
	} else if generated, genErr := d.advice.GenerateAdvice(ctx, adviceSystemPrompt, userPrompt); genErr != nil {
		slog.Warn("Dispatcher.runRAGPath: advice generation failed, using fallback", "error", genErr)
		message = fmt.Sprintf("Advice generation unavailable, falling back to rule-based guidance. Reason: %v", genErr)
	} else {
		message = strings.TrimSpace(generated)
	}

	return models.RouteResult{
		Route:     models.RouteRAG,
		RiskLevel: evaluation.Level,
		Message:   message,
		Evidence:  promptContext,
	}
}

// runTemplatePath produces the deterministic low-risk message.
func (d *Dispatcher) runTemplatePath(evaluation models.RiskEvaluation, state models.StateSnapshot) models.RouteResult {
	message := calmTemplate
	if len(state.Weather.Warnings) > 0 {
		message = cautionTemplate
	}
	if steps := state.Vitals.Steps; steps != nil && *steps < lowStepsThreshold {
		message += activityTemplate
	}
	return models.RouteResult{
		Route:     models.RouteTemplate,
		RiskLevel: evaluation.Level,
		Message:   message,
		Evidence:  map[string]any{"reasons": evaluation.Reasons},
	}
}

// recordEvent writes a routing event to the memory recorder. Failures must
// never abort the routing decision.
func (d *Dispatcher) recordEvent(ctx context.Context, userID string, ev memory.Event) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.AddEvent(ctx, ev); err != nil {
		slog.Warn("Dispatcher.recordEvent: memory logging failed", "error", err, "event_type", ev.EventType, "user_id", userID)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
