// Package memory defines the memory collaborator ports used by the routing
// and reminder subsystems, plus an in-process timeline implementation.
//
// The semantic retrieval backend (vector store, embeddings) is an external
// collaborator; components depend only on the Recorder and Retriever
// interfaces so it stays swappable.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
)

// Event is one entry on the short-term memory timeline.
type Event struct {
	UserID     string
	Content    string
	EventType  string
	Importance float64
	CreatedAt  time.Time
	Extra      map[string]any
}

// Recorder accepts system events for later retrieval. All callers treat
// recording as best-effort: a failed write must never abort the operation
// that produced the event.
type Recorder interface {
	// AddEvent records a generic event on the timeline.
	AddEvent(ctx context.Context, ev Event) error

	// LogReminderEvent records a reminder lifecycle transition.
	LogReminderEvent(ctx context.Context, userID string, reminderID int64, status string, note string) error
}

// RetrievedContext is the bundle handed to the advice-generation path.
type RetrievedContext struct {
	Knowledge []string // health knowledge snippets
	ShortTerm []string // recent timeline events
	Profile   string   // user profile text, empty if unknown
}

// Retriever resolves the prompt context for a state snapshot.
type Retriever interface {
	Retrieve(ctx context.Context, state models.StateSnapshot) (RetrievedContext, error)
}

// NewReminderEventContent renders the canonical timeline text for a reminder
// lifecycle transition.
func NewReminderEventContent(reminderID int64, status, note string) string {
	content := fmt.Sprintf("Reminder %d status => %s", reminderID, status)
	if note != "" {
		content += ": " + note
	}
	return content
}
