package memory

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
)

// Default limits for the in-process timeline.
const (
	// DefaultCapacity bounds how many events the timeline retains.
	DefaultCapacity = 256
	// DefaultRetrieveLimit is how many recent events Retrieve returns.
	DefaultRetrieveLimit = 6
)

// Opts holds configuration options for the timeline.
type Opts struct {
	Capacity      int
	RetrieveLimit int
	Knowledge     []string
	ProfilePath   string
}

// Option defines a configuration option for the timeline.
type Option func(*Opts)

// WithCapacity overrides the maximum number of retained events.
func WithCapacity(n int) Option {
	return func(o *Opts) { o.Capacity = n }
}

// WithRetrieveLimit overrides how many events Retrieve returns.
func WithRetrieveLimit(k int) Option {
	return func(o *Opts) { o.RetrieveLimit = k }
}

// WithKnowledge seeds static health knowledge snippets.
func WithKnowledge(snippets []string) Option {
	return func(o *Opts) { o.Knowledge = snippets }
}

// WithProfilePath points at a plain-text user profile file.
func WithProfilePath(path string) Option {
	return func(o *Opts) { o.ProfilePath = path }
}

// Timeline is an in-process Recorder/Retriever. It keeps a bounded,
// importance-tagged window of recent events per process; it is the default
// collaborator when no external memory service is configured.
type Timeline struct {
	mu      sync.Mutex
	events  []Event
	cap     int
	limit   int
	know    []string
	profile string
}

// NewTimeline creates a timeline memory with the given options.
func NewTimeline(opts ...Option) *Timeline {
	cfg := Opts{Capacity: DefaultCapacity, RetrieveLimit: DefaultRetrieveLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ProfilePath == "" {
		cfg.ProfilePath = os.Getenv("USER_PROFILE_PATH")
	}
	var profile string
	if cfg.ProfilePath != "" {
		data, err := os.ReadFile(cfg.ProfilePath)
		if err != nil {
			slog.Warn("Timeline: user profile not readable", "error", err, "path", cfg.ProfilePath)
		} else {
			profile = strings.TrimSpace(string(data))
		}
	}
	return &Timeline{
		cap:     cfg.Capacity,
		limit:   cfg.RetrieveLimit,
		know:    cfg.Knowledge,
		profile: profile,
	}
}

// AddEvent records an event, evicting the oldest entry when full.
func (t *Timeline) AddEvent(ctx context.Context, ev Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Importance == 0 {
		ev.Importance = 1.0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
	if len(t.events) > t.cap {
		t.events = t.events[len(t.events)-t.cap:]
	}
	slog.Debug("Timeline.AddEvent: recorded", "user_id", ev.UserID, "event_type", ev.EventType)
	return nil
}

// LogReminderEvent records a reminder lifecycle transition. Ignored and
// overdue transitions are weighted up so they outlast routine events.
func (t *Timeline) LogReminderEvent(ctx context.Context, userID string, reminderID int64, status string, note string) error {
	importance := 1.0
	if status == "ignored" || status == "overdue" {
		importance = 1.5
	}
	return t.AddEvent(ctx, Event{
		UserID:     userID,
		Content:    NewReminderEventContent(reminderID, status, note),
		EventType:  "reminder_event",
		Importance: importance,
		Extra:      map[string]any{"reminder_id": reminderID, "status": status},
	})
}

// Retrieve returns the configured knowledge snippets, the most recent events
// for the snapshot's user, and the profile text.
func (t *Timeline) Retrieve(ctx context.Context, state models.StateSnapshot) (RetrievedContext, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var recent []string
	for i := len(t.events) - 1; i >= 0 && len(recent) < t.limit; i-- {
		ev := t.events[i]
		if state.UserID != "" && ev.UserID != "" && ev.UserID != state.UserID {
			continue
		}
		recent = append(recent, ev.Content)
	}
	// restore chronological order
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	return RetrievedContext{
		Knowledge: append([]string(nil), t.know...),
		ShortTerm: recent,
		Profile:   t.profile,
	}, nil
}
