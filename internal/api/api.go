// Package api provides HTTP handlers and the main API server logic for CareWatch.
//
// It exposes RESTful endpoints for the watch state evaluation loop and for
// reminder management. The API integrates with the routing, store, weather,
// sensors and sync modules.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/notify"
	"github.com/BTreeMap/CareWatch/internal/routing"
	"github.com/BTreeMap/CareWatch/internal/store"
	"github.com/BTreeMap/CareWatch/internal/sync"
)

// Server defaults.
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8000"
	// DefaultUserID is the watch wearer used when a request names none.
	DefaultUserID = "user_001"
	// DefaultRequestTimeout bounds one watch-state evaluation.
	DefaultRequestTimeout = 30 * time.Second
)

// WeatherSource supplies current observatory conditions for live snapshots.
type WeatherSource interface {
	Current(ctx context.Context) (models.Weather, error)
}

// VitalsSource supplies the latest wearable readings for live snapshots.
type VitalsSource interface {
	Snapshot() models.Vitals
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr     string
	UserID   string
	UserName string
	AlertTo  string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithUserID sets the default watch wearer id.
func WithUserID(id string) Option {
	return func(o *Opts) { o.UserID = id }
}

// WithUserName sets the display name wrapped into watch-state responses.
func WithUserName(name string) Option {
	return func(o *Opts) { o.UserName = name }
}

// WithAlertTo sets the caregiver number that receives high-risk alerts.
func WithAlertTo(to string) Option {
	return func(o *Opts) { o.AlertTo = to }
}

// Server wires the HTTP surface to the routing engine and the reminder store.
type Server struct {
	addr       string
	userID     string
	userName   string
	alertTo    string
	st         store.Store
	dispatcher *routing.Dispatcher
	weather    WeatherSource
	vitals     VitalsSource
	output     *sync.Output
	notifier   notify.Notifier

	httpServer *http.Server
}

// NewServer creates the API server. Weather, vitals, output and notifier are
// optional; the watch-state handler degrades without them.
func NewServer(st store.Store, dispatcher *routing.Dispatcher, weather WeatherSource, vitals VitalsSource, output *sync.Output, notifier notify.Notifier, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("API_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.UserID == "" {
		cfg.UserID = os.Getenv("WATCH_USER_ID")
	}
	if cfg.UserID == "" {
		cfg.UserID = DefaultUserID
	}
	if cfg.UserName == "" {
		cfg.UserName = os.Getenv("WATCH_USER_NAME")
	}
	if cfg.AlertTo == "" {
		cfg.AlertTo = os.Getenv("ALERT_TO_NUMBER")
	}
	return &Server{
		addr:       cfg.Addr,
		userID:     cfg.UserID,
		userName:   cfg.UserName,
		alertTo:    cfg.AlertTo,
		st:         st,
		dispatcher: dispatcher,
		weather:    weather,
		vitals:     vitals,
		output:     output,
		notifier:   notifier,
	}
}

// Handler returns the routed HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/watch_state", s.watchStateHandler)
	mux.HandleFunc("/reminders", s.remindersHandler)
	mux.HandleFunc("/reminders/complete", s.completeReminderHandler)
	mux.HandleFunc("/reminders/sweep", s.sweepHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultRequestTimeout,
		WriteTimeout: DefaultRequestTimeout,
	}
	slog.Info("Server.Run: CareWatch API listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
