package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/CareWatch/internal/api"
	"github.com/BTreeMap/CareWatch/internal/genai"
	"github.com/BTreeMap/CareWatch/internal/memory"
	"github.com/BTreeMap/CareWatch/internal/notify"
	"github.com/BTreeMap/CareWatch/internal/routing"
	"github.com/BTreeMap/CareWatch/internal/scheduler"
	"github.com/BTreeMap/CareWatch/internal/sensors"
	"github.com/BTreeMap/CareWatch/internal/store"
	"github.com/BTreeMap/CareWatch/internal/sync"
	"github.com/BTreeMap/CareWatch/internal/weather"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CareWatch state data
	DefaultStateDir = "/var/lib/carewatch"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "carewatch.db"
	// DefaultShutdownTimeout bounds graceful shutdown of the HTTP server
	DefaultShutdownTimeout = 10 * time.Second
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping CareWatch with configured modules")
	if err := run(flags); err != nil {
		slog.Error("CareWatch failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CareWatch exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	RedisAddr   string
	APIAddr     string
	SweepCron   string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	openaiKey *string
	redisAddr *string
	apiAddr   *string
	sweepCron *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("CAREWATCH_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		APIAddr:     os.Getenv("API_ADDR"),
		SweepCron:   os.Getenv("SWEEP_SCHEDULE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CAREWATCH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CAREWATCH_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"REDIS_ADDR", config.RedisAddr,
		"API_ADDR", config.APIAddr,
		"SWEEP_SCHEDULE", config.SweepCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for CareWatch data (overrides $CAREWATCH_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the reminder store (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		redisAddr: flag.String("redis-addr", config.RedisAddr, "Redis broker address for sync and sensors (overrides $REDIS_ADDR)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sweepCron: flag.String("sweep-cron", config.SweepCron, "cron schedule for the reminder due sweep (overrides $SWEEP_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"redisAddr", *flags.redisAddr,
		"apiAddr", *flags.apiAddr,
		"sweepCron", *flags.sweepCron)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !isPostgresDSN(*flags.dbDSN) {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=")
}

// buildStore opens the reminder store selected by the DSN scheme.
func buildStore(dsn string, recorder memory.Recorder) (store.Store, error) {
	opts := []store.Option{store.WithDSN(dsn), store.WithRecorder(recorder)}
	if isPostgresDSN(dsn) {
		slog.Debug("Using Postgres reminder store")
		return store.NewPostgresStore(opts...)
	}
	slog.Debug("Using SQLite reminder store", "path", dsn)
	return store.NewSQLiteStore(opts...)
}

// run wires all modules together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeline := memory.NewTimeline()

	st, err := buildStore(*flags.dbDSN, timeline)
	if err != nil {
		return err
	}
	defer st.Close()

	// Publishing decorator broadcasts local mutations; the synchronizer holds
	// the plain store so applied remote events never re-broadcast.
	publisher := sync.NewPublisher(sync.WithAddr(*flags.redisAddr))
	defer publisher.Close()
	pubStore := sync.NewPublishingStore(st, publisher)

	synchronizer := sync.NewSynchronizer(st, sync.WithAddr(*flags.redisAddr), sync.WithSource(publisher.Source()))
	if err := synchronizer.Start(ctx); err != nil {
		slog.Warn("Reminder synchronization unavailable, running local-only", "error", err)
	} else {
		defer synchronizer.Stop()
	}

	monitor := sensors.NewMonitor(sensors.WithAddr(*flags.redisAddr))
	var vitals api.VitalsSource
	if err := monitor.Start(ctx); err != nil {
		slog.Warn("Sensor monitor unavailable, live vitals disabled", "error", err)
	} else {
		vitals = monitor
		defer monitor.Stop()
	}

	var advice routing.AdviceGenerator
	if *flags.openaiKey != "" {
		gaClient, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Warn("GenAI client unavailable, advice falls back to canned messages", "error", err)
		} else {
			advice = gaClient
		}
	} else {
		slog.Warn("No OpenAI API key configured, advice falls back to canned messages")
	}

	var notifier notify.Notifier
	if twilioClient, err := notify.NewClient(); err != nil {
		slog.Debug("Caregiver alerts disabled", "reason", err)
	} else {
		notifier = twilioClient
	}

	dispatcher := routing.NewDispatcher(pubStore, advice, timeline, timeline)
	hko := weather.NewClient()
	output := sync.NewOutput(sync.WithAddr(*flags.redisAddr))
	defer output.Close()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.ScheduleSweep(*flags.sweepCron, pubStore); err != nil {
		return err
	}

	server := api.NewServer(pubStore, dispatcher, hko, vitals, output, notifier, api.WithAddr(*flags.apiAddr))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
