package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/credit-monitor/internal/config"
	"github.com/ogulcanaydogan/credit-monitor/pkg/alerts"
	"github.com/ogulcanaydogan/credit-monitor/pkg/fetcher"
	"github.com/ogulcanaydogan/credit-monitor/pkg/monitor"
	"github.com/ogulcanaydogan/credit-monitor/pkg/scheduler"
	"github.com/ogulcanaydogan/credit-monitor/pkg/session"
	"github.com/ogulcanaydogan/credit-monitor/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ccm",
	Short: "Credit monitor - adaptive polling of an API credit balance",
	Long: `ccm checks a remote API credit balance on an adaptive schedule.
It polls more often as the balance approaches configured limits, alerts once
per limit crossed, and recovers from failed checks without operator action.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.ccm/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (*storage.SQLite, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initNotifier creates the rate-limited alert notifier selected by config.
func initNotifier(cfg *config.Config) alerts.Notifier {
	var n alerts.Notifier
	switch cfg.Alerts.Format {
	case config.FormatWebhook:
		n = alerts.NewWebhookNotifier(cfg.Alerts.WebhookSecret)
	default:
		n = alerts.NewSlackNotifier()
	}
	return alerts.NewLimited(n, cfg.Alerts.RatePerMinute, 1)
}

// app is a fully wired monitor.
type app struct {
	store   *storage.SQLite
	session *session.Manager
	sched   *scheduler.Scheduler
	monitor *monitor.Service
	logger  *slog.Logger
}

// initApp wires storage, session, executor, scheduler and service.
func initApp(cfg *config.Config) (*app, error) {
	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	httpFetcher := session.NewHTTPFetcher(session.HTTPConfig{
		SessionURL: cfg.Fetch.SessionURL,
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    cfg.Fetch.Timeout,
	}, logger.With("component", "session"))
	mgr := session.NewManager(httpFetcher, logger.With("component", "session"))

	executor := fetcher.NewExecutor(mgr, fetcher.Options{
		MaxRetries: cfg.Fetch.MaxRetries,
		RetryDelay: cfg.Fetch.RetryDelay,
	}, logger.With("component", "fetcher"))

	sched := scheduler.New(store, executor, initNotifier(cfg), scheduler.Options{
		RecoveryInterval: cfg.Scheduler.RecoveryInterval,
	}, logger.With("component", "scheduler"))

	return &app{
		store:   store,
		session: mgr,
		sched:   sched,
		monitor: monitor.NewService(store, sched, logger),
		logger:  logger,
	}, nil
}

// Close stops the scheduler, waits for background checks and releases the
// session and database.
func (a *app) Close() {
	a.sched.Stop()
	a.sched.Wait()
	if err := a.session.Close(); err != nil {
		a.logger.Error("close session", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("close storage", "error", err)
	}
}
