package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/config"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/filter"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/gerrit"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/logger"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/notify"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/pipeline"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/reviewer"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/schedule"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/summary"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/tracker"
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the review service on its schedule",
		RunE:  runService,
	}

	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single review pass and exit",
		RunE:  runOnce,
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Test connectivity to Gerrit and the review CLI",
		RunE:  runCheck,
	}

	rootCmd.AddCommand(runCmd, onceCmd, checkCmd)
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}

// buildOrchestrator wires the pipeline from configuration. The returned
// closer owns the tracking store.
func buildOrchestrator(cfg *config.Config, log *logger.Logger) (*pipeline.Orchestrator, io.Closer, error) {
	var store tracker.Store
	switch cfg.Tracking.Backend {
	case "sqlite":
		s, err := tracker.NewSQLiteStore(cfg.Tracking.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening tracking store: %w", err)
		}
		store = s
	default:
		s, err := tracker.NewFileStore(cfg.Tracking.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening tracking store: %w", err)
		}
		if err := s.Watch(func(count int) {
			log.Infof("tracking file edited externally, reloaded %d entries", count)
		}); err != nil {
			log.Warnf("tracking file watch unavailable: %v", err)
		}
		store = s
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notifications.SlackWebhook != "" {
		notifier = notify.NewSlackNotifier(cfg.Notifications.SlackWebhook)
	}

	var content pipeline.ContentSource
	if cfg.Gerrit.HTTPBaseURL != "" {
		content = gerrit.NewContentFetcher(cfg.Gerrit.HTTPBaseURL, cfg.Summary.MaxContentBytes)
	}

	orch := pipeline.New(pipeline.Options{
		Source:      gerrit.New(cfg.Gerrit, log),
		Engine:      reviewer.New(cfg.Reviewer, log),
		Store:       store,
		Filter:      filter.New(cfg.Filter),
		Builder:     summary.NewBuilder(cfg.Summary),
		Content:     content,
		Notifier:    notifier,
		Log:         log,
		Delay:       cfg.Schedule.InterCallDelay(),
		CleanMarker: cfg.Reviewer.CleanMarker,
	})
	return orch, store, nil
}

// testConnections probes both external collaborators. A failure here is
// an unrecoverable startup error.
func testConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	client := gerrit.New(cfg.Gerrit, log)
	version, err := client.Version(ctx)
	if err != nil {
		return fmt.Errorf("gerrit connection test: %w", err)
	}
	log.Infof("gerrit reachable: %s", version)

	engine := reviewer.New(cfg.Reviewer, log)
	if err := engine.TestConnection(ctx); err != nil {
		return fmt.Errorf("review CLI test (may need re-authentication): %w", err)
	}
	log.Info("review CLI reachable")
	return nil
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := testConnections(ctx, cfg, log); err != nil {
		return err
	}

	orch, closer, err := buildOrchestrator(cfg, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	sched, err := schedule.New(cfg.Schedule, log)
	if err != nil {
		return err
	}

	log.Infof("service started: every %s plus fixed times %v",
		cfg.Schedule.Interval(), cfg.Schedule.FixedTimes)

	sched.Run(ctx, func(ctx context.Context) error {
		_, err := orch.RunPass(ctx)
		return err
	})

	log.Info("shutting down")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, closer, err := buildOrchestrator(cfg, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	outcome, err := orch.RunPass(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("pass complete: %s\n", outcome)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := testConnections(ctx, cfg, log); err != nil {
		return err
	}
	fmt.Println("all connections OK")
	return nil
}
