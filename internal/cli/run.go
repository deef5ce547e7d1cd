package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evansbry000/SmartPlugApp/internal/alert"
	"github.com/evansbry000/SmartPlugApp/internal/config"
	"github.com/evansbry000/SmartPlugApp/internal/engine"
	"github.com/evansbry000/SmartPlugApp/internal/ephemeral"
	"github.com/evansbry000/SmartPlugApp/internal/httpapi"
	"github.com/evansbry000/SmartPlugApp/internal/metrics"
	"github.com/evansbry000/SmartPlugApp/internal/schedule"
	"github.com/evansbry000/SmartPlugApp/internal/store"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server and
// in-flight jobs.
const shutdownTimeout = 15 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// Ready, when set, is called with the HTTP listener address once the
	// service is up. Used by tests.
	Ready func(httpAddr string)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the replication service",
		Long: `Start the replication service.

Opens the durable SQLite store, subscribes to the MQTT device feed (when
mqtt.broker is set), mirrors status writes and events as they arrive, runs
the history snapshot and retention jobs on their cron schedules and serves
health, metrics and read endpoints over HTTP.

Examples:
  plugmirror run
  plugmirror run --config /etc/plugmirror --db /var/lib/plugmirror.db
  PLUGMIRROR_MQTT_BROKER=tcp://localhost:1883 plugmirror run -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides database.path)")

	return cmd
}

// service holds the wired components of a running process.
type service struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	metrics   *metrics.Collector
	tree      *ephemeral.Tree
	engine    *engine.Engine
	scheduler *schedule.Scheduler
	alerts    *alert.Publisher

	engineCancel context.CancelFunc
	engineDone   chan error
}

func runService(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
	slog.SetDefault(logger)

	logger.Info("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	svc, err := newService(cfg, logger, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start service", err)
	}
	defer svc.close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live feed.
	if cfg.MQTT.Broker != "" {
		client, err := ephemeral.Connect(ctx, cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to MQTT broker", err)
		}
		defer client.Disconnect(250)

		bridge := ephemeral.NewBridge(client, svc.tree,
			ephemeral.WithTopicPrefix(cfg.MQTT.TopicPrefix),
			ephemeral.WithQoS(byte(cfg.MQTT.QoS)),
			ephemeral.WithLogger(logger),
		)
		if err := bridge.Start(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to subscribe to device feed", err)
		}
		defer bridge.Stop()
	} else {
		logger.Warn("mqtt.broker not set, running without a live device feed")
	}

	// Ops API.
	var srv *http.Server
	httpDone := make(chan error, 1)
	httpAddr := ""
	if cfg.HTTP.Addr != "" {
		ln, err := net.Listen("tcp", cfg.HTTP.Addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
		httpAddr = ln.Addr().String()
		srv = &http.Server{
			Handler:           httpapi.NewRouter(st, svc.metrics, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() { httpDone <- srv.Serve(ln) }()
		logger.Info("http listening", "addr", httpAddr)
	}

	engineDone := svc.startEngine()

	svc.scheduler.Start()

	fmt.Fprintln(cmd.OutOrStdout(), "plugmirror started. Press Ctrl-C to stop.")
	if opts.Ready != nil {
		opts.Ready(httpAddr)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case err := <-httpDone:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitFailure, "http server error", err)
		}
	case err := <-engineDone:
		engineDone <- err
		if err != nil {
			runErr = WrapExitError(ExitFailure, "engine error", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}
	if err := svc.scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown failed", "error", err)
	}
	if err := svc.stopEngine(shutdownTimeout); err != nil {
		logger.Error("engine shutdown incomplete", "error", err)
	}

	logger.Info("plugmirror stopped")
	return runErr
}

// newService wires the engine, its jobs and optional alert publishing
// around an open store.
func newService(cfg config.Config, logger *slog.Logger, st *store.Store) (*service, error) {
	svc := &service{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: metrics.New(),
		tree:    ephemeral.NewTree(),
	}

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithRecorder(svc.metrics),
		engine.WithFallbackDevice(cfg.Events.FallbackDevice),
		engine.WithRetentionWindow(cfg.Retention.Window),
		engine.WithPageSize(cfg.Retention.PageSize),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		svc.alerts = alert.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		engOpts = append(engOpts, engine.WithAlerts(svc.alerts))
		logger.Info("emergency alerts enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	svc.engine = engine.New(
		engine.NewChangeMirror(st, st, engOpts...),
		engine.NewEventMirror(st, engOpts...),
		engOpts...,
	)
	svc.tree.Subscribe(svc.engine)

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	svc.scheduler = schedule.New(loc,
		schedule.WithTimeout(cfg.Schedule.JobTimeout),
		schedule.WithLogger(logger),
	)

	snapshotter := engine.NewHistorySnapshotter(svc.tree, st, engOpts...)
	sweeper := engine.NewRetentionSweeper(st, engOpts...)
	if err := svc.scheduler.Add(engine.JobSnapshot, cfg.Schedule.Snapshot, func(ctx context.Context) {
		snapshotter.Run(ctx)
	}); err != nil {
		return nil, err
	}
	if err := svc.scheduler.Add(engine.JobRetention, cfg.Schedule.Retention, func(ctx context.Context) {
		sweeper.Run(ctx)
	}); err != nil {
		return nil, err
	}
	return svc, nil
}

// startEngine runs the engine on a context of its own, so a shutdown
// signal does not abort writes still in the queue.
func (s *service) startEngine() chan error {
	ctx, cancel := context.WithCancel(context.Background())
	s.engineCancel = cancel
	s.engineDone = make(chan error, 1)
	go func() { s.engineDone <- s.engine.Run(ctx) }()
	return s.engineDone
}

// stopEngine closes the trigger queue and waits for it to drain. Writes still
// queued after timeout are abandoned.
func (s *service) stopEngine(timeout time.Duration) error {
	s.engine.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-s.engineDone:
	case <-timer.C:
		s.logger.Warn("engine drain timed out", "pending", s.engine.Pending())
		s.engineCancel()
		err = <-s.engineDone
	}
	s.engineCancel()
	return err
}

func (s *service) close() {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.Close(); err != nil {
		s.logger.Error("error closing alert publisher", "error", err)
	}
}
