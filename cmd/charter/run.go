package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"praxis-hq/charter/pkg/audit"
	"praxis-hq/charter/pkg/cli"
	"praxis-hq/charter/pkg/config"
	"praxis-hq/charter/pkg/conflict"
	"praxis-hq/charter/pkg/pipeline"
	"praxis-hq/charter/pkg/policy/evaluator"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/review"
	"praxis-hq/charter/pkg/server"
	"praxis-hq/charter/pkg/solver"
	"praxis-hq/charter/pkg/synth"
	"praxis-hq/charter/pkg/telemetry/logging"
	"praxis-hq/charter/pkg/telemetry/metrics"
	"praxis-hq/charter/pkg/verify"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Charter server",
	Long: `Start the Charter server with the specified configuration.

The server exposes the principle ingestion API, the runtime decision
endpoint, and the review queue. Principles ingested while the server is
running are compiled, verified, and promoted into a new policy generation.

Examples:
  # Start with default config
  charter run

  # Start with custom config
  charter run --config /etc/charter/config.yaml

  # Override listen address
  charter run --listen 0.0.0.0:8086

  # Validate config without starting the server
  charter run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Charter v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx := cli.SetupSignalHandler()

	// Metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	// Audit trail
	sink, auditCleanup, err := buildAuditSink(cfg, collector, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer auditCleanup()

	// Principle store
	principles, err := buildPrincipleStore(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer principles.Close()
	fmt.Printf("✓ Principle store ready (%s)\n", cfg.Principles.Backend)

	// Policy store
	policies, err := buildPolicyStore(cfg, sink, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer policies.Close()
	fmt.Printf("✓ Policy store ready (%s)\n", cfg.Policy.Backend)

	// Generation pruning
	if cfg.Policy.PruneSchedule != "" {
		pruner := store.NewPruner(policies, &store.PrunerConfig{
			Keep:     cfg.Policy.KeepGenerations,
			Schedule: cfg.Policy.PruneSchedule,
		}, logger)
		if err := pruner.Start(); err != nil {
			slog.Warn("failed to start generation pruner", "error", err)
		} else {
			defer pruner.Stop()
		}
	}

	// Vocabulary: built-in fields extended from configuration
	vocab := predicate.DefaultVocabulary()
	for field, ft := range cfg.Vocabulary {
		vocab.Fields[field] = predicate.FieldType(ft)
	}

	// Compilation pipeline
	mangle := solver.NewMangleSolver(vocab, logger)
	queue := review.NewQueue(sink, logger)

	var suggester synth.Suggester
	if cfg.Synth.Suggester.Enabled {
		gs, err := synth.NewGenAISuggester(ctx, synth.GenAISuggesterConfig{
			APIKey: cfg.Synth.Suggester.APIKey,
			Model:  cfg.Synth.Suggester.Model,
		}, vocab)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to create suggester: %w", err))
		}
		suggester = gs
		fmt.Printf("✓ Suggester enabled (%s)\n", cfg.Synth.Suggester.Model)
	}

	synthesizer := synth.New(policies, suggester, vocab, synth.Config{
		ConfidenceThreshold: cfg.Synth.ConfidenceThreshold,
		Parallelism:         cfg.Synth.Parallelism,
	}, logger)

	verifier := verify.NewEngine(mangle, queue, verify.Config{
		AutomatedTimeout:     cfg.Verify.AutomatedTimeout,
		RigorousTimeout:      cfg.Verify.RigorousTimeout,
		AllowVacuous:         cfg.Verify.AllowVacuous,
		SafetyCriticalScopes: cfg.Verify.SafetyCriticalScopes,
	}, logger)

	var overrides *conflict.Overrides
	if cfg.Conflict.OverridesPath != "" {
		overrides, err = conflict.NewOverrides(cfg.Conflict.OverridesPath, cfg.Conflict.Watch, logger)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to load precedence overrides: %w", err))
		}
		defer overrides.Close()
		fmt.Printf("✓ Precedence overrides loaded (%s)\n", cfg.Conflict.OverridesPath)
	}

	detector := conflict.NewDetector(mangle, logger)
	resolver := conflict.NewResolver(policies, principles, overrides, queue, logger)

	var pm *metrics.PipelineMetrics
	if collector != nil {
		pm = collector.Pipeline()
	}
	compiler := pipeline.New(principles, policies, synthesizer, verifier,
		detector, resolver, queue, pm, pipeline.Config{
			Parallelism: cfg.Synth.Parallelism,
		}, logger)

	// Resume chains interrupted by a previous shutdown. The rule state
	// machine makes replays idempotent.
	if err := replayActive(ctx, principles, compiler); err != nil {
		slog.Warn("startup replay incomplete", "error", err)
	}

	// Runtime evaluator
	var dm *metrics.DecisionMetrics
	if collector != nil {
		dm = collector.Decision()
	}
	eval, err := evaluator.New(ctx, policies, cfg.Evaluator, dm, logger)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to start evaluator: %w", err))
	}
	defer eval.Close()
	if eval.Ready() {
		fmt.Printf("✓ Evaluator ready (generation %d)\n", eval.Generation())
	} else {
		fmt.Println("✓ Evaluator started (no active generation yet)")
	}

	srv := server.NewServer(&cfg.Server, eval, principles, policies, compiler, queue, collector, logger)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until signal or shutdown.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// loadConfig reads the configured file, falling back to built-in defaults
// when the default config file is absent.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && !f.Changed {
			return config.NewDefault(), nil
		}
		return nil, cli.NewConfigError("", fmt.Sprintf("config file not found: %s", cfgFile))
	}
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg, nil
}

// buildAuditSink assembles the audit trail: storage backend, async recorder,
// and retention sweeper. The returned cleanup stops all of them.
func buildAuditSink(cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (audit.Sink, func(), error) {
	if !cfg.Audit.Enabled {
		return audit.NopSink{}, func() {}, nil
	}

	var storage audit.Storage
	var err error
	switch cfg.Audit.Backend {
	case "sqlite":
		storage, err = audit.NewSQLiteStorage(&audit.SQLiteConfig{
			Path: cfg.Audit.SQLitePath,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit storage: %w", err)
		}
	case "memory":
		storage = audit.NewMemoryStorage()
	default:
		return nil, nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}

	recorder := audit.NewRecorder(storage, &audit.RecorderConfig{
		Buffer:       cfg.Audit.Buffer,
		WriteTimeout: cfg.Audit.WriteTimeout,
	}, logger)

	retention := audit.NewRetention(storage, &audit.RetentionConfig{
		MaxAge:   time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour,
		Schedule: cfg.Audit.RetentionSchedule,
	}, logger)
	if err := retention.Start(); err != nil {
		slog.Warn("failed to start audit retention", "error", err)
		retention = nil
	}

	cleanup := func() {
		if retention != nil {
			retention.Stop()
		}
		_ = recorder.Close()
		_ = storage.Close()
	}

	var sink audit.Sink = recorder
	if collector != nil {
		sink = &meteredSink{recorder: recorder, metrics: collector.Audit()}
	}
	return sink, cleanup, nil
}

func buildPrincipleStore(cfg *config.Config, logger *slog.Logger) (principle.Store, error) {
	switch cfg.Principles.Backend {
	case "sqlite":
		return principle.NewSQLiteStore(&principle.SQLiteConfig{
			Path:        cfg.Principles.SQLitePath,
			BusyTimeout: cfg.Principles.BusyTimeout,
		}, logger)
	case "memory":
		return principle.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported principle backend: %s", cfg.Principles.Backend)
	}
}

func buildPolicyStore(cfg *config.Config, sink audit.Sink, logger *slog.Logger) (store.Store, error) {
	switch cfg.Policy.Backend {
	case "sqlite":
		return store.NewSQLiteStore(&store.SQLiteConfig{
			Path:        cfg.Policy.SQLitePath,
			BusyTimeout: cfg.Policy.BusyTimeout,
		}, sink, logger)
	case "memory":
		return store.NewMemoryStore(sink), nil
	default:
		return nil, fmt.Errorf("unsupported policy backend: %s", cfg.Policy.Backend)
	}
}

// replayActive re-runs the compilation chain for every active principle so
// rules stranded mid-pipeline by a crash or shutdown advance to a terminal
// state before the server accepts traffic.
func replayActive(ctx context.Context, principles principle.Store, compiler *pipeline.Pipeline) error {
	active, err := principles.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}
	ids := make([]string, 0, len(active))
	for _, p := range active {
		ids = append(ids, p.ID)
	}
	return compiler.PrinciplesChanged(ctx, ids)
}

// meteredSink wraps the recorder with Prometheus counters. The recorder
// reports drops only through its running total, so the wrapper diffs it.
type meteredSink struct {
	recorder *audit.Recorder
	metrics  *metrics.AuditMetrics

	mu      sync.Mutex
	dropped int64
}

func (s *meteredSink) Record(event audit.Event) {
	s.recorder.Record(event)

	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.recorder.Dropped(); d > s.dropped {
		s.dropped = d
		s.metrics.RecordDropped()
		return
	}
	s.metrics.RecordEvent(string(event.EntityType))
}
