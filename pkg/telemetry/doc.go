// Package telemetry provides observability for Charter.
//
// # Components
//
//   - logging: structured slog logging with request ID propagation
//   - metrics: Prometheus metric groups and the scrape handler
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
//	if err != nil {
//		return err
//	}
//	slog.SetDefault(logger)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle("GET "+collector.Path(), collector.Handler())
//
// Metric groups hang off the collector: Decision() for the runtime
// evaluator, Pipeline() for the compilation chain, Audit() for the audit
// recorder. Every group is nil-safe in its consumers, so tests and
// metrics-disabled deployments pass nil.
package telemetry
