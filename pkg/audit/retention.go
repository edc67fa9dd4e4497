package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures scheduled pruning of old audit events.
type RetentionConfig struct {
	// MaxAge is how long events are kept. Default: 90 days.
	MaxAge time.Duration

	// Schedule is the cron expression for the sweep. Default: daily at 03:00.
	Schedule string
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		MaxAge:   90 * 24 * time.Hour,
		Schedule: "0 3 * * *",
	}
}

// Retention runs scheduled prune sweeps against audit storage.
type Retention struct {
	storage Storage
	config  *RetentionConfig
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewRetention creates a retention sweeper. Call Start to begin sweeping.
func NewRetention(storage Storage, config *RetentionConfig, logger *slog.Logger) *Retention {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		storage: storage,
		config:  config,
		cron:    cron.New(),
		logger:  logger.With("component", "audit.retention"),
	}
}

// Start schedules the sweep.
func (r *Retention) Start() error {
	_, err := r.cron.AddFunc(r.config.Schedule, r.sweep)
	if err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("audit retention started",
		"schedule", r.config.Schedule,
		"max_age", r.config.MaxAge,
	)
	return nil
}

// Stop halts scheduled sweeps, waiting for a running sweep to finish.
func (r *Retention) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Retention) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-r.config.MaxAge)
	pruned, err := r.storage.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Error("audit retention sweep failed", "error", err)
		return
	}
	if pruned > 0 {
		r.logger.Info("audit retention sweep completed", "pruned", pruned, "cutoff", cutoff)
	}
}
