package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// PrunerConfig configures scheduled pruning of superseded generations.
type PrunerConfig struct {
	// Keep is how many generations to retain for rollback. Default: 10.
	Keep int

	// Schedule is the cron expression for the sweep. Default: daily at
	// 03:30, offset from the audit sweep.
	Schedule string
}

// DefaultPrunerConfig returns the default pruner configuration.
func DefaultPrunerConfig() *PrunerConfig {
	return &PrunerConfig{
		Keep:     10,
		Schedule: "30 3 * * *",
	}
}

// Pruner runs scheduled generation sweeps against a policy store. The
// current generation is never pruned regardless of configuration.
type Pruner struct {
	store  Store
	config *PrunerConfig
	cron   *cron.Cron
	logger *slog.Logger
}

// NewPruner creates a generation pruner. Call Start to begin sweeping.
func NewPruner(st Store, config *PrunerConfig, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultPrunerConfig()
	}
	if config.Keep < 1 {
		config.Keep = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:  st,
		config: config,
		cron:   cron.New(),
		logger: logger.With("component", "store.pruner"),
	}
}

// Start schedules the sweep.
func (p *Pruner) Start() error {
	_, err := p.cron.AddFunc(p.config.Schedule, p.sweep)
	if err != nil {
		return err
	}
	p.cron.Start()
	p.logger.Info("generation pruner started",
		"schedule", p.config.Schedule,
		"keep", p.config.Keep,
	)
	return nil
}

// Stop halts scheduled sweeps, waiting for a running sweep to finish.
func (p *Pruner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

func (p *Pruner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pruned, err := p.store.PruneGenerations(ctx, p.config.Keep)
	if err != nil {
		p.logger.Error("generation sweep failed", "error", err)
		return
	}
	if pruned > 0 {
		p.logger.Info("generation sweep completed", "pruned", pruned, "keep", p.config.Keep)
	}
}
