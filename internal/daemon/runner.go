// Package daemon implements the long-running tracker process.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
)

// Tracker is the engine surface the runner drives.
type Tracker interface {
	Start()
	Stop()
	SetWorkModeActive(active bool)
}

// Exporter pushes today's usage to the remote table.
type Exporter interface {
	ExportToday(ctx context.Context) (*domain.ExportSummary, error)
}

// RunnerConfig holds runner loop timings.
type RunnerConfig struct {
	HeartbeatInterval time.Duration // How often to refresh the pid file heartbeat
	EnforceInterval   time.Duration // How often to kill blocked apps while a work mode is active
	ExportInterval    time.Duration // How often to auto-export (when an exporter is set)
	ExportTimeout     time.Duration // Upper bound for one export
}

// DefaultRunnerConfig returns default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		HeartbeatInterval: 30 * time.Second,
		EnforceInterval:   5 * time.Second,
		ExportInterval:    30 * time.Minute,
		ExportTimeout:     time.Minute,
	}
}

// Runner owns one tracking session: it holds the instance lock, runs the
// tracker, enforces the active work mode and auto-exports on a schedule.
type Runner struct {
	config   RunnerConfig
	tracker  Tracker
	registry domain.InstanceRegistry
	blocker  domain.Blocker
	exporter Exporter // nil disables auto-export
	clock    domain.Clock
	instance domain.Instance
	logger   *zap.Logger

	mu       sync.Mutex
	workMode *domain.WorkMode
}

// NewRunner creates a new runner.
func NewRunner(
	config RunnerConfig,
	tracker Tracker,
	registry domain.InstanceRegistry,
	blocker domain.Blocker,
	exporter Exporter,
	clock domain.Clock,
	instance domain.Instance,
	logger *zap.Logger,
) *Runner {
	defaults := DefaultRunnerConfig()
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if config.EnforceInterval <= 0 {
		config.EnforceInterval = defaults.EnforceInterval
	}
	if config.ExportInterval <= 0 {
		config.ExportInterval = defaults.ExportInterval
	}
	if config.ExportTimeout <= 0 {
		config.ExportTimeout = defaults.ExportTimeout
	}
	return &Runner{
		config:   config,
		tracker:  tracker,
		registry: registry,
		blocker:  blocker,
		exporter: exporter,
		clock:    clock,
		instance: instance,
		logger:   logger,
	}
}

// Run starts tracking and blocks until ctx is canceled. On return the
// running session has been flushed and the instance lock released.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.registry.Acquire(r.instance); err != nil {
		r.logger.Error("failed to acquire instance lock", zap.Error(err))
		return err
	}
	defer func() {
		if err := r.registry.Release(); err != nil {
			r.logger.Warn("failed to release instance lock", zap.Error(err))
		}
	}()

	r.logger.Info("tracker daemon started",
		zap.Int("pid", r.instance.PID),
		zap.String("version", r.instance.AppVersion))

	r.tracker.Start()
	defer r.tracker.Stop()

	// Enforce immediately when started in a work mode
	r.runEnforcement(ctx)

	var exportC <-chan time.Time
	if r.exporter != nil {
		exportTicker := r.clock.NewTicker(r.config.ExportInterval)
		defer exportTicker.Stop()
		exportC = exportTicker.C()
	}

	heartbeatTicker := r.clock.NewTicker(r.config.HeartbeatInterval)
	enforceTicker := r.clock.NewTicker(r.config.EnforceInterval)
	defer func() {
		heartbeatTicker.Stop()
		enforceTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("tracker daemon stopping")
			return ctx.Err()

		case <-heartbeatTicker.C():
			if err := r.registry.Heartbeat(); err != nil {
				r.logger.Warn("failed to update heartbeat", zap.Error(err))
			}

		case <-enforceTicker.C():
			r.runEnforcement(ctx)

		case <-exportC:
			r.runExport(ctx)
		}
	}
}

// SetWorkMode activates mode, or deactivates work mode when mode is nil.
// Safe to call before or during Run.
func (r *Runner) SetWorkMode(mode *domain.WorkMode) {
	r.mu.Lock()
	prev := r.workMode
	if mode != nil {
		m := *mode
		r.workMode = &m
	} else {
		r.workMode = nil
	}
	r.mu.Unlock()

	r.tracker.SetWorkModeActive(mode != nil)

	switch {
	case mode != nil && (prev == nil || prev.ID != mode.ID):
		r.logger.Info("work mode activated",
			zap.String("mode", mode.ID),
			zap.Strings("blocks", policy.EnabledProcessNames(*mode)))
	case mode == nil && prev != nil:
		r.logger.Info("work mode deactivated", zap.String("mode", prev.ID))
	}
}

// WorkMode returns the active work mode, nil when none.
func (r *Runner) WorkMode() *domain.WorkMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.workMode == nil {
		return nil
	}
	m := *r.workMode
	return &m
}

// runEnforcement kills the active mode's blocked apps.
func (r *Runner) runEnforcement(ctx context.Context) {
	mode := r.WorkMode()
	if mode == nil || r.blocker == nil {
		return
	}

	result, err := r.blocker.Enforce(ctx, *mode)
	if err != nil {
		r.logger.Error("enforcement failed", zap.Error(err))
		return
	}

	if len(result.KilledPIDs) > 0 || len(result.Errors) > 0 {
		r.logger.Info("enforcement completed",
			zap.String("mode", mode.ID),
			zap.Int("processes_killed", len(result.KilledPIDs)),
			zap.Int("errors", len(result.Errors)))
	}
}

// runExport pushes today's live usage. Failures are retried on the next tick.
func (r *Runner) runExport(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.config.ExportTimeout)
	defer cancel()

	summary, err := r.exporter.ExportToday(ctx)
	if err != nil {
		r.logger.Warn("auto export failed", zap.Error(err))
		return
	}
	r.logger.Debug("auto export completed",
		zap.String("date", summary.Date),
		zap.Int("rows", summary.Rows))
}
