// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// BlockerImpl implements domain.Blocker by killing blocked processes.
type BlockerImpl struct {
	processManager domain.ProcessManager
	logger         *zap.Logger
}

// NewBlocker creates a new work-mode blocker.
func NewBlocker(pm domain.ProcessManager, logger *zap.Logger) domain.Blocker {
	return &BlockerImpl{
		processManager: pm,
		logger:         logger,
	}
}

// Enforce kills every running process that matches an enabled blocked app of mode.
// Failures are collected per process; the sweep always completes.
func (b *BlockerImpl) Enforce(ctx context.Context, mode domain.WorkMode) (*domain.EnforcementResult, error) {
	start := time.Now()

	result := &domain.EnforcementResult{
		ModeID:     mode.ID,
		KilledPIDs: make([]int, 0),
		Errors:     make([]error, 0),
		ExecutedAt: start,
	}

	seen := make(map[int]bool)
	for _, app := range mode.BlockedApps {
		if !app.Enabled || app.ProcessName == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pids, err := b.processManager.FindByName(app.ProcessName)
		if err != nil {
			b.logger.Warn("failed to find processes",
				zap.String("pattern", app.ProcessName),
				zap.Error(err))
			result.Errors = append(result.Errors, fmt.Errorf("find %q: %w", app.ProcessName, err))
			continue
		}

		for _, pid := range pids {
			if seen[pid] || pid == b.processManager.GetCurrentPID() {
				continue
			}
			seen[pid] = true

			if err := b.processManager.Kill(pid); err != nil {
				b.logger.Warn("failed to kill process",
					zap.Int("pid", pid),
					zap.Error(err))
				result.Errors = append(result.Errors, fmt.Errorf("kill %d: %w", pid, err))
				continue
			}
			b.logger.Info("killed blocked app",
				zap.String("mode", mode.ID),
				zap.String("app", app.Name),
				zap.Int("pid", pid))
			result.KilledPIDs = append(result.KilledPIDs, pid)
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()

	return result, nil
}

// Ensure BlockerImpl implements domain.Blocker.
var _ domain.Blocker = (*BlockerImpl)(nil)
