package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// ErrNotRunning is returned when no live tracker is recorded.
var ErrNotRunning = errors.New("tracker is not running")

// Status describes the recorded tracker instance.
type Status struct {
	Instance *domain.Instance
	Running  bool
	// Stale is set when a pid file exists but its process is gone.
	Stale bool
}

// ReadStatus reports whether a tracker is running.
func ReadStatus(registry domain.InstanceRegistry, pm domain.ProcessManager) (Status, error) {
	inst, err := registry.Current()
	if err != nil {
		return Status{}, err
	}
	if inst == nil {
		return Status{}, nil
	}

	running := pm.IsRunning(inst.PID)
	return Status{Instance: inst, Running: running, Stale: !running}, nil
}

// StopRunning asks the running tracker to exit and waits until it has.
// SIGTERM lets the tracker flush its open session before exiting.
func StopRunning(ctx context.Context, registry domain.InstanceRegistry, pm domain.ProcessManager, poll time.Duration) (*domain.Instance, error) {
	status, err := ReadStatus(registry, pm)
	if err != nil {
		return nil, err
	}
	if !status.Running {
		return status.Instance, ErrNotRunning
	}

	inst := status.Instance
	if err := pm.Terminate(inst.PID); err != nil {
		return inst, fmt.Errorf("terminate pid %d: %w", inst.PID, err)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for pm.IsRunning(inst.PID) {
		select {
		case <-ctx.Done():
			return inst, fmt.Errorf("waiting for pid %d to exit: %w", inst.PID, ctx.Err())
		case <-ticker.C:
		}
	}
	return inst, nil
}
