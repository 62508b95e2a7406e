package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

const (
	lockFileName = "appusage.lock"
	pidFileName  = "appusage.pid"
)

// ErrAlreadyRunning is returned by Acquire when another tracker holds the lock.
var ErrAlreadyRunning = errors.New("tracker already running")

// InstanceLock implements domain.InstanceRegistry with an exclusive flock on
// <data_dir>/appusage.lock and a JSON record in <data_dir>/appusage.pid.
// The kernel drops the lock when the holder dies, so a stale pid file never
// blocks a new tracker.
type InstanceLock struct {
	lockPath string
	pidPath  string

	mu       sync.Mutex
	lockFile *os.File
	inst     *domain.Instance
}

// NewInstanceLock creates a lock rooted at dataDir.
func NewInstanceLock(dataDir string) *InstanceLock {
	return &InstanceLock{
		lockPath: filepath.Join(dataDir, lockFileName),
		pidPath:  filepath.Join(dataDir, pidFileName),
	}
}

// PIDPath returns the pid file location.
func (l *InstanceLock) PIDPath() string {
	return l.pidPath
}

// Acquire takes the lock without blocking and records inst.
func (l *InstanceLock) Acquire(inst domain.Instance) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lockFile != nil {
		return ErrAlreadyRunning
	}

	if err := os.MkdirAll(filepath.Dir(l.lockPath), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if inst.Heartbeat.IsZero() {
		inst.Heartbeat = inst.StartedAt
	}
	if err := l.atomicWrite(&inst); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return err
	}

	l.lockFile = f
	l.inst = &inst
	return nil
}

// Heartbeat updates timestamp for liveness check.
func (l *InstanceLock) Heartbeat() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inst == nil {
		return errors.New("instance lock not held")
	}
	l.inst.Heartbeat = time.Now()
	return l.atomicWrite(l.inst)
}

// Current returns the recorded instance, nil when no pid file exists.
func (l *InstanceLock) Current() (*domain.Instance, error) {
	data, err := os.ReadFile(l.pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var inst domain.Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("corrupt pid file: %w", err)
	}
	return &inst, nil
}

// Held reports whether any process currently holds the lock.
func (l *InstanceLock) Held() bool {
	l.mu.Lock()
	mine := l.lockFile != nil
	l.mu.Unlock()
	if mine {
		return true
	}

	f, err := os.OpenFile(l.lockPath, os.O_RDWR, 0600)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return true
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false
}

// Release removes the pid file and drops the lock. No-op when not held.
func (l *InstanceLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lockFile == nil {
		return nil
	}

	var errs []error
	if err := os.Remove(l.pidPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, err)
	}
	if err := l.lockFile.Close(); err != nil {
		errs = append(errs, err)
	}
	l.lockFile = nil
	l.inst = nil
	return errors.Join(errs...)
}

// atomicWrite writes the pid file atomically (write + rename).
func (l *InstanceLock) atomicWrite(inst *domain.Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", l.pidPath, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, l.pidPath); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure InstanceLock implements domain.InstanceRegistry.
var _ domain.InstanceRegistry = (*InstanceLock)(nil)
