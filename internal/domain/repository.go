package domain

import (
	"context"
	"time"
)

// WindowSampler reads the currently focused window.
// Implementation: osascript on macOS, xdotool + gopsutil on Linux.
type WindowSampler interface {
	// ActiveWindow returns the foreground window, or nil when nothing is focused.
	ActiveWindow(ctx context.Context) (*ActiveWindow, error)
}

// Ticker delivers periodic ticks. Mirrors time.Ticker so tests can fire ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock is the engine's only source of time.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// DayStore persists one DayRecord per calendar date.
// Implementations: JSON file per day, SQLCipher encrypted database.
type DayStore interface {
	// Load returns the record for date or ErrDayNotFound.
	Load(date string) (*DayRecord, error)

	// Save writes the whole record; a reader never observes a partial write.
	Save(day *DayRecord) error

	// Dates lists stored day keys in ascending order.
	Dates() ([]string, error)

	// Close releases resources.
	Close() error
}

// Categorizer classifies an application name.
type Categorizer interface {
	Categorize(appName string) string
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// NameOf returns the executable name of a PID.
	NameOf(pid int) (string, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// Blocker terminates a work mode's blocked applications.
type Blocker interface {
	Enforce(ctx context.Context, mode WorkMode) (*EnforcementResult, error)
}

// TableSink is the remote tabular export service.
type TableSink interface {
	// AppendRows writes rows to the named table.
	AppendRows(ctx context.Context, table string, rows []TableRow) (int, error)

	// Ping checks credentials and reachability.
	Ping(ctx context.Context) error
}

// InstanceRegistry tracks the single running tracker.
type InstanceRegistry interface {
	// Acquire takes the exclusive lock and records inst. Fails if another tracker holds it.
	Acquire(inst Instance) error

	// Heartbeat refreshes the liveness timestamp.
	Heartbeat() error

	// Current returns the recorded instance, nil when none.
	Current() (*Instance, error)

	// Release drops the lock and removes the record.
	Release() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// SecretStore provides encrypted persistent storage for secrets
// (the export app secret).
type SecretStore interface {
	GetSecret(key string) (string, error)
	SetSecret(key, value string) error
}

// AutostartManager installs the tracker to run at login.
type AutostartManager interface {
	Install(execPath string) error
	Uninstall() error
	IsInstalled() bool
	Path() string
}
