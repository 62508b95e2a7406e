package infra

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu          sync.Mutex
	runningPIDs map[int]bool
	names       map[int]string
	killedPIDs  []int
	termPIDs    []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pids []int
	for pid, name := range m.names {
		if strings.Contains(strings.ToLower(name), strings.ToLower(pattern)) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[pid]
	if !ok {
		return "", errors.New("process not found")
	}
	return name, nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) Terminate(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.termPIDs = append(m.termPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = running
}

func (m *mockProcessManager) SetName(pid int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[pid] = name
}

// mockCommandRunner answers commands by their joined argv.
type mockCommandRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (m *mockCommandRunner) key(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := m.Output(ctx, name, args...)
	return err
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	k := m.key(name, args...)
	m.calls = append(m.calls, k)
	if err := m.errs[k]; err != nil {
		return nil, err
	}
	return []byte(m.outputs[k]), nil
}
