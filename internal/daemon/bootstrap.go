package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartDetached spawns "<self> run <args...>" as a background tracker and
// returns its PID. The child runs in its own session, detached from the terminal.
func StartDetached(args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}

	cmd := detachedCommand(executable, args)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start tracker: %w", err)
	}
	pid := cmd.Process.Pid

	// The child outlives us; drop our handle without waiting on it
	_ = cmd.Process.Release()
	return pid, nil
}

func detachedCommand(executable string, args []string) *exec.Cmd {
	cmd := exec.Command(executable, append([]string{"run"}, args...)...)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// No stdin/stdout/stderr; the tracker logs to its own file
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	return cmd
}
