package fixtures

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// FakeApp is a real, uniquely named process that a work mode can block.
// It is a copy of sleep(1) so the process name matches nothing else on the host.
type FakeApp struct {
	Name string
	cmd  *exec.Cmd
	done chan error
}

// StartFakeApp copies sleep into dir under a random name and runs it.
func StartFakeApp(dir string) (*FakeApp, error) {
	src, err := exec.LookPath("sleep")
	if err != nil {
		return nil, err
	}

	// Linux truncates process names to 15 characters
	name := fmt.Sprintf("fakeapp%06d", rand.Intn(1_000_000))
	dst := filepath.Join(dir, name)
	if err := copyExecutable(src, dst); err != nil {
		return nil, err
	}

	cmd := exec.Command(dst, "300")
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	app := &FakeApp{Name: name, cmd: cmd, done: make(chan error, 1)}
	go func() { app.done <- cmd.Wait() }()
	return app, nil
}

// PID returns the process ID.
func (a *FakeApp) PID() int {
	return a.cmd.Process.Pid
}

// Exited reports whether the process ended within timeout.
func (a *FakeApp) Exited(timeout time.Duration) bool {
	select {
	case err := <-a.done:
		a.done <- err
		return true
	case <-time.After(timeout):
		return false
	}
}

// Cleanup kills the process if it is still running.
func (a *FakeApp) Cleanup() {
	if !a.Exited(0) {
		_ = a.cmd.Process.Kill()
		a.Exited(time.Second)
	}
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
