package infra

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// ErrSamplerUnsupported is returned on platforms without a foreground-window query.
var ErrSamplerUnsupported = errors.New("active window sampling is not supported on this platform")

// frontmostScript prints "<app>\n<pid>\n<title>" for the frontmost macOS process.
// The title is empty when the app has no window or Accessibility access is denied.
const frontmostScript = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set appPID to unix id of frontApp
	set winTitle to ""
	try
		set winTitle to name of front window of frontApp
	end try
end tell
return appName & linefeed & appPID & linefeed & winTitle`

// ActiveWindowSampler implements domain.WindowSampler.
// macOS: osascript against System Events. Linux (X11): xdotool for the
// window PID and title, gopsutil for the owning process name.
type ActiveWindowSampler struct {
	goos   string
	runner CommandRunner
	pm     domain.ProcessManager
}

// NewActiveWindowSampler creates a sampler for the running OS.
func NewActiveWindowSampler(pm domain.ProcessManager) *ActiveWindowSampler {
	return NewActiveWindowSamplerWithDeps(runtime.GOOS, &RealCommandRunner{}, pm)
}

// NewActiveWindowSamplerWithDeps creates a sampler with injectable dependencies (for testing).
func NewActiveWindowSamplerWithDeps(goos string, runner CommandRunner, pm domain.ProcessManager) *ActiveWindowSampler {
	return &ActiveWindowSampler{
		goos:   goos,
		runner: runner,
		pm:     pm,
	}
}

// ActiveWindow returns the foreground window, or nil when nothing is focused.
func (s *ActiveWindowSampler) ActiveWindow(ctx context.Context) (*domain.ActiveWindow, error) {
	switch s.goos {
	case "darwin":
		return s.darwin(ctx)
	case "linux":
		return s.linux(ctx)
	default:
		return nil, ErrSamplerUnsupported
	}
}

func (s *ActiveWindowSampler) darwin(ctx context.Context) (*domain.ActiveWindow, error) {
	out, err := s.runner.Output(ctx, "osascript", "-e", frontmostScript)
	if err != nil {
		return nil, fmt.Errorf("osascript: %w", err)
	}
	return parseFrontmost(string(out))
}

// parseFrontmost decodes frontmostScript output.
func parseFrontmost(out string) (*domain.ActiveWindow, error) {
	out = strings.TrimRight(out, "\r\n")
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}

	parts := strings.SplitN(out, "\n", 3)
	win := &domain.ActiveWindow{Name: strings.TrimSpace(parts[0])}
	if win.Name == "" {
		return nil, nil
	}
	if len(parts) > 1 {
		pid, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid pid %q: %w", parts[1], err)
		}
		win.PID = pid
	}
	if len(parts) > 2 {
		win.Title = strings.TrimSpace(parts[2])
	}
	return win, nil
}

func (s *ActiveWindowSampler) linux(ctx context.Context) (*domain.ActiveWindow, error) {
	out, err := s.runner.Output(ctx, "xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		// xdotool exits non-zero when no window has focus
		return nil, nil
	}
	pidStr := strings.TrimSpace(string(out))
	if pidStr == "" {
		return nil, nil
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid pid %q: %w", pidStr, err)
	}

	name, err := s.pm.NameOf(pid)
	if err != nil {
		return nil, err
	}

	win := &domain.ActiveWindow{Name: name, PID: pid}
	if title, err := s.runner.Output(ctx, "xdotool", "getactivewindow", "getwindowname"); err == nil {
		win.Title = strings.TrimSpace(string(title))
	}
	return win, nil
}

// Ensure ActiveWindowSampler implements domain.WindowSampler.
var _ domain.WindowSampler = (*ActiveWindowSampler)(nil)
