package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// LaunchAgentLabel identifies the tracker's LaunchAgent.
const LaunchAgentLabel = "com.focusd.appusage"

// ErrAutostartUnsupported is returned on platforms without LaunchAgents.
var ErrAutostartUnsupported = errors.New("autostart is only supported on macOS")

// LaunchAgent plist template (runs as user)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>run</string>
{{- if .ConfigPath}}
        <string>--config</string>
        <string>{{.ConfigPath}}</string>
{{- end}}
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Interactive</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>`

type plistConfig struct {
	Label          string
	ExecutablePath string
	ConfigPath     string
	LogPath        string
	ErrorLogPath   string
}

// LaunchAgentManager implements domain.AutostartManager with a user LaunchAgent.
type LaunchAgentManager struct {
	goos       string
	plistDir   string
	plistPath  string
	logDir     string
	configPath string
	runner     CommandRunner
}

// NewLaunchAgentManager creates a manager for ~/Library/LaunchAgents.
// configPath is passed to `run` when non-empty; launchd output goes to logDir.
func NewLaunchAgentManager(logDir, configPath string) *LaunchAgentManager {
	home, _ := os.UserHomeDir()
	return NewLaunchAgentManagerWithDeps(runtime.GOOS, filepath.Join(home, "Library", "LaunchAgents"),
		logDir, configPath, &RealCommandRunner{})
}

// NewLaunchAgentManagerWithDeps creates a manager with injectable dependencies (for testing).
func NewLaunchAgentManagerWithDeps(goos, plistDir, logDir, configPath string, runner CommandRunner) *LaunchAgentManager {
	return &LaunchAgentManager{
		goos:       goos,
		plistDir:   plistDir,
		plistPath:  filepath.Join(plistDir, LaunchAgentLabel+".plist"),
		logDir:     logDir,
		configPath: configPath,
		runner:     runner,
	}
}

// generatePlistContent creates plist content for the given exec path.
func (m *LaunchAgentManager) generatePlistContent(execPath string) ([]byte, error) {
	config := plistConfig{
		Label:          LaunchAgentLabel,
		ExecutablePath: execPath,
		ConfigPath:     m.configPath,
		LogPath:        filepath.Join(m.logDir, "appusage.launchd.log"),
		ErrorLogPath:   filepath.Join(m.logDir, "appusage.launchd.error.log"),
	}

	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}

	return buf.Bytes(), nil
}

// Install writes and loads the LaunchAgent. Reinstalling replaces the plist.
func (m *LaunchAgentManager) Install(execPath string) error {
	if m.goos != "darwin" {
		return ErrAutostartUnsupported
	}

	if err := os.MkdirAll(m.plistDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(m.logDir, 0700); err != nil {
		return err
	}

	content, err := m.generatePlistContent(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate plist content: %w", err)
	}

	if m.IsInstalled() {
		_ = m.unload()
	}
	if err := os.WriteFile(m.plistPath, content, 0644); err != nil {
		return err
	}

	// Note: `launchctl load` is deprecated but still works on macOS.
	return m.runner.Run(context.Background(), "launchctl", "load", m.plistPath)
}

// Uninstall unloads and removes the plist.
func (m *LaunchAgentManager) Uninstall() error {
	if m.goos != "darwin" {
		return ErrAutostartUnsupported
	}

	// Unload first (ignore errors if not loaded)
	_ = m.unload()

	if err := os.Remove(m.plistPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsInstalled checks if plist is installed.
func (m *LaunchAgentManager) IsInstalled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// Path returns the plist file path.
func (m *LaunchAgentManager) Path() string {
	return m.plistPath
}

func (m *LaunchAgentManager) unload() error {
	return m.runner.Run(context.Background(), "launchctl", "unload", m.plistPath)
}

// Ensure LaunchAgentManager implements domain.AutostartManager.
var _ domain.AutostartManager = (*LaunchAgentManager)(nil)
