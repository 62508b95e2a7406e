package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/daemon"
	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/infra"
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
	"github.com/eliteGoblin/focusd/app_usage/internal/tui"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track application usage in the foreground",
	Long: `Samples the focused application every tick and records usage until
interrupted. Only one tracker may run at a time.

With --work-mode the mode's blocked apps are killed while tracking.
With --dashboard a live view is shown; press 'w' to toggle work mode.`,
	RunE: runRun,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tracker in the background",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background tracker",
	Long:  `Sends SIGTERM to the running tracker, which saves the open session before exiting.`,
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the tracker is running",
	RunE:  runStatus,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the tracker at login (macOS LaunchAgent)",
	RunE:  runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the login LaunchAgent",
	RunE:  runUninstall,
}

var (
	runDashboard bool
	runWorkMode  string
	startMode    string
)

func init() {
	runCmd.Flags().BoolVar(&runDashboard, "dashboard", false, "Show the live dashboard")
	runCmd.Flags().StringVar(&runWorkMode, "work-mode", "", "Activate a work mode (see 'appusage modes')")
	startCmd.Flags().StringVar(&startMode, "work-mode", "", "Activate a work mode in the background tracker")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	registry := cfg.Registry()
	var mode *domain.WorkMode
	if runWorkMode != "" {
		m, err := registry.Get(runWorkMode)
		if err != nil {
			return err
		}
		mode = &m
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	pm := infra.NewProcessManager()
	clock := infra.NewRealClock()
	tracker, _ := newTracker(cfg, st.days, infra.NewActiveWindowSampler(pm), clock, logger)

	exporter, err := newExporter(cfg, st, tracker, logger)
	if err != nil {
		return err
	}

	runner := daemon.NewRunner(
		daemon.RunnerConfig{
			EnforceInterval: cfg.WorkModeEnforceInterval.D(),
			ExportInterval:  cfg.Export.Interval.D(),
			ExportTimeout:   cfg.Export.Timeout.D(),
		},
		tracker,
		infra.NewInstanceLock(cfg.DataDir),
		usecase.NewBlocker(pm, logger),
		runnerExporter(exporter),
		clock,
		domain.Instance{
			PID:        os.Getpid(),
			StartedAt:  time.Now(),
			AppVersion: Version,
			DataDir:    cfg.DataDir,
		},
		logger,
	)
	if mode != nil {
		runner.SetWorkMode(mode)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if !runDashboard {
		err := runner.Run(ctx)
		if errors.Is(err, infra.ErrAlreadyRunning) {
			return fmt.Errorf("%w (see 'appusage status')", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	runErr := make(chan error, 1)
	go func() {
		// A runner that exits early (lock held) closes the dashboard too
		runErr <- runner.Run(ctx)
		cancel()
	}()

	dashMode := policy.DefaultFocusMode()
	if mode != nil {
		dashMode = *mode
	}
	uiErr := tui.Run(ctx, tui.New(tracker, runner, dashMode))
	cancel()

	err = <-runErr
	if errors.Is(err, infra.ErrAlreadyRunning) {
		return fmt.Errorf("%w (see 'appusage status')", err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) && !errors.Is(uiErr, context.Canceled) {
		return uiErr
	}
	return nil
}

// runnerExporter keeps a nil *Exporter from becoming a non-nil interface.
func runnerExporter(e *usecase.Exporter) daemon.Exporter {
	if e == nil {
		return nil
	}
	return e
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	lock := infra.NewInstanceLock(cfg.DataDir)
	status, err := daemon.ReadStatus(lock, pm)
	if err != nil {
		return err
	}
	if status.Running {
		fmt.Printf("appusage is already running (pid %d)\n", status.Instance.PID)
		return nil
	}

	var childArgs []string
	if configPath != "" {
		childArgs = append(childArgs, "--config", absConfigPath())
	}
	if startMode != "" {
		if _, err := cfg.Registry().Get(startMode); err != nil {
			return err
		}
		childArgs = append(childArgs, "--work-mode", startMode)
	}

	pid, err := daemon.StartDetached(childArgs...)
	if err != nil {
		return err
	}

	// Wait briefly so a failed start (lock held, bad config) is reported here
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if inst, _ := lock.Current(); inst != nil && inst.PID == pid {
			color.Green("appusage started (pid %d)", pid)
			fmt.Printf("Logs: %s\n", cfg.LogPath())
			return nil
		}
		if !pm.IsRunning(pid) {
			return fmt.Errorf("tracker exited during startup, see %s", cfg.ErrorLogPath())
		}
		time.Sleep(100 * time.Millisecond)
	}
	color.Yellow("appusage launched (pid %d) but has not registered yet", pid)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	inst, err := daemon.StopRunning(ctx, infra.NewInstanceLock(cfg.DataDir), infra.NewProcessManager(), 100*time.Millisecond)
	if errors.Is(err, daemon.ErrNotRunning) {
		fmt.Println("appusage is not running")
		return nil
	}
	if err != nil {
		return err
	}
	color.Green("appusage stopped (pid %d)", inst.PID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	status, err := daemon.ReadStatus(infra.NewInstanceLock(cfg.DataDir), infra.NewProcessManager())
	if err != nil {
		return err
	}

	fmt.Println("\n=== appusage Status ===")
	switch {
	case status.Running:
		inst := status.Instance
		fmt.Printf("Status: %s\n", color.GreenString("RUNNING"))
		fmt.Printf("PID: %d\n", inst.PID)
		fmt.Printf("Version: %s\n", inst.AppVersion)
		fmt.Printf("Started: %s\n", inst.StartedAt.Format(time.RFC3339))
		if !inst.Heartbeat.IsZero() {
			fmt.Printf("Last heartbeat: %s ago\n", time.Since(inst.Heartbeat).Round(time.Second))
		}
	case status.Stale:
		fmt.Printf("Status: %s (stale pid file for %d)\n", color.YellowString("NOT RUNNING"), status.Instance.PID)
	default:
		fmt.Printf("Status: %s\n", color.RedString("NOT RUNNING"))
		fmt.Println("\nRun 'appusage start' to begin tracking.")
	}

	fmt.Printf("\nData dir: %s\n", cfg.DataDir)
	fmt.Printf("Storage: %s\n", cfg.Storage)
	if cfg.Export.Enabled {
		fmt.Printf("Export: every %s\n", cfg.Export.Interval.D())
	} else {
		fmt.Println("Export: disabled")
	}

	autostart := infra.NewLaunchAgentManager(cfg.DataDir, absConfigPath())
	if autostart.IsInstalled() {
		fmt.Printf("Auto-start: enabled (%s)\n", autostart.Path())
	} else {
		fmt.Println("Auto-start: disabled")
	}
	fmt.Println("=======================")
	return nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	executable, err := os.Executable()
	if err != nil {
		return err
	}

	manager := infra.NewLaunchAgentManager(cfg.DataDir, absConfigPath())
	if err := manager.Install(executable); err != nil {
		return err
	}
	color.Green("Installed %s", manager.Path())
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager := infra.NewLaunchAgentManager(cfg.DataDir, absConfigPath())
	if err := manager.Uninstall(); err != nil {
		return err
	}
	fmt.Println("Auto-start removed")
	return nil
}
