// Package main is the CLI entry point for appusage.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/app_usage/internal/config"
	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/infra"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

// exportSecretKey names the app secret in the encrypted secrets table.
const exportSecretKey = "export.app_secret"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "appusage",
	Short: "Application usage tracker",
	Long: `appusage records which application has focus, second by second, and keeps
per-day totals, launch counts and a timeline of sessions.

Run it in the foreground with 'appusage run', or in the background with
'appusage start'. Work modes kill distracting apps while active.`,
	Version:      Version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

// absConfigPath resolves --config for child processes and the LaunchAgent.
func absConfigPath() string {
	if configPath == "" {
		return ""
	}
	p := config.ExpandHome(configPath)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// createLogger writes JSON logs to the data dir for the long-running tracker.
func createLogger(cfg *config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{cfg.LogPath()}
	zc.ErrorOutputPaths = []string{cfg.ErrorLogPath()}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// cliLogger is used by short-lived commands; only warnings reach the terminal.
func cliLogger() *zap.Logger {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// stores bundles the day store and, when opened, the encrypted secret store.
type stores struct {
	days    domain.DayStore
	secrets *infra.EncryptedDayStore
}

func openStores(cfg *config.Config) (*stores, error) {
	days, err := infra.OpenDayStore(cfg.Storage, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage, err)
	}
	s := &stores{days: days}
	if enc, ok := days.(*infra.EncryptedDayStore); ok {
		s.secrets = enc
	}
	return s, nil
}

// secretStore opens the encrypted store on demand for the json backend.
func (s *stores) secretStore(cfg *config.Config) (*infra.EncryptedDayStore, error) {
	if s.secrets != nil {
		return s.secrets, nil
	}
	enc, err := infra.OpenEncryptedStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	s.secrets = enc
	return enc, nil
}

func (s *stores) Close() error {
	var errs []error
	errs = append(errs, s.days.Close())
	if s.secrets != nil && domain.DayStore(s.secrets) != s.days {
		errs = append(errs, s.secrets.Close())
	}
	return errors.Join(errs...)
}

// newTracker wires the engine over store, opened on today's date.
func newTracker(cfg *config.Config, store domain.DayStore, sampler domain.WindowSampler, clock domain.Clock, logger *zap.Logger) (*usecase.Tracker, *usecase.Ledger) {
	today := clock.Now().Format(domain.DateLayout)
	ledger := usecase.NewLedger(store, cfg.Categorizer(), today, cfg.Tracking.TimelineLimit, logger)
	tracker := usecase.NewTracker(usecase.TrackerConfig{
		TickInterval:  cfg.Tracking.TickInterval.D(),
		SampleTimeout: cfg.Tracking.SampleTimeout.D(),
	}, sampler, ledger, clock, logger)
	return tracker, ledger
}

// newExporter returns nil when export is disabled.
func newExporter(cfg *config.Config, st *stores, source usecase.UsageSource, logger *zap.Logger) (*usecase.Exporter, error) {
	if !cfg.Export.Enabled {
		return nil, nil
	}

	secret := cfg.Export.AppSecret
	if secret == "" {
		secrets, err := st.secretStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("open secret store: %w", err)
		}
		secret, err = secrets.GetSecret(exportSecretKey)
		if err != nil {
			return nil, fmt.Errorf("export app secret: %w (run 'appusage export set-secret')", err)
		}
	}

	client := infra.NewTableClient(infra.TableClientConfig{
		BaseURL:   cfg.Export.BaseURL,
		AppID:     cfg.Export.AppID,
		AppSecret: secret,
		AppToken:  cfg.Export.AppToken,
		Timeout:   cfg.Export.Timeout.D(),
	})
	return usecase.NewExporter(usecase.ExporterConfig{
		TableID:        cfg.Export.TableID,
		SummaryTableID: cfg.Export.SummaryTableID,
	}, source, client, logger), nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(out))
	} else {
		fmt.Printf("%s %s (commit: %s, built: %s)\n",
			color.CyanString("appusage"), Version, Commit, BuildTime)
	}
}
