// Package config loads the YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
)

// Environment overrides.
const (
	EnvDataDir         = "APPUSAGE_DATA_DIR"
	EnvExportAppSecret = "APPUSAGE_EXPORT_APP_SECRET"
)

// Storage backends.
const (
	StorageJSON      = "json"
	StorageEncrypted = "encrypted"
)

// Config is the whole configuration file.
type Config struct {
	DataDir                 string                `yaml:"data_dir"`
	Storage                 string                `yaml:"storage"`
	Tracking                TrackingConfig        `yaml:"tracking"`
	Log                     LogConfig             `yaml:"log"`
	Categories              []policy.CategoryRule `yaml:"categories,omitempty"`
	WorkModes               []WorkModeConfig      `yaml:"work_modes,omitempty"`
	WorkModeEnforceInterval Duration              `yaml:"work_mode_enforce_interval"`
	Export                  ExportConfig          `yaml:"export"`
}

// TrackingConfig controls the sampling engine.
type TrackingConfig struct {
	TickInterval  Duration `yaml:"tick_interval"`
	SampleTimeout Duration `yaml:"sample_timeout"`
	TimelineLimit int      `yaml:"timeline_limit"`
}

// LogConfig controls the daemon log.
type LogConfig struct {
	Level string `yaml:"level"`
}

// WorkModeConfig is one user-defined work mode.
type WorkModeConfig struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	BlockedApps []BlockedAppConfig `yaml:"blocked_apps"`
}

// BlockedAppConfig is a process a work mode terminates.
type BlockedAppConfig struct {
	Name        string `yaml:"name"`
	ProcessName string `yaml:"process_name"`
	Enabled     *bool  `yaml:"enabled,omitempty"` // nil means enabled
}

// ExportConfig holds remote table export settings.
type ExportConfig struct {
	Enabled        bool     `yaml:"enabled"`
	BaseURL        string   `yaml:"base_url"`
	AppID          string   `yaml:"app_id"`
	AppSecret      string   `yaml:"app_secret,omitempty"`
	AppToken       string   `yaml:"app_token"`
	TableID        string   `yaml:"table_id"`
	SummaryTableID string   `yaml:"summary_table_id,omitempty"`
	Interval       Duration `yaml:"interval"`
	Timeout        Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Storage: StorageJSON,
		Tracking: TrackingConfig{
			TickInterval:  Duration(time.Second),
			SampleTimeout: Duration(800 * time.Millisecond),
			TimelineLimit: domain.DefaultTimelineLimit,
		},
		Log:                     LogConfig{Level: "info"},
		WorkModeEnforceInterval: Duration(5 * time.Second),
		Export: ExportConfig{
			BaseURL:  "https://open.feishu.cn/open-apis",
			Interval: Duration(30 * time.Minute),
			Timeout:  Duration(30 * time.Second),
		},
	}
}

// Load reads path (DefaultPath when empty) over the defaults, applies
// environment overrides and validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	path = ExpandHome(path)

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.DataDir = ExpandHome(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvExportAppSecret); v != "" {
		c.Export.AppSecret = v
	}
}

// Validate rejects settings the tracker cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Storage != StorageJSON && c.Storage != StorageEncrypted {
		errs = append(errs, fmt.Errorf("storage must be %q or %q, got %q", StorageJSON, StorageEncrypted, c.Storage))
	}
	if c.Tracking.TickInterval <= 0 {
		errs = append(errs, errors.New("tracking.tick_interval must be positive"))
	}
	if c.Tracking.SampleTimeout <= 0 {
		errs = append(errs, errors.New("tracking.sample_timeout must be positive"))
	}
	if c.Tracking.TimelineLimit < 0 {
		errs = append(errs, errors.New("tracking.timeline_limit must not be negative"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.WorkModeEnforceInterval <= 0 {
		errs = append(errs, errors.New("work_mode_enforce_interval must be positive"))
	}

	seen := make(map[string]bool)
	for i, m := range c.WorkModes {
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("work_modes[%d].id is required", i))
			continue
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Errorf("duplicate work mode id %q", m.ID))
		}
		seen[m.ID] = true
		for j, a := range m.BlockedApps {
			if strings.TrimSpace(a.ProcessName) == "" {
				errs = append(errs, fmt.Errorf("work_modes[%d].blocked_apps[%d].process_name is required", i, j))
			}
		}
	}

	if c.Export.Enabled {
		if c.Export.AppID == "" || c.Export.AppToken == "" || c.Export.TableID == "" {
			errs = append(errs, errors.New("export requires app_id, app_token and table_id when enabled"))
		}
		if c.Export.Interval <= 0 {
			errs = append(errs, errors.New("export.interval must be positive"))
		}
	}
	if c.Export.Timeout <= 0 {
		errs = append(errs, errors.New("export.timeout must be positive"))
	}

	return errors.Join(errs...)
}

// Categorizer returns the configured rules ahead of the built-in ones.
func (c *Config) Categorizer() *policy.Categorizer {
	rules := append([]policy.CategoryRule{}, c.Categories...)
	rules = append(rules, policy.DefaultCategoryRules()...)
	return policy.NewCategorizerWithRules(rules)
}

// Registry returns the default focus mode plus configured modes.
// A configured mode with the default ID replaces it.
func (c *Config) Registry() *policy.Registry {
	r := policy.NewRegistry()
	for _, m := range c.WorkModes {
		r.Register(m.toDomain())
	}
	return r
}

func (m WorkModeConfig) toDomain() domain.WorkMode {
	mode := domain.WorkMode{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		BlockedApps: make([]domain.BlockedApp, 0, len(m.BlockedApps)),
	}
	if mode.Name == "" {
		mode.Name = m.ID
	}
	for _, a := range m.BlockedApps {
		name := a.Name
		if name == "" {
			name = a.ProcessName
		}
		mode.BlockedApps = append(mode.BlockedApps, domain.BlockedApp{
			Name:        name,
			ProcessName: a.ProcessName,
			Enabled:     a.Enabled == nil || *a.Enabled,
		})
	}
	return mode
}

// LogPath is the daemon's JSON log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "appusage.log")
}

// ErrorLogPath receives error-level output.
func (c *Config) ErrorLogPath() string {
	return filepath.Join(c.DataDir, "appusage.error.log")
}

// Marshal renders the effective configuration, with the app secret masked.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	if out.Export.AppSecret != "" {
		out.Export.AppSecret = "********"
	}
	return yaml.Marshal(&out)
}
