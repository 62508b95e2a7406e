package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/infra"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's usage",
	RunE:  runToday,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show usage for a past day",
	Long:  `Shows one day's usage (--date, default today) or lists every recorded day (--all).`,
	RunE:  runReport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a day's usage to the remote table",
	RunE:  runExport,
}

var setSecretCmd = &cobra.Command{
	Use:   "set-secret",
	Short: "Store the export app secret in the encrypted store",
	Long:  `Reads the app secret from stdin and stores it encrypted under the data dir.`,
	Args:  cobra.NoArgs,
	RunE:  runSetSecret,
}

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List work modes and the apps they block",
	RunE:  runModes,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

var (
	reportDate string
	reportAll  bool
	exportDate string
)

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Day to show (YYYY-MM-DD)")
	reportCmd.Flags().BoolVar(&reportAll, "all", false, "List every recorded day")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Day to export (YYYY-MM-DD, default today)")

	exportCmd.AddCommand(setSecretCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(modesCmd)
	rootCmd.AddCommand(configCmd)
}

func runToday(cmd *cobra.Command, args []string) error {
	reportDate = ""
	reportAll = false
	return runReport(cmd, args)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if reportAll {
		return printDays(st.days)
	}

	date := reportDate
	if date == "" {
		date = time.Now().Format(domain.DateLayout)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
	}

	day, err := st.days.Load(date)
	if errors.Is(err, domain.ErrDayNotFound) {
		fmt.Printf("No data for %s\n", date)
		return nil
	}
	if err != nil {
		return err
	}
	day.Normalize(date)

	printDay(day)
	return nil
}

func printDay(day *domain.DayRecord) {
	fmt.Printf("\n=== %s ===\n", color.CyanString(day.Date))
	fmt.Printf("Total: %s across %d apps\n", usecase.FormatClock(day.TotalTime), len(day.Apps))
	if day.WorkModeTime > 0 {
		fmt.Printf("Work mode: %s\n", usecase.FormatClock(day.WorkModeTime))
	}

	apps := make([]domain.AppUsageRecord, 0, len(day.Apps))
	for _, a := range day.Apps {
		apps = append(apps, *a)
	}
	usecase.SortByDuration(apps)

	if len(apps) == 0 {
		fmt.Println("\nNo usage recorded.")
		return
	}

	nameWidth := 0
	for _, a := range apps {
		nameWidth = max(nameWidth, len(a.Name))
	}

	fmt.Println()
	for _, a := range apps {
		share := 0.0
		if day.TotalTime > 0 {
			share = float64(a.Duration) / float64(day.TotalTime) * 100
		}
		fmt.Printf("  %-*s  %s  %5.1f%%  %s  %s\n",
			nameWidth, a.Name,
			color.GreenString(usecase.FormatClock(a.Duration)),
			share,
			color.HiBlackString("%2d launches", a.Launches),
			color.HiBlackString(a.Category))
	}
}

func printDays(store domain.DayStore) error {
	dates, err := store.Dates()
	if err != nil {
		return err
	}
	if len(dates) == 0 {
		fmt.Println("No data recorded yet")
		return nil
	}

	for _, date := range dates {
		day, err := store.Load(date)
		if err != nil {
			fmt.Printf("  %s  %s\n", date, color.RedString("unreadable: %v", err))
			continue
		}
		day.Normalize(date)
		fmt.Printf("  %s  %s  %d apps\n", date, usecase.FormatClock(day.TotalTime), len(day.Apps))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Export.Enabled {
		return errors.New("export is disabled; set export.enabled in the config file")
	}

	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	// A stopped tracker over the store answers committed-day queries
	tracker, _ := newTracker(cfg, st.days, nil, infra.NewRealClock(), logger)
	exporter, err := newExporter(cfg, st, tracker, logger)
	if err != nil {
		return err
	}

	summary, err := exporter.ExportDate(cmd.Context(), exportDate)
	if err != nil {
		return err
	}
	color.Green("Exported %s: %d apps, %d rows", summary.Date, summary.AppRecords, summary.Rows)
	return nil
}

func runSetSecret(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stderr, "App secret: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return errors.New("empty secret")
	}

	secrets, err := infra.OpenEncryptedStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = secrets.Close() }()

	if err := secrets.SetSecret(exportSecretKey, secret); err != nil {
		return err
	}
	color.Green("Secret stored in %s", secrets.Path())
	return nil
}

func runModes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("\n=== Work Modes ===")
	for _, mode := range cfg.Registry().GetAll() {
		fmt.Printf("\n[%s] %s\n", color.CyanString(mode.ID), mode.Name)
		if mode.Description != "" {
			fmt.Printf("  %s\n", mode.Description)
		}
		fmt.Println("  Blocks:")
		for _, app := range mode.BlockedApps {
			state := ""
			if !app.Enabled {
				state = color.HiBlackString(" (disabled)")
			}
			fmt.Printf("    - %s (%s)%s\n", app.Name, app.ProcessName, state)
		}
	}
	fmt.Println("\n==================")
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
