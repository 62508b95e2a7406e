package policy

import "github.com/eliteGoblin/focusd/app_usage/internal/domain"

// DefaultFocusModeID identifies the built-in deep work mode.
const DefaultFocusModeID = "default-focus"

// DefaultFocusMode blocks games while deep work is active.
// Process names are the known macOS and Linux names for Steam and Dota 2.
func DefaultFocusMode() domain.WorkMode {
	return domain.WorkMode{
		ID:          DefaultFocusModeID,
		Name:        "Deep work",
		Description: "For work that needs full attention; blocks distracting apps.",
		BlockedApps: []domain.BlockedApp{
			{Name: "Steam", ProcessName: "steam_osx", Enabled: true},
			{Name: "Steam", ProcessName: "steamwebhelper", Enabled: true},
			{Name: "Steam", ProcessName: "Steam Helper", Enabled: true},
			{Name: "Dota 2", ProcessName: "dota2", Enabled: true},
			{Name: "Dota 2", ProcessName: "dota_osx64", Enabled: true},
		},
	}
}

// EnabledProcessNames returns the process names a mode will terminate.
func EnabledProcessNames(mode domain.WorkMode) []string {
	names := make([]string, 0, len(mode.BlockedApps))
	for _, app := range mode.BlockedApps {
		if app.Enabled && app.ProcessName != "" {
			names = append(names, app.ProcessName)
		}
	}
	return names
}
