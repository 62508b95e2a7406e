package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// HomeDir returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so SUDO_USER is consulted first.
func HomeDir() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	if path == "~" {
		return HomeDir()
	}
	return path
}

// DefaultPath is where Load looks when no --config is given.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "appusage", "config.yaml")
	}
	return filepath.Join(HomeDir(), ".config", "appusage", "config.yaml")
}

// DefaultDataDir holds day records, the encrypted database, logs and the pid file.
func DefaultDataDir() string {
	return filepath.Join(HomeDir(), ".appusage")
}
