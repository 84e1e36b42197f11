// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package xdg provides XDG Base Directory paths for Azimuth.
package xdg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

const appName = "azimuth"

// ConfigFileName is the config file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for azimuth.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	return dir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for azimuth.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() (string, error) {
	return dir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory for azimuth.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() (string, error) {
	return dir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func dir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_NO_HOME").With("env", env).
			Errorf("neither %s nor HOME is set", env)
	}
	return filepath.Join(home, fallback, appName), nil
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, ConfigFileName), nil
}

// WorldFile returns the default bbolt file for a world.
func WorldFile(worldID string) (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	name := strings.ToLower(strings.TrimSpace(worldID))
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", oops.Code("XDG_INVALID_WORLD").With("world_id", worldID).
			Errorf("world id %q cannot be used as a file name", worldID)
	}
	return filepath.Join(d, name+".db"), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrapf(err, "failed to create directory")
	}
	return nil
}
