// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirs(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		fn       func() (string, error)
		fallback string
	}{
		{"config", "XDG_CONFIG_HOME", ConfigDir, "/home/testuser/.config/azimuth"},
		{"data", "XDG_DATA_HOME", DataDir, "/home/testuser/.local/share/azimuth"},
		{"state", "XDG_STATE_HOME", StateDir, "/home/testuser/.local/state/azimuth"},
	}
	for _, tt := range tests {
		t.Run(tt.name+" from env", func(t *testing.T) {
			t.Setenv(tt.env, "/custom")
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, "/custom/azimuth", got)
		})
		t.Run(tt.name+" from home", func(t *testing.T) {
			t.Setenv(tt.env, "")
			t.Setenv("HOME", "/home/testuser")
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.fallback, got)
		})
		t.Run(tt.name+" without home", func(t *testing.T) {
			t.Setenv(tt.env, "")
			t.Setenv("HOME", "")
			_, err := tt.fn()
			require.Error(t, err)
		})
	}
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom")
	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "/custom/azimuth/config.yaml", got)
}

func TestWorldFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	got, err := WorldFile("WORLD1")
	require.NoError(t, err)
	assert.Equal(t, "/data/azimuth/world1.db", got)

	for _, bad := range []string{"", "  ", "../x", `a\b`, ".."} {
		_, err := WorldFile(bad)
		assert.Error(t, err, bad)
	}
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	require.NoError(t, EnsureDir(path), "existing directory is fine")
}
