package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/excess/config"
	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "some excess demo", cfg.Title)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, 3, cfg.FramesInFlight)
	assert.GreaterOrEqual(t, cfg.UniformWorkers, 1)
	assert.Equal(t, [4]float64{0.5, 0.5, 0.5, 1}, cfg.ClearColor)
	assert.InDelta(t, 0.35, cfg.Vignette, 1e-6)

	mode, err := cfg.Present()
	require.NoError(t, err)
	assert.Equal(t, gpu.PresentModeVSync, mode)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excess.toml")
	writeFile(t, path, `
title = "teapots"
width = 800
height = 600
present_mode = "mailbox"
clear_color = [0.1, 0.2, 0.3, 1.0]
exposure = 1.5
log_level = "debug"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "teapots", cfg.Title)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.Equal(t, [4]float64{0.1, 0.2, 0.3, 1}, cfg.ClearColor)
	assert.InDelta(t, 1.5, cfg.Exposure, 1e-6)

	// untouched keys keep their defaults
	assert.Equal(t, config.Default().Scene, cfg.Scene)
	assert.InDelta(t, 60, cfg.FovDegrees, 1e-6)

	mode, _ := cfg.Present()
	assert.Equal(t, gpu.PresentModeMailbox, mode)
	level, _ := cfg.Level()
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"excess.yaml", "excess.yml"} {
		path := filepath.Join(dir, name)
		writeFile(t, path, "fullscreen: true\nframes_in_flight: 2\nscene: other.gltf\nprofiler: true\n")

		cfg, err := config.Load(path)
		require.NoError(t, err, name)
		assert.True(t, cfg.Fullscreen)
		assert.Equal(t, 2, cfg.FramesInFlight)
		assert.Equal(t, "other.gltf", cfg.Scene)
		assert.True(t, cfg.Profiler)
	}

	empty := filepath.Join(dir, "empty.yaml")
	writeFile(t, empty, "")
	cfg, err := config.Load(empty)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	writeFile(t, filepath.Join(home, "excess.toml"), "width = 640\n")

	cfg, err := config.Load("~/excess.toml")
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown toml key", "a.toml", "colour = 1\n"},
		{"unknown yaml key", "a.yaml", "colour: 1\n"},
		{"malformed toml", "a.toml", "width = \n"},
		{"unknown extension", "a.ini", "width=1\n"},
		{"zero width", "a.toml", "width = 0\n"},
		{"negative height", "a.yaml", "height: -1\n"},
		{"no frames in flight", "a.toml", "frames_in_flight = 0\n"},
		{"near not positive", "a.toml", "near = 0.0\n"},
		{"far before near", "a.toml", "near = 5.0\nfar = 1.0\n"},
		{"zero exposure", "a.toml", "exposure = 0.0\n"},
		{"negative vignette", "a.yaml", "vignette: -0.5\n"},
		{"bad fov", "a.toml", "fov_degrees = 180.0\n"},
		{"bad present mode", "a.toml", "present_mode = \"sometimes\"\n"},
		{"bad log level", "a.yaml", "log_level: loud\n"},
	}

	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			_, err := config.Load(path)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excess.toml")
	writeFile(t, path, "exposure = 1.0\n")

	changes := make(chan config.Config, 8)
	w, err := config.Watch(path, func(c config.Config) { changes <- c })
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, path, w.Path())

	// an invalid write is skipped
	writeFile(t, path, "exposure = -1.0\n")
	writeFile(t, path, "exposure = 2.5\nclear_color = [0.0, 0.0, 0.0, 1.0]\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Exposure == 2.5 {
				assert.Equal(t, [4]float64{0, 0, 0, 1}, c.ClearColor)
				return
			}
			assert.Positive(t, c.Exposure)
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "excess.toml")
	writeFile(t, path, "")

	changes := make(chan config.Config, 8)
	w, err := config.Watch(path, func(c config.Config) { changes <- c })
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "other.toml"), "width = 1\n")
	select {
	case <-changes:
		t.Fatal("reloaded for a sibling file")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatchMissingDirectory(t *testing.T) {
	_, err := config.Watch(filepath.Join(t.TempDir(), "missing", "excess.toml"), nil)
	assert.Error(t, err)
}
