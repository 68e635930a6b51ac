// package config holds the demo driver's settings: window, scene, presentation, camera and logging.
// Settings load from a TOML or YAML file chosen by extension; anything the file leaves out keeps its default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Carmen-Shannon/excess/engine/renderer/gpu"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation and format error returned by this package.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete driver configuration.
type Config struct {
	Title      string `toml:"title" yaml:"title"`
	Width      int    `toml:"width" yaml:"width"`
	Height     int    `toml:"height" yaml:"height"`
	Fullscreen bool   `toml:"fullscreen" yaml:"fullscreen"`

	// Scene is the glTF or GLB file the demo imports.
	Scene string `toml:"scene" yaml:"scene"`
	// Texture is applied to the demo model when set.
	Texture string `toml:"texture" yaml:"texture"`

	PresentMode    string `toml:"present_mode" yaml:"present_mode"`
	FramesInFlight int    `toml:"frames_in_flight" yaml:"frames_in_flight"`
	UniformWorkers int    `toml:"uniform_workers" yaml:"uniform_workers"`

	ClearColor [4]float64 `toml:"clear_color" yaml:"clear_color"`
	FovDegrees float32    `toml:"fov_degrees" yaml:"fov_degrees"`
	Near       float32    `toml:"near" yaml:"near"`
	Far        float32    `toml:"far" yaml:"far"`
	Exposure   float32    `toml:"exposure" yaml:"exposure"`
	Vignette   float32    `toml:"vignette" yaml:"vignette"`

	LogLevel string `toml:"log_level" yaml:"log_level"`
	Profiler bool   `toml:"profiler" yaml:"profiler"`
}

// Default returns the configuration used when no file is present.
//
// Returns:
//   - Config: the default settings
func Default() Config {
	return Config{
		Title:          "some excess demo",
		Width:          1280,
		Height:         720,
		Scene:          "assets/teapots.glb",
		Texture:        "assets/excess-logo.png",
		PresentMode:    "vsync",
		FramesInFlight: 3,
		UniformWorkers: max(runtime.NumCPU()-1, 1),
		ClearColor:     [4]float64{0.5, 0.5, 0.5, 1},
		FovDegrees:     60,
		Near:           0.01,
		Far:            100,
		Exposure:       1,
		Vignette:       0.35,
		LogLevel:       "info",
	}
}

// Load reads the configuration at path, expanding a leading "~".
// A missing file yields Default() without error. The format is picked by extension:
// .toml, or .yaml / .yml. Unknown keys are rejected.
//
// Parameters:
//   - path: the config file path
//
// Returns:
//   - Config: the loaded and validated configuration
//   - error: a read error, or an error wrapping ErrInvalidConfig
func Load(path string) (Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("expand %s: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(expanded))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", expanded, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".toml", ".yaml" or ".yml") on top of Default()
// and validates the result.
//
// Parameters:
//   - data: the file contents
//   - ext: the file extension selecting the decoder
//
// Returns:
//   - Config: the decoded configuration
//   - error: an error wrapping ErrInvalidConfig
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()

	switch strings.ToLower(ext) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("%w: toml: %v", ErrInvalidConfig, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%w: yaml: %v", ErrInvalidConfig, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unknown config format %q", ErrInvalidConfig, ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
//
// Returns:
//   - error: the first problem found, wrapping ErrInvalidConfig
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d must be positive", ErrInvalidConfig, c.Width, c.Height)
	case c.FramesInFlight < 1:
		return fmt.Errorf("%w: frames_in_flight %d must be at least 1", ErrInvalidConfig, c.FramesInFlight)
	case c.UniformWorkers < 0:
		return fmt.Errorf("%w: uniform_workers %d must not be negative", ErrInvalidConfig, c.UniformWorkers)
	case c.FovDegrees <= 0 || c.FovDegrees >= 180:
		return fmt.Errorf("%w: fov_degrees %g must be in (0, 180)", ErrInvalidConfig, c.FovDegrees)
	case c.Near <= 0:
		return fmt.Errorf("%w: near %g must be positive", ErrInvalidConfig, c.Near)
	case c.Far <= c.Near:
		return fmt.Errorf("%w: far %g must be greater than near %g", ErrInvalidConfig, c.Far, c.Near)
	case c.Exposure <= 0:
		return fmt.Errorf("%w: exposure %g must be positive", ErrInvalidConfig, c.Exposure)
	case c.Vignette < 0:
		return fmt.Errorf("%w: vignette %g must not be negative", ErrInvalidConfig, c.Vignette)
	}

	if _, err := c.Present(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Present returns the parsed present mode.
func (c Config) Present() (gpu.PresentMode, error) {
	mode, err := gpu.ParsePresentMode(c.PresentMode)
	if err != nil {
		return mode, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return mode, nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return level, nil
}
