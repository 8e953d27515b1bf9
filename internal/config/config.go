// Package config handles portal simulation configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds all simulation settings.
type Config struct {
	Window     WindowConfig     `yaml:"window"`
	Portals    PortalsConfig    `yaml:"portals"`
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Scene      SceneConfig      `yaml:"scene"`
	Render     RenderConfig     `yaml:"render"`
}

// WindowConfig is the output resolution portal render targets follow.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// PortalsConfig holds defaults applied to every portal.
type PortalsConfig struct {
	TriggerHalfExtents []float32 `yaml:"trigger_half_extents"`
	TriggerOffset      []float32 `yaml:"trigger_offset"`
	ScreenHalfSize     []float32 `yaml:"screen_half_size"`
	DepthBits          int       `yaml:"depth_bits"` // 16, 24 or 32
	DisplayNames       bool      `yaml:"display_names"`
	RenderSelf         bool      `yaml:"render_self"`
}

// SimulationConfig drives the frame loop.
type SimulationConfig struct {
	FixedDt time.Duration `yaml:"fixed_dt"`
	FrameDt time.Duration `yaml:"frame_dt"`
	Frames  int           `yaml:"frames"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// SceneConfig points at the scene to load and where to dump the final state.
type SceneConfig struct {
	Path string `yaml:"path"`
	Dump string `yaml:"dump"`
}

// RenderConfig selects the capture host. An empty SketchDir keeps the
// headless recorder; otherwise thumbnails are written there on exit.
type RenderConfig struct {
	SketchDir   string `yaml:"sketch_dir"`
	ThumbWidth  int    `yaml:"thumb_width"`
	ThumbHeight int    `yaml:"thumb_height"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "Portals",
		},
		Portals: PortalsConfig{
			TriggerHalfExtents: []float32{1, 1.5, 0.75},
			TriggerOffset:      []float32{0, 0, 0},
			ScreenHalfSize:     []float32{1, 1.5},
			DepthBits:          24,
			DisplayNames:       true,
			RenderSelf:         false,
		},
		Simulation: SimulationConfig{
			FixedDt: time.Second / 60,
			FrameDt: time.Second / 60,
			Frames:  240,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Scene: SceneConfig{
			Path: "",
		},
		Render: RenderConfig{
			ThumbWidth:  320,
			ThumbHeight: 180,
		},
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d: %w", c.Window.Width, c.Window.Height, ErrInvalidConfig)
	}
	switch c.Portals.DepthBits {
	case 16, 24, 32:
	default:
		return fmt.Errorf("depth_bits %d, want 16, 24 or 32: %w", c.Portals.DepthBits, ErrInvalidConfig)
	}
	if len(c.Portals.TriggerHalfExtents) != 3 {
		return fmt.Errorf("trigger_half_extents needs 3 values: %w", ErrInvalidConfig)
	}
	for _, v := range c.Portals.TriggerHalfExtents {
		if v <= 0 {
			return fmt.Errorf("trigger_half_extents must be positive: %w", ErrInvalidConfig)
		}
	}
	if len(c.Portals.TriggerOffset) != 0 && len(c.Portals.TriggerOffset) != 3 {
		return fmt.Errorf("trigger_offset needs 3 values: %w", ErrInvalidConfig)
	}
	if len(c.Portals.ScreenHalfSize) != 2 {
		return fmt.Errorf("screen_half_size needs 2 values: %w", ErrInvalidConfig)
	}
	if c.Simulation.FixedDt <= 0 || c.Simulation.FrameDt <= 0 {
		return fmt.Errorf("fixed_dt and frame_dt must be positive: %w", ErrInvalidConfig)
	}
	if c.Simulation.Frames < 0 {
		return fmt.Errorf("frames %d: %w", c.Simulation.Frames, ErrInvalidConfig)
	}
	if c.Render.SketchDir != "" && (c.Render.ThumbWidth <= 0 || c.Render.ThumbHeight <= 0) {
		return fmt.Errorf("thumbnail size %dx%d: %w", c.Render.ThumbWidth, c.Render.ThumbHeight, ErrInvalidConfig)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level %q: %w", c.Logging.Level, ErrInvalidConfig)
	}
	return nil
}
