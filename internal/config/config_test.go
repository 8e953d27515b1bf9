package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1280, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Equal(t, 24, cfg.Portals.DepthBits)
	assert.True(t, cfg.Portals.DisplayNames)
	assert.False(t, cfg.Portals.RenderSelf)
	assert.Equal(t, time.Second/60, cfg.Simulation.FixedDt)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.LogFile)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "portals.yaml")

	yamlContent := `
window:
  width: 800
  height: 600

portals:
  trigger_half_extents: [2, 2, 1]
  depth_bits: 16
  display_names: false
  render_self: true

simulation:
  fixed_dt: 10ms
  frames: 30

logging:
  level: "debug"
  log_file: "portals.log"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg := Default()
	require.NoError(t, loadFromFile(cfg, configPath))

	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 600, cfg.Window.Height)
	assert.Equal(t, []float32{2, 2, 1}, cfg.Portals.TriggerHalfExtents)
	assert.Equal(t, 16, cfg.Portals.DepthBits)
	assert.False(t, cfg.Portals.DisplayNames)
	assert.True(t, cfg.Portals.RenderSelf)
	assert.Equal(t, 10*time.Millisecond, cfg.Simulation.FixedDt)
	assert.Equal(t, 30, cfg.Simulation.Frames)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "portals.log", cfg.Logging.LogFile)

	// Untouched sections keep their defaults
	assert.Equal(t, time.Second/60, cfg.Simulation.FrameDt)
	assert.Equal(t, []float32{1, 1.5}, cfg.Portals.ScreenHalfSize)
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	invalidYAML := `
window:
  width: not a number
  invalid syntax here
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	assert.Error(t, loadFromFile(Default(), configPath))
}

func TestLoadFromFileMissing(t *testing.T) {
	assert.Error(t, loadFromFile(Default(), "/nonexistent/path/portals.yaml"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Window.Width = 0 }},
		{"depth bits", func(c *Config) { c.Portals.DepthBits = 8 }},
		{"trigger arity", func(c *Config) { c.Portals.TriggerHalfExtents = []float32{1, 1} }},
		{"negative extent", func(c *Config) { c.Portals.TriggerHalfExtents = []float32{1, -1, 1} }},
		{"offset arity", func(c *Config) { c.Portals.TriggerOffset = []float32{1} }},
		{"screen arity", func(c *Config) { c.Portals.ScreenHalfSize = nil }},
		{"fixed dt", func(c *Config) { c.Simulation.FixedDt = 0 }},
		{"frames", func(c *Config) { c.Simulation.Frames = -1 }},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"thumbnail size", func(c *Config) { c.Render.SketchDir = "out"; c.Render.ThumbHeight = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	assert.NotEmpty(t, dir)
	assert.True(t, filepath.IsAbs(dir), "ConfigDir should return absolute path, got %s", dir)
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	require.NoError(t, os.Chdir(tmpDir))

	assert.Empty(t, findConfigFile())

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "portals.yaml"), []byte("window:\n  width: 800\n"), 0644))
	assert.NotEmpty(t, findConfigFile())
}

func TestParseFlags(t *testing.T) {
	var out bytes.Buffer
	f, err := ParseFlags("portalsim", []string{"--debug", "--width", "1920", "--height=1080", "--frames", "5", "--scene", "demo.yaml"}, &out)
	require.NoError(t, err)

	assert.True(t, f.Debug)
	assert.Equal(t, 1920, f.Width)
	assert.Equal(t, 1080, f.Height)
	assert.Equal(t, 5, f.Frames)
	assert.Equal(t, "demo.yaml", f.Scene)

	_, err = ParseFlags("portalsim", []string{"--bogus"}, &out)
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		flags  Flags
		verify func(t *testing.T, cfg *Config)
	}{
		{
			name:  "debug flag",
			flags: Flags{Debug: true},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:  "width and height flags",
			flags: Flags{Width: 2560, Height: 1440},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2560, cfg.Window.Width)
				assert.Equal(t, 1440, cfg.Window.Height)
			},
		},
		{
			name:  "scene and frames",
			flags: Flags{Scene: "a.yaml", Dump: "out.yaml", Frames: 12},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "a.yaml", cfg.Scene.Path)
				assert.Equal(t, "out.yaml", cfg.Scene.Dump)
				assert.Equal(t, 12, cfg.Simulation.Frames)
			},
		},
		{
			name:  "sketch directory",
			flags: Flags{Sketch: "thumbs"},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "thumbs", cfg.Render.SketchDir)
				assert.Equal(t, 320, cfg.Render.ThumbWidth)
			},
		},
		{
			name:  "zero flags change nothing",
			flags: Flags{},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			applyFlags(cfg, tt.flags)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "portals.yaml")
	yamlContent := `
window:
  width: 1600
  height: 900
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := Load(Flags{ConfigPath: configPath, Width: 1920})
	require.NoError(t, err)

	// Width from flag, height from file
	assert.Equal(t, 1920, cfg.Window.Width)
	assert.Equal(t, 900, cfg.Window.Height)
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "portals.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("portals:\n  depth_bits: 12\n"), 0644))

	_, err := Load(Flags{ConfigPath: configPath})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portals.yaml")
	cfg := Default()
	cfg.Window.Width = 1920
	cfg.Simulation.FixedDt = 5 * time.Millisecond
	require.NoError(t, cfg.SaveTo(path))

	loaded := Default()
	require.NoError(t, loadFromFile(loaded, path))
	assert.Equal(t, cfg, loaded)
}
