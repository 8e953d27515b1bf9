package config

import (
	"flag"
	"io"
)

// Flags are the command-line overrides. Zero values leave the config alone.
type Flags struct {
	ConfigPath string
	Debug      bool
	Width      int
	Height     int
	Frames     int
	Scene      string
	Dump       string
	Sketch     string
}

// ParseFlags parses args (without the program name). Call this early in main().
func ParseFlags(name string, args []string, output io.Writer) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.IntVar(&f.Width, "width", 0, "Output width")
	fs.IntVar(&f.Height, "height", 0, "Output height")
	fs.IntVar(&f.Frames, "frames", 0, "Number of frames to simulate")
	fs.StringVar(&f.Scene, "scene", "", "Scene file to load")
	fs.StringVar(&f.Dump, "dump", "", "Write the final scene state to this file")
	fs.StringVar(&f.Sketch, "sketch", "", "Write portal capture thumbnails to this directory")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, f Flags) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Width > 0 {
		cfg.Window.Width = f.Width
	}
	if f.Height > 0 {
		cfg.Window.Height = f.Height
	}
	if f.Frames > 0 {
		cfg.Simulation.Frames = f.Frames
	}
	if f.Scene != "" {
		cfg.Scene.Path = f.Scene
	}
	if f.Dump != "" {
		cfg.Scene.Dump = f.Dump
	}
	if f.Sketch != "" {
		cfg.Render.SketchDir = f.Sketch
	}
}
