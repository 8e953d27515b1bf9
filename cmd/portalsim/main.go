// Package main runs a headless portal simulation from a scene file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	portals "github.com/gekko3d/portals"
	"github.com/gekko3d/portals/internal/config"
)

// WalkComponent moves a traveller along its own forward axis.
type WalkComponent struct {
	Speed float32
}

func WalkSystem(cmd *portals.Commands, clock *portals.Time) {
	step := float32(clock.FixedDt.Seconds())
	portals.MakeQuery2[WalkComponent, portals.TransformComponent](cmd).Map(func(eid portals.EntityId, walk *WalkComponent, tr *portals.TransformComponent) bool {
		tr.Position = tr.Position.Add(tr.Forward().Mul(walk.Speed * step))
		return true
	})
}

func main() {
	flags, err := config.ParseFlags("portalsim", os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	app := portals.NewApp()
	app.UseModules(
		portals.LoggingModule{Prefix: "portalsim", Level: cfg.Logging.Level, LogFile: cfg.Logging.LogFile},
		portals.TimeModule{FixedDt: cfg.Simulation.FixedDt},
	)
	log := app.Logger()
	if zl, ok := portals.Resource[portals.ZapLogger](app); ok {
		defer zl.Sync()
	}

	var sketch *portals.SketchRenderHost
	var host portals.RenderHost
	if cfg.Render.SketchDir != "" {
		h, err := portals.NewSketchRenderHost(cfg.Render.ThumbWidth, cfg.Render.ThumbHeight)
		if err != nil {
			return err
		}
		sketch, host = h, h
	}

	// Walkers move before the spatial grid is rebuilt for the step.
	app.UseSystem(portals.System(WalkSystem).InStage(portals.FixedPreUpdate))
	app.UseModules(
		portals.AssetServerModule{},
		portals.PlatformWindowModule{Width: cfg.Window.Width, Height: cfg.Window.Height, Title: cfg.Window.Title},
		portals.SpatialGridModule{},
		portals.HierarchyModule{},
		portals.PortalModule{Settings: portalSettings(cfg.Portals), Host: host},
		portals.LifecycleModule{},
	)

	cmd := app.Commands()
	world, _ := portals.Resource[portals.PortalWorld](app)
	assets, _ := portals.Resource[portals.AssetServer](app)

	scene := defaultScene()
	if cfg.Scene.Path != "" {
		loaded, err := portals.LoadSceneFile(cfg.Scene.Path)
		if err != nil {
			return err
		}
		scene = loaded
	} else {
		log.Infof("no scene configured, using the built-in corridor")
	}
	if err := simulate(app, cmd, world, assets, cfg, scene); err != nil {
		return err
	}
	if sketch != nil {
		if err := sketch.WritePNGs(cfg.Render.SketchDir); err != nil {
			return fmt.Errorf("writing thumbnails: %w", err)
		}
		log.Infof("thumbnails written to %s", cfg.Render.SketchDir)
	}
	return nil
}

func simulate(app *portals.App, cmd *portals.Commands, world *portals.PortalWorld, assets *portals.AssetServer, cfg *config.Config, scene portals.SceneDef) error {
	log := app.Logger()

	handles, err := portals.LoadScene(cmd, world, assets, scene)
	if err != nil {
		return err
	}
	for _, t := range scene.Travellers {
		if t.Speed != 0 {
			cmd.AddComponents(handles.Travellers[t.Name], WalkComponent{Speed: t.Speed})
		}
	}
	app.FlushCommands()

	crossings := 0
	world.OnCross(func(ev portals.CrossingEvent) {
		crossings++
		from, _ := world.Portal(ev.From)
		to, _ := world.Portal(ev.To)
		log.Debugf("traveller %d: %v -> %v", ev.Traveller, ev.Before.Position, ev.After.Position)
		if from != nil && to != nil {
			fmt.Printf("frame %d: entity %d %s -> %s\n", ev.FixedFrame, ev.Traveller, from.Name(), to.Name())
		}
	})

	log.Infof("simulating %d frames of %v", cfg.Simulation.Frames, cfg.Simulation.FrameDt)
	app.Run(cfg.Simulation.Frames, cfg.Simulation.FrameDt)

	renderer, _ := portals.Resource[portals.PortalRenderer](app)
	log.Infof("done: %d crossings, %d captures, %d failed captures", crossings, renderer.Captures, renderer.Failures)

	if cfg.Scene.Dump != "" {
		if err := portals.SaveSceneFile(portals.SnapshotScene(cmd, world, assets), cfg.Scene.Dump); err != nil {
			return fmt.Errorf("dumping scene: %w", err)
		}
		log.Infof("scene written to %s", cfg.Scene.Dump)
	}
	return nil
}

func portalSettings(c config.PortalsConfig) portals.PortalSettings {
	return portals.PortalSettings{
		TriggerHalfExtents: vec3(c.TriggerHalfExtents),
		TriggerOffset:      vec3(c.TriggerOffset),
		ScreenHalfSize:     mgl32.Vec2{c.ScreenHalfSize[0], c.ScreenHalfSize[1]},
		DepthBits:          c.DepthBits,
		DisplayNames:       c.DisplayNames,
		RenderSelf:         c.RenderSelf,
	}
}

func vec3(v []float32) mgl32.Vec3 {
	if len(v) != 3 {
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{v[0], v[1], v[2]}
}

// defaultScene is two portals facing each other across a gap, with one
// walker heading into the first.
func defaultScene() portals.SceneDef {
	return portals.SceneDef{
		Camera: portals.CameraDef{Position: []float32{0, 1.6, -6}},
		Portals: []portals.ScenePortalDef{
			{Name: "Blue", Position: []float32{0, 0, 0}, Link: "Orange"},
			{Name: "Orange", Position: []float32{12, 0, 0}, Rotation: []float32{0, 180, 0}},
		},
		Travellers: []portals.TravellerDef{
			{
				Name:     "walker",
				Position: []float32{0, 0, -3},
				Mesh:     "capsule",
				Speed:    1.2,
				Children: []portals.MeshNodeDef{
					{Name: "head", Position: []float32{0, 0.8, 0}, Mesh: "sphere", Bounds: 0.3},
				},
			},
		},
	}
}
