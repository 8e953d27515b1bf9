package portals

import (
	"reflect"
)

// WindowState is the output surface. Headless runs only track its size.
type WindowState struct {
	WindowWidth  int
	WindowHeight int
	windowTitle  string
	resizes      int
}

// PlatformWindowModule provides a single shared WindowState resource.
// Install is idempotent: an existing WindowState is reused.
type PlatformWindowModule struct {
	Width  int
	Height int
	Title  string
}

// NewPlatformWindow fills in defaults for zero sizes and an empty title.
func NewPlatformWindow(width, height int, title string) *PlatformWindowModule {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if title == "" {
		title = "Portals"
	}
	return &PlatformWindowModule{
		Width:  width,
		Height: height,
		Title:  title,
	}
}

func (m PlatformWindowModule) Install(app *App, cmd *Commands) {
	t := reflect.TypeOf((*WindowState)(nil)).Elem()
	if _, ok := app.resources[t]; ok {
		return
	}
	defaults := NewPlatformWindow(m.Width, m.Height, m.Title)
	app.addResources(&WindowState{
		WindowWidth:  defaults.Width,
		WindowHeight: defaults.Height,
		windowTitle:  defaults.Title,
	})
}

// Resize changes the output resolution. Portal render targets pick the new
// size up the next time they render.
func (ws *WindowState) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if width == ws.WindowWidth && height == ws.WindowHeight {
		return
	}
	ws.WindowWidth = width
	ws.WindowHeight = height
	ws.resizes++
}

func (ws *WindowState) Title() string {
	return ws.windowTitle
}

func (ws *WindowState) Aspect() float32 {
	if ws.WindowHeight == 0 {
		return 1
	}
	return float32(ws.WindowWidth) / float32(ws.WindowHeight)
}
