package portals

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/portals/portalrt/core"
)

// PortalSettings are defaults applied to every spawned portal.
type PortalSettings struct {
	TriggerHalfExtents mgl32.Vec3
	TriggerOffset      mgl32.Vec3
	ScreenHalfSize     mgl32.Vec2
	DepthBits          int
	DisplayNames       bool
	RenderSelf         bool
}

func DefaultPortalSettings() PortalSettings {
	return PortalSettings{
		TriggerHalfExtents: mgl32.Vec3{1, 1.5, 0.75},
		ScreenHalfSize:     mgl32.Vec2{1, 1.5},
		DepthBits:          24,
		DisplayNames:       true,
	}
}

// PortalComponent tags a portal entity. The runtime state lives in PortalWorld.
type PortalComponent struct {
	Name string
}

// PortalDef describes a portal to spawn. Zero trigger and screen sizes take
// the PortalSettings defaults.
type PortalDef struct {
	Name               string
	Position           mgl32.Vec3
	Rotation           mgl32.Quat
	TriggerHalfExtents mgl32.Vec3
	TriggerOffset      mgl32.Vec3
	ScreenHalfSize     mgl32.Vec2
	RenderSelf         bool
}

// Portal is one surface of a pair. Pointers stay valid until DespawnPortal.
type Portal struct {
	Entity EntityId
	// Camera is the portal's render camera rig entity.
	Camera EntityId
	// Screen material sampled through MainTextureSlot.
	ScreenMaterial AssetId

	name               string
	linked             *Portal
	triggerHalfExtents mgl32.Vec3
	triggerOffset      mgl32.Vec3
	screenHalfSize     mgl32.Vec2
	renderSelf         bool
	displayNames       bool

	tracked []*trackedTraveller
	inside  set[EntityId]
}

func (p *Portal) Name() string {
	return p.name
}

func (p *Portal) RenderSelf() bool {
	return p.renderSelf
}

func (p *Portal) ScreenRadius() float32 {
	return p.screenHalfSize.Len()
}

func (p *Portal) pose(cmd *Commands) (core.Pose, bool) {
	tr, ok := GetComponent[TransformComponent](cmd, p.Entity)
	if !ok {
		return core.Pose{}, false
	}
	return tr.Pose(), true
}

func (p *Portal) trigger(pose core.Pose) core.Box {
	return core.BoxAt(pose, p.triggerOffset, p.triggerHalfExtents)
}

// PortalWorld owns every portal and the traveller bookkeeping shared between them.
type PortalWorld struct {
	settings PortalSettings
	assets   *AssetServer
	targets  *RenderTargetManager
	clones   *VisualCloneManager
	logger   Logger

	portals map[EntityId]*Portal
	order   []*Portal
	// owner maps a traveller to the single portal tracking it.
	owner map[EntityId]*Portal
	caps  map[EntityId]capability

	onCross []func(CrossingEvent)
}

func NewPortalWorld(settings PortalSettings, assets *AssetServer, targets *RenderTargetManager, logger Logger) *PortalWorld {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &PortalWorld{
		settings: settings,
		assets:   assets,
		targets:  targets,
		clones:   NewVisualCloneManager(),
		logger:   logger,
		portals:  make(map[EntityId]*Portal),
		owner:    make(map[EntityId]*Portal),
		caps:     make(map[EntityId]capability),
	}
}

func (w *PortalWorld) Settings() PortalSettings {
	return w.settings
}

func (w *PortalWorld) Clones() *VisualCloneManager {
	return w.clones
}

func (w *PortalWorld) Portal(eid EntityId) (*Portal, bool) {
	p, ok := w.portals[eid]
	return p, ok
}

// Portals returns all portals in ascending entity order.
func (w *PortalWorld) Portals() []*Portal {
	return slices.Clone(w.order)
}

func (w *PortalWorld) PortalByName(name string) (*Portal, bool) {
	for _, p := range w.order {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

func (w *PortalWorld) portal(eid EntityId) (*Portal, error) {
	p, ok := w.portals[eid]
	if !ok {
		return nil, fmt.Errorf("portal %d: %w", eid, ErrUnknownPortal)
	}
	return p, nil
}

// SpawnPortal creates the portal entity, its screen material and its camera
// rig. Both entities appear at the next flush.
func (w *PortalWorld) SpawnPortal(cmd *Commands, def PortalDef) EntityId {
	halfExtents := def.TriggerHalfExtents
	if halfExtents == (mgl32.Vec3{}) {
		halfExtents = w.settings.TriggerHalfExtents
	}
	offset := def.TriggerOffset
	if offset == (mgl32.Vec3{}) {
		offset = w.settings.TriggerOffset
	}
	screen := def.ScreenHalfSize
	if screen == (mgl32.Vec2{}) {
		screen = w.settings.ScreenHalfSize
	}
	rotation := def.Rotation
	if rotation == (mgl32.Quat{}) {
		rotation = mgl32.QuatIdent()
	}

	material := w.assets.CreateMaterial(def.Name + " screen")
	mesh := w.assets.CreateMesh(def.Name+" screen", screen.Len())

	eid := cmd.AddEntity(
		PortalComponent{Name: def.Name},
		NewTransform(def.Position, rotation),
		MeshComponent{Mesh: mesh},
		MeshRendererComponent{Material: material, ShadowMode: ShadowsOn},
	)
	camera := cmd.AddEntity(
		PortalCameraComponent{Portal: eid},
		NewTransform(def.Position, rotation),
		CameraComponent{Fov: 60, Near: 0.05, Far: 1000},
	)

	p := &Portal{
		Entity:             eid,
		Camera:             camera,
		ScreenMaterial:     material,
		name:               def.Name,
		triggerHalfExtents: halfExtents,
		triggerOffset:      offset,
		screenHalfSize:     screen,
		renderSelf:         def.RenderSelf || w.settings.RenderSelf,
		displayNames:       w.settings.DisplayNames,
		inside:             make(set[EntityId]),
	}
	w.portals[eid] = p
	w.order = append(w.order, p)
	slices.SortFunc(w.order, func(a, b *Portal) int { return cmp.Compare(a.Entity, b.Entity) })

	w.logger.Debugf("spawned portal %s as entity %d", p.DisplayName(), eid)
	return eid
}

// DespawnPortal tears a portal down within the call: link, clones, tracking,
// render target, camera rig and the portal entity itself.
func (w *PortalWorld) DespawnPortal(cmd *Commands, eid EntityId) error {
	p, err := w.portal(eid)
	if err != nil {
		return err
	}

	if p.linked != nil {
		w.Unlink(cmd, eid)
	}
	for _, rec := range p.tracked {
		w.dropRecord(cmd, rec)
		delete(w.owner, rec.entity)
	}
	p.tracked = nil
	clear(p.inside)

	if w.targets != nil {
		w.targets.Release(cmd, p.Camera)
	}
	cmd.RemoveEntity(p.Camera)
	cmd.RemoveEntity(p.Entity)

	delete(w.portals, eid)
	w.order = slices.DeleteFunc(w.order, func(other *Portal) bool { return other == p })
	w.logger.Debugf("despawned portal %s", p.name)
	return nil
}

// OnCross registers a hook called after every completed crossing.
func (w *PortalWorld) OnCross(fn func(CrossingEvent)) {
	w.onCross = append(w.onCross, fn)
}

// TrackedBy returns the portal currently tracking the traveller.
func (w *PortalWorld) TrackedBy(traveller EntityId) (*Portal, bool) {
	p, ok := w.owner[traveller]
	return p, ok
}

// PortalModule wires portal tracking, camera alignment and capture.
// It needs AssetServerModule, SpatialGridModule and PlatformWindowModule
// installed before it.
type PortalModule struct {
	Settings PortalSettings
	// Host receives captures; nil installs a HeadlessRenderHost.
	Host RenderHost
}

func (m PortalModule) Install(app *App, cmd *Commands) {
	assets, ok := Resource[AssetServer](app)
	if !ok {
		panic("PortalModule requires AssetServerModule to be installed first")
	}
	if _, ok := Resource[SpatialHashGrid](app); !ok {
		panic("PortalModule requires SpatialGridModule to be installed first")
	}
	if _, ok := Resource[WindowState](app); !ok {
		panic("PortalModule requires PlatformWindowModule to be installed first")
	}

	settings := m.Settings
	if settings == (PortalSettings{}) {
		settings = DefaultPortalSettings()
	}
	if settings.DepthBits == 0 {
		settings.DepthBits = DefaultDepthBits
	}

	host := m.Host
	if host == nil {
		host = NewHeadlessRenderHost()
	}

	targets := NewRenderTargetManager(assets, settings.DepthBits, app.Logger())
	world := NewPortalWorld(settings, assets, targets, app.Logger())

	cmd.AddResources(world, targets, &PortalRenderer{Host: host})

	app.UseSystem(
		System(PortalTriggerSystem).InStage(FixedPreUpdate),
	).UseSystem(
		System(PortalTravelSystem).InStage(FixedStep),
	).UseSystem(
		System(PortalCameraAlignSystem).InStage(PreRender),
	).UseSystem(
		System(PortalCaptureSystem).InStage(Render),
	)
}
