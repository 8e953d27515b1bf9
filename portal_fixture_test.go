package portals

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gekko3d/portals/portalrt/core"
)

const testStep = 10 * time.Millisecond

type portalFixture struct {
	app    *App
	cmd    *Commands
	world  *PortalWorld
	assets *AssetServer
	window *WindowState
	host   *HeadlessRenderHost
	logs   *observer.ObservedLogs
}

func newPortalFixture(t *testing.T, host RenderHost) *portalFixture {
	t.Helper()
	zcore, logs := observer.New(zapcore.DebugLevel)

	app := NewApp()
	app.addResources(NewZapLoggerWithCore("test", zcore))
	headless, _ := host.(*HeadlessRenderHost)
	if host == nil {
		headless = NewHeadlessRenderHost()
		host = headless
	}
	app.UseModules(
		TimeModule{FixedDt: testStep},
		AssetServerModule{},
		PlatformWindowModule{Width: 800, Height: 600},
		SpatialGridModule{},
		HierarchyModule{},
		PortalModule{Settings: DefaultPortalSettings(), Host: host},
	)

	f := &portalFixture{app: app, cmd: app.Commands(), host: headless, logs: logs}
	var ok bool
	f.world, ok = Resource[PortalWorld](app)
	require.True(t, ok)
	f.assets, ok = Resource[AssetServer](app)
	require.True(t, ok)
	f.window, ok = Resource[WindowState](app)
	require.True(t, ok)
	return f
}

func yawDeg(deg float32) mgl32.Quat {
	return mgl32.QuatRotate(mgl32.DegToRad(deg), mgl32.Vec3{0, 1, 0})
}

// facingPair spawns A at the origin facing +Z and B at (10,0,0) facing -Z, linked.
func (f *portalFixture) facingPair(t *testing.T) (*Portal, *Portal) {
	t.Helper()
	a := f.world.SpawnPortal(f.cmd, PortalDef{Name: "A", Position: mgl32.Vec3{0, 0, 0}, Rotation: mgl32.QuatIdent()})
	b := f.world.SpawnPortal(f.cmd, PortalDef{Name: "B", Position: mgl32.Vec3{10, 0, 0}, Rotation: yawDeg(180)})
	require.NoError(t, f.world.Link(f.cmd, a, b))
	f.app.FlushCommands()
	pa, _ := f.world.Portal(a)
	pb, _ := f.world.Portal(b)
	return pa, pb
}

func (f *portalFixture) spawnTraveller(pos mgl32.Vec3, rot mgl32.Quat, extra ...any) EntityId {
	mesh := f.assets.CreateMesh("body", 0.5)
	mat := f.assets.CreateMaterial("body")
	comps := append([]any{
		TravellerComponent{},
		NewTransform(pos, rot),
		ColliderComponent{HalfExtents: mgl32.Vec3{0.25, 0.25, 0.25}},
		MeshComponent{Mesh: mesh},
		MeshRendererComponent{Material: mat},
	}, extra...)
	eid := f.cmd.AddEntity(comps...)
	f.app.FlushCommands()
	return eid
}

func (f *portalFixture) spawnMainCamera(pose core.Pose) EntityId {
	eid := f.cmd.AddEntity(
		CameraComponent{Main: true, Fov: 60, Near: 0.05, Far: 200},
		NewTransform(pose.Position, pose.Rotation),
	)
	f.app.FlushCommands()
	return eid
}

func (f *portalFixture) transform(t *testing.T, eid EntityId) *TransformComponent {
	t.Helper()
	tr, ok := GetComponent[TransformComponent](f.cmd, eid)
	require.True(t, ok, "entity %d has no transform", eid)
	return tr
}

// step advances exactly one fixed step and one render pass.
func (f *portalFixture) step() {
	f.app.Update(testStep)
}

func (f *portalFixture) cloneEntities() []EntityId {
	var ids []EntityId
	MakeQuery1[VisualCloneComponent](f.cmd).Map(func(eid EntityId, _ *VisualCloneComponent) bool {
		ids = append(ids, eid)
		return true
	})
	return ids
}

// trackingPortals lists every portal tracking eid.
func (f *portalFixture) trackingPortals(eid EntityId) []*Portal {
	var res []*Portal
	for _, p := range f.world.Portals() {
		if _, rec := p.record(eid); rec != nil {
			res = append(res, p)
		}
	}
	return res
}
