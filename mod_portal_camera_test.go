package portals

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/gekko3d/portals/portalrt/core"
)

// screenProbe records what the linked screen looked like while capturing.
type screenProbe struct {
	cmd      *Commands
	screen   EntityId
	modes    []ShadowMode
	requests []CaptureRequest
	fail     error
}

func (p *screenProbe) Capture(req CaptureRequest) error {
	if mr, ok := GetComponent[MeshRendererComponent](p.cmd, p.screen); ok {
		p.modes = append(p.modes, mr.ShadowMode)
	}
	p.requests = append(p.requests, req)
	return p.fail
}

var mainCameraPose = core.NewPose(mgl32.Vec3{0, 0, -5}, mgl32.QuatIdent())

func rig(t *testing.T, f *portalFixture, p *Portal) *PortalCameraComponent {
	t.Helper()
	r, ok := GetComponent[PortalCameraComponent](f.cmd, p.Camera)
	require.True(t, ok)
	return r
}

func TestPortalCameraFollowsMainCamera(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, pb := f.facingPair(t)
	f.spawnMainCamera(mainCameraPose)

	f.step()

	require.True(t, rig(t, f, pa).Visible)
	assert.False(t, rig(t, f, pb).Visible, "B is outside the main camera frustum")

	aPose, _ := pa.pose(f.cmd)
	bPose, _ := pb.pose(f.cmd)
	want := core.Remap(aPose, bPose, mainCameraPose)
	got := f.transform(t, pa.Camera).Pose()
	assert.True(t, got.ApproxEqual(want, 1e-4, 1e-5), "rig pose %v, want %v", got, want)
	assert.InDelta(t, 10, got.Position.X(), 1e-4)
	assert.InDelta(t, 5, got.Position.Z(), 1e-4)

	lens, ok := GetComponent[CameraComponent](f.cmd, pa.Camera)
	require.True(t, ok)
	assert.Equal(t, float32(60), lens.Fov)
	assert.Equal(t, float32(200), lens.Far)
	assert.False(t, lens.Main)

	req, ok := f.host.Last(pa.Entity)
	require.True(t, ok)
	assert.Equal(t, pa.Camera, req.Camera)
	assert.True(t, req.Pose.ApproxEqual(want, 1e-4, 1e-5))
	assert.InDelta(t, 800.0/600.0, req.Projection.Aspect, 1e-6)
	_, ok = f.host.Last(pb.Entity)
	assert.False(t, ok)

	renderer, _ := Resource[PortalRenderer](f.app)
	assert.Equal(t, 1, renderer.Captures)
}

func TestNoMainCameraNoCaptures(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, _ := f.facingPair(t)

	f.step()

	assert.False(t, rig(t, f, pa).Visible)
	assert.Empty(t, f.host.Requests)
}

func TestUnlinkedPortalDoesNotCapture(t *testing.T) {
	f := newPortalFixture(t, nil)
	f.world.SpawnPortal(f.cmd, PortalDef{Name: "Lonely"})
	f.app.FlushCommands()
	f.spawnMainCamera(mainCameraPose)

	f.step()
	assert.Empty(t, f.host.Requests)
}

func TestResolutionChangeReallocatesOncePerCamera(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, _ := f.facingPair(t)
	f.spawnMainCamera(mainCameraPose)
	targets, ok := Resource[RenderTargetManager](f.app)
	require.True(t, ok)

	f.step()
	require.Equal(t, 1, targets.Allocations())
	first := rig(t, f, pa).Target
	tex, ok := f.assets.Texture(first)
	require.True(t, ok)
	assert.Equal(t, uint32(800), tex.Width)
	assert.Equal(t, uint32(600), tex.Height)
	assert.Equal(t, DefaultDepthBits, tex.DepthBits)
	bound, _ := f.assets.MaterialTexture(pa.ScreenMaterial, MainTextureSlot)
	assert.Equal(t, first, bound)

	f.step()
	assert.Equal(t, 1, targets.Allocations(), "unchanged size keeps the target")

	f.window.Resize(1920, 1080)
	f.step()
	f.step()

	assert.Equal(t, 2, targets.Allocations())
	r := rig(t, f, pa)
	assert.Equal(t, 1920, r.Width)
	assert.Equal(t, 1080, r.Height)
	tex, _ = f.assets.Texture(r.Target)
	assert.Equal(t, uint32(1920), tex.Width)
	assert.Equal(t, uint32(1080), tex.Height)

	old, _ := f.assets.Texture(first)
	assert.True(t, old.Released)
	bound, _ = f.assets.MaterialTexture(pa.ScreenMaterial, MainTextureSlot)
	assert.Equal(t, r.Target, bound)
	assert.Equal(t, 1, f.assets.LiveRenderTextures())

	req, _ := f.host.Last(pa.Entity)
	assert.Equal(t, 1920, req.Width)
	assert.Equal(t, 1080, req.Height)
	assert.Equal(t, r.Target, req.Target)
}

func TestCaptureHidesLinkedScreen(t *testing.T) {
	probe := &screenProbe{}
	f := newPortalFixture(t, probe)
	pa, pb := f.facingPair(t)
	probe.cmd = f.cmd
	probe.screen = pb.Entity
	f.spawnMainCamera(mainCameraPose)

	f.step()

	require.Len(t, probe.requests, 1)
	assert.Equal(t, []ShadowMode{ShadowsOnly}, probe.modes)
	for _, d := range probe.requests[0].Draws {
		assert.NotEqual(t, pb.Entity, d.Entity, "hidden screen must not be drawn")
		assert.NotEqual(t, pa.Entity, d.Entity, "A is behind the rig")
	}

	mr, ok := GetComponent[MeshRendererComponent](f.cmd, pb.Entity)
	require.True(t, ok)
	assert.Equal(t, ShadowsOn, mr.ShadowMode, "screen is restored after the capture")
}

func TestCaptureFailureStillRestoresScreen(t *testing.T) {
	probe := &screenProbe{fail: errors.New("device lost")}
	f := newPortalFixture(t, probe)
	_, pb := f.facingPair(t)
	probe.cmd = f.cmd
	probe.screen = pb.Entity
	f.spawnMainCamera(mainCameraPose)

	f.step()

	assert.Equal(t, []ShadowMode{ShadowsOnly}, probe.modes)
	mr, _ := GetComponent[MeshRendererComponent](f.cmd, pb.Entity)
	assert.Equal(t, ShadowsOn, mr.ShadowMode)

	renderer, _ := Resource[PortalRenderer](f.app)
	assert.Equal(t, 0, renderer.Captures)
	assert.Equal(t, 1, renderer.Failures)
	assert.Len(t, f.logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("device lost").All(), 1)
}

func TestRenderSelfKeepsLinkedScreenVisible(t *testing.T) {
	probe := &screenProbe{}
	f := newPortalFixture(t, probe)
	a := f.world.SpawnPortal(f.cmd, PortalDef{Name: "A"})
	b := f.world.SpawnPortal(f.cmd, PortalDef{Name: "B", Position: mgl32.Vec3{10, 0, 0}, Rotation: yawDeg(180), RenderSelf: true})
	require.NoError(t, f.world.Link(f.cmd, a, b))
	f.app.FlushCommands()
	probe.cmd = f.cmd
	probe.screen = b
	f.spawnMainCamera(mainCameraPose)

	f.step()

	require.Len(t, probe.requests, 1)
	assert.Equal(t, []ShadowMode{ShadowsOn}, probe.modes)
	drawn := false
	for _, d := range probe.requests[0].Draws {
		if d.Entity == b {
			drawn = true
		}
	}
	assert.True(t, drawn)
}

func TestDrawListSkipsShadowOnlyAndOutOfView(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, _ := f.facingPair(t)
	f.spawnMainCamera(mainCameraPose)

	mesh := f.assets.CreateMesh("rock", 0.5)
	mat := f.assets.CreateMaterial("rock")
	// In front of the A rig, which sits at (10,0,5) looking down -Z.
	visible := f.cmd.AddEntity(NewTransform(mgl32.Vec3{10, 0, -3}, mgl32.QuatIdent()), MeshComponent{Mesh: mesh}, MeshRendererComponent{Material: mat})
	shadow := f.cmd.AddEntity(NewTransform(mgl32.Vec3{10, 0, -4}, mgl32.QuatIdent()), MeshComponent{Mesh: mesh}, MeshRendererComponent{Material: mat, ShadowMode: ShadowsOnly})
	behind := f.cmd.AddEntity(NewTransform(mgl32.Vec3{10, 0, 20}, mgl32.QuatIdent()), MeshComponent{Mesh: mesh}, MeshRendererComponent{Material: mat})
	f.app.FlushCommands()

	f.step()

	req, ok := f.host.Last(pa.Entity)
	require.True(t, ok)
	var drawn []EntityId
	for _, d := range req.Draws {
		drawn = append(drawn, d.Entity)
	}
	assert.Contains(t, drawn, visible)
	assert.NotContains(t, drawn, shadow)
	assert.NotContains(t, drawn, behind)
}
