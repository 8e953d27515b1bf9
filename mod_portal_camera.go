package portals

import (
	"fmt"

	"github.com/gekko3d/portals/portalrt/core"
)

// PortalCameraComponent marks the render camera of a portal. Its pose is
// derived every frame; Target is owned by the RenderTargetManager.
type PortalCameraComponent struct {
	Portal  EntityId
	Target  AssetId
	Width   int
	Height  int
	Visible bool
}

// MainCamera finds the lowest-id camera flagged Main.
func MainCamera(cmd *Commands) (EntityId, TransformComponent, CameraComponent, bool) {
	var (
		found EntityId
		tr    TransformComponent
		cam   CameraComponent
		ok    bool
	)
	MakeQuery2[CameraComponent, TransformComponent](cmd).Map(func(eid EntityId, c *CameraComponent, t *TransformComponent) bool {
		if !c.Main {
			return true
		}
		found, tr, cam, ok = eid, *t, *c, true
		return false
	})
	return found, tr, cam, ok
}

// PortalCameraAlignSystem places every rig whose portal screen the main
// camera can see at the main camera pose remapped through the link.
func PortalCameraAlignSystem(cmd *Commands, world *PortalWorld, window *WindowState) {
	_, mainTr, mainCam, ok := MainCamera(cmd)
	if !ok {
		for _, p := range world.order {
			if rig, ok := GetComponent[PortalCameraComponent](cmd, p.Camera); ok {
				rig.Visible = false
			}
		}
		return
	}
	mainPose := mainTr.Pose()
	frustum := core.FrustumFor(mainPose, mainCam.Projection(window.Aspect()))

	for _, p := range world.order {
		rig, ok := GetComponent[PortalCameraComponent](cmd, p.Camera)
		if !ok {
			continue
		}
		rig.Visible = false
		if p.linked == nil {
			continue
		}
		portalPose, ok := p.pose(cmd)
		if !ok {
			continue
		}
		linkedPose, ok := p.linked.pose(cmd)
		if !ok {
			continue
		}
		if !frustum.SphereVisible(portalPose.Position, p.ScreenRadius()) {
			continue
		}

		rigTr, ok := GetComponent[TransformComponent](cmd, p.Camera)
		if !ok {
			continue
		}
		rigTr.SetPose(core.Remap(portalPose, linkedPose, mainPose))
		if rigCam, ok := GetComponent[CameraComponent](cmd, p.Camera); ok {
			rigCam.Fov = mainCam.Fov
			rigCam.Near = mainCam.Near
			rigCam.Far = mainCam.Far
		}
		rig.Visible = true
	}
}

// PortalCaptureSystem renders every visible rig into its target.
func PortalCaptureSystem(cmd *Commands, world *PortalWorld, targets *RenderTargetManager, renderer *PortalRenderer, window *WindowState) {
	frame := uint64(0)
	if t := cmd.app.time(); t != nil {
		frame = t.Frame
	}
	for _, p := range world.order {
		rig, ok := GetComponent[PortalCameraComponent](cmd, p.Camera)
		if !ok || !rig.Visible || p.linked == nil {
			continue
		}
		if _, err := targets.EnsureTarget(cmd, p.Camera, window.WindowWidth, window.WindowHeight); err != nil {
			world.logger.Warnf("portal %s: %v", p.name, err)
			continue
		}
		if err := world.capture(cmd, p, renderer, frame); err != nil {
			renderer.Failures++
			world.logger.Warnf("portal %s capture: %v", p.name, err)
			continue
		}
		renderer.Captures++
	}
}

// capture hides the linked screen for exactly one capture.
func (w *PortalWorld) capture(cmd *Commands, p *Portal, renderer *PortalRenderer, frame uint64) error {
	rig, ok := GetComponent[PortalCameraComponent](cmd, p.Camera)
	if !ok {
		return fmt.Errorf("camera %d: %w", p.Camera, ErrUnknownPortal)
	}
	rigTr, ok := GetComponent[TransformComponent](cmd, p.Camera)
	if !ok {
		return fmt.Errorf("camera %d has no transform: %w", p.Camera, ErrMissingCapability)
	}
	rigCam, ok := GetComponent[CameraComponent](cmd, p.Camera)
	if !ok {
		return fmt.Errorf("camera %d has no lens: %w", p.Camera, ErrMissingCapability)
	}

	if !p.linked.renderSelf {
		if screen, ok := GetComponent[MeshRendererComponent](cmd, p.linked.Entity); ok {
			previous := screen.ShadowMode
			screen.ShadowMode = ShadowsOnly
			defer func() { screen.ShadowMode = previous }()
		}
	}

	aspect := float32(rig.Width) / float32(rig.Height)
	proj := rigCam.Projection(aspect)
	req := CaptureRequest{
		Portal:     p.Entity,
		Name:       p.DisplayName(),
		Camera:     p.Camera,
		Pose:       rigTr.Pose(),
		Projection: proj,
		Target:     rig.Target,
		Width:      rig.Width,
		Height:     rig.Height,
		Draws:      w.drawList(cmd, core.FrustumFor(rigTr.Pose(), proj)),
		Frame:      frame,
	}
	return renderer.Host.Capture(req)
}

// drawList collects the visible meshes inside the frustum in entity order.
func (w *PortalWorld) drawList(cmd *Commands, frustum core.Frustum) []DrawItem {
	var draws []DrawItem
	MakeQuery3[MeshComponent, MeshRendererComponent, TransformComponent](cmd).Map(func(eid EntityId, mesh *MeshComponent, mr *MeshRendererComponent, tr *TransformComponent) bool {
		if !mr.ShadowMode.Visible() {
			return true
		}
		radius := float32(0)
		if asset, ok := w.assets.Mesh(mesh.Mesh); ok {
			radius = asset.BoundsRadius * maxAbsComponent(tr.Scale)
		}
		if !frustum.SphereVisible(tr.Position, radius) {
			return true
		}
		draws = append(draws, DrawItem{
			Entity:   eid,
			Mesh:     mesh.Mesh,
			Material: mr.Material,
			Pose:     tr.Pose(),
			Scale:    tr.Scale,
			Radius:   radius,
		})
		return true
	})
	return draws
}

func maxAbsComponent(v [3]float32) float32 {
	m := abs32(v[0])
	if a := abs32(v[1]); a > m {
		m = a
	}
	if a := abs32(v[2]); a > m {
		m = a
	}
	return m
}
