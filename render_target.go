package portals

import (
	"fmt"
)

const DefaultDepthBits = 24

// RenderTargetManager keeps each portal camera's color buffer sized to the
// output and bound to the portal screen.
type RenderTargetManager struct {
	assets      *AssetServer
	depthBits   int
	allocations int
	logger      Logger
}

func NewRenderTargetManager(assets *AssetServer, depthBits int, logger Logger) *RenderTargetManager {
	if depthBits == 0 {
		depthBits = DefaultDepthBits
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &RenderTargetManager{
		assets:    assets,
		depthBits: depthBits,
		logger:    logger,
	}
}

// Allocations counts targets created since startup.
func (m *RenderTargetManager) Allocations() int {
	return m.allocations
}

func (m *RenderTargetManager) DepthBits() int {
	return m.depthBits
}

// EnsureTarget (re)allocates the camera's target when it is missing, released
// or sized differently from width x height, and binds it to the screen of
// the camera's portal.
func (m *RenderTargetManager) EnsureTarget(cmd *Commands, camera EntityId, width, height int) (bool, error) {
	rig, ok := GetComponent[PortalCameraComponent](cmd, camera)
	if !ok {
		return false, fmt.Errorf("entity %d is not a portal camera: %w", camera, ErrUnknownPortal)
	}
	if width <= 0 || height <= 0 {
		return false, fmt.Errorf("render target size %dx%d", width, height)
	}

	if rig.Target != "" && rig.Width == width && rig.Height == height {
		if tex, ok := m.assets.Texture(rig.Target); ok && !tex.Released {
			return false, nil
		}
	}

	if rig.Target != "" {
		if err := m.assets.ReleaseTexture(rig.Target); err != nil {
			m.logger.Warnf("releasing render target of camera %d: %v", camera, err)
		}
	}

	tex := m.assets.CreateRenderTexture(uint32(width), uint32(height), m.depthBits)
	m.logger.Debugf("portal camera %d render target %dx%d -> %dx%d", camera, rig.Width, rig.Height, width, height)
	rig.Target = tex
	rig.Width = width
	rig.Height = height
	m.allocations++

	renderer, ok := GetComponent[MeshRendererComponent](cmd, rig.Portal)
	if !ok {
		return true, fmt.Errorf("portal %d has no screen renderer: %w", rig.Portal, ErrUnknownPortal)
	}
	if err := m.assets.SetMaterialTexture(renderer.Material, MainTextureSlot, tex); err != nil {
		return true, err
	}
	return true, nil
}

// Release frees the camera's target.
func (m *RenderTargetManager) Release(cmd *Commands, camera EntityId) {
	rig, ok := GetComponent[PortalCameraComponent](cmd, camera)
	if !ok || rig.Target == "" {
		return
	}
	if err := m.assets.ReleaseTexture(rig.Target); err != nil {
		m.logger.Warnf("releasing render target of camera %d: %v", camera, err)
	}
	rig.Target = ""
	rig.Width = 0
	rig.Height = 0
}
