package portals

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/portals/portalrt/core"
)

// DrawItem is one mesh instance a capture should draw.
type DrawItem struct {
	Entity   EntityId
	Mesh     AssetId
	Material AssetId
	Pose     core.Pose
	Scale    mgl32.Vec3
	Radius   float32 // world-space bounds, scale applied
}

// CaptureRequest asks the host to render one portal camera into its target.
type CaptureRequest struct {
	Portal     EntityId
	Name       string // display name of the portal
	Camera     EntityId
	Pose       core.Pose
	Projection core.Projection
	Target     AssetId
	Width      int
	Height     int
	Draws      []DrawItem
	Frame      uint64
}

// RenderHost performs the actual rendering of portal cameras.
type RenderHost interface {
	Capture(req CaptureRequest) error
}

// PortalRenderer is the resource systems use to reach the render host.
type PortalRenderer struct {
	Host     RenderHost
	Captures int
	Failures int
}

// HeadlessRenderHost records requests instead of rendering them.
type HeadlessRenderHost struct {
	Requests []CaptureRequest
	// Fail, when set, is returned from every Capture after recording it.
	Fail error
}

func NewHeadlessRenderHost() *HeadlessRenderHost {
	return &HeadlessRenderHost{}
}

func (h *HeadlessRenderHost) Capture(req CaptureRequest) error {
	h.Requests = append(h.Requests, req)
	return h.Fail
}

func (h *HeadlessRenderHost) Reset() {
	h.Requests = h.Requests[:0]
}

// Last returns the most recent request for the given portal.
func (h *HeadlessRenderHost) Last(portal EntityId) (CaptureRequest, bool) {
	for i := len(h.Requests) - 1; i >= 0; i-- {
		if h.Requests[i].Portal == portal {
			return h.Requests[i], true
		}
	}
	return CaptureRequest{}, false
}
