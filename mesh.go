package portals

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/portals/portalrt/core"
)

type ShadowMode int

const (
	ShadowsOn ShadowMode = iota
	// ShadowsOnly casts shadows but is invisible to cameras.
	ShadowsOnly
	ShadowsOff
)

func (m ShadowMode) String() string {
	switch m {
	case ShadowsOn:
		return "on"
	case ShadowsOnly:
		return "shadows-only"
	case ShadowsOff:
		return "off"
	}
	return "unknown"
}

// Visible reports whether cameras draw a renderer in this mode.
func (m ShadowMode) Visible() bool {
	return m != ShadowsOnly
}

type MeshComponent struct {
	Mesh AssetId
}

type MeshRendererComponent struct {
	Material   AssetId
	ShadowMode ShadowMode
}

// CameraComponent marks a viewpoint. Exactly one should set Main.
type CameraComponent struct {
	Main bool
	// Fov is the vertical field of view in degrees.
	Fov  float32
	Near float32
	Far  float32
}

func (c CameraComponent) Projection(aspect float32) core.Projection {
	return core.Projection{
		FovY:   c.Fov,
		Aspect: aspect,
		Near:   c.Near,
		Far:    c.Far,
	}
}

type NameComponent struct {
	Name string
}

// TravellerComponent gives an entity the capability to pass through portals.
type TravellerComponent struct{}

// Non-visual capabilities a traveller may carry; visual clones never keep them.
type RigidBodyComponent struct {
	Velocity mgl32.Vec3
	Mass     float32
}

type ScriptComponent struct {
	Name string
}
