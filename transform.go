package portals

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/portals/portalrt/core"
)

// TransformComponent is the world transform of an entity.
type TransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// LocalTransformComponent is relative to Parent.Entity.
type LocalTransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

type Parent struct {
	Entity EntityId
}

func NewTransform(position mgl32.Vec3, rotation mgl32.Quat) TransformComponent {
	return TransformComponent{
		Position: position,
		Rotation: rotation,
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (tr TransformComponent) Pose() core.Pose {
	return core.NewPose(tr.Position, tr.Rotation)
}

// SetPose replaces position and rotation; scale is kept.
func (tr *TransformComponent) SetPose(p core.Pose) {
	tr.Position = p.Position
	tr.Rotation = p.Rotation
}

func (tr TransformComponent) Forward() mgl32.Vec3 {
	return tr.Pose().Forward()
}
