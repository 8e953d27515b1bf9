package portals

import (
	"github.com/go-gl/mathgl/mgl32"
)

type HierarchyModule struct{}

func (HierarchyModule) Install(app *App, cmd *Commands) {
	app.UseSystem(
		System(TransformHierarchySystem).
			InStage(PostUpdate),
	)
}

// maxHierarchyPasses is the deepest chain propagated in one call.
const maxHierarchyPasses = 8

func TransformHierarchySystem(cmd *Commands) {
	// Roots mirror their world transform into the local one.
	MakeQuery2[LocalTransformComponent, TransformComponent](cmd).Map(func(eid EntityId, local *LocalTransformComponent, tr *TransformComponent) bool {
		if HasComponent[Parent](cmd, eid) {
			return true
		}
		local.Position = tr.Position
		local.Rotation = tr.Rotation
		local.Scale = tr.Scale
		return true
	})

	for pass := 0; pass < maxHierarchyPasses; pass++ {
		changed := false
		MakeQuery3[LocalTransformComponent, Parent, TransformComponent](cmd).Map(func(eid EntityId, local *LocalTransformComponent, parent *Parent, world *TransformComponent) bool {
			parentWorld, ok := GetComponent[TransformComponent](cmd, parent.Entity)
			if !ok {
				return true
			}
			newPos, newRot, newScale := composeTransform(*parentWorld, *local)
			if newPos != world.Position || newRot != world.Rotation || newScale != world.Scale {
				world.Position = newPos
				world.Rotation = newRot
				world.Scale = newScale
				changed = true
			}
			return true
		})
		if !changed {
			break
		}
	}
}

// composeTransform keeps per-axis scale signs instead of decomposing a matrix.
func composeTransform(parent TransformComponent, local LocalTransformComponent) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	scaledLocalPos := mgl32.Vec3{
		local.Position.X() * parent.Scale.X(),
		local.Position.Y() * parent.Scale.Y(),
		local.Position.Z() * parent.Scale.Z(),
	}
	pos := parent.Position.Add(parent.Rotation.Rotate(scaledLocalPos))
	rot := parent.Rotation.Mul(local.Rotation).Normalize()
	scale := mgl32.Vec3{
		parent.Scale.X() * local.Scale.X(),
		parent.Scale.Y() * local.Scale.Y(),
		parent.Scale.Z() * local.Scale.Z(),
	}
	return pos, rot, scale
}
