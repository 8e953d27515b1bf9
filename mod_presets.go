package portals

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// SnapshotScene captures the live scene as a SceneDef: the main camera, every
// portal with its link and every traveller with its mesh subtree. Clones and
// portal cameras are skipped. Rotations are written as quaternions.
func SnapshotScene(cmd *Commands, world *PortalWorld, server *AssetServer) SceneDef {
	var def SceneDef

	if _, tr, cam, ok := MainCamera(cmd); ok {
		def.Camera = CameraDef{
			Position: vecSlice(tr.Position),
			Rotation: quatSlice(tr.Rotation),
			Fov:      cam.Fov,
			Near:     cam.Near,
			Far:      cam.Far,
		}
	}

	for _, p := range world.order {
		pose, ok := p.pose(cmd)
		if !ok {
			continue
		}
		pd := ScenePortalDef{
			Name:               p.name,
			Position:           vecSlice(pose.Position),
			Rotation:           quatSlice(pose.Rotation),
			TriggerHalfExtents: vecSlice(p.triggerHalfExtents),
			ScreenHalfSize:     []float32{p.screenHalfSize.X(), p.screenHalfSize.Y()},
			RenderSelf:         p.renderSelf,
		}
		if p.triggerOffset != (mgl32.Vec3{}) {
			pd.TriggerOffset = vecSlice(p.triggerOffset)
		}
		// One side of each pair carries the link.
		if p.linked != nil && p.Entity < p.linked.Entity {
			pd.Link = p.linked.name
		}
		def.Portals = append(def.Portals, pd)
	}

	children := childrenIndex(cmd)
	MakeQuery3[TravellerComponent, TransformComponent, ColliderComponent](cmd).Map(func(eid EntityId, _ *TravellerComponent, tr *TransformComponent, col *ColliderComponent) bool {
		td := TravellerDef{
			Name:        nameOf(cmd, eid, "traveller"),
			Position:    vecSlice(tr.Position),
			Rotation:    quatSlice(tr.Rotation),
			HalfExtents: vecSlice(col.HalfExtents),
			RigidBody:   HasComponent[RigidBodyComponent](cmd, eid),
		}
		if tr.Scale != (mgl32.Vec3{1, 1, 1}) {
			td.Scale = vecSlice(tr.Scale)
		}
		if script, ok := GetComponent[ScriptComponent](cmd, eid); ok {
			td.Script = script.Name
		}
		if lt, ok := GetComponent[LifetimeComponent](cmd, eid); ok {
			td.Lifetime = lt.TimeLeft
		}
		td.Mesh, td.Bounds = meshOf(cmd, server, eid)
		for _, child := range children[eid] {
			td.Children = append(td.Children, snapshotNode(cmd, server, children, child))
		}
		def.Travellers = append(def.Travellers, td)
		return true
	})

	return def
}

func snapshotNode(cmd *Commands, server *AssetServer, children map[EntityId][]EntityId, eid EntityId) MeshNodeDef {
	node := MeshNodeDef{Name: nameOf(cmd, eid, "node")}
	if local, ok := GetComponent[LocalTransformComponent](cmd, eid); ok {
		node.Position = vecSlice(local.Position)
		node.Rotation = quatSlice(local.Rotation)
	}
	node.Mesh, node.Bounds = meshOf(cmd, server, eid)
	for _, child := range children[eid] {
		node.Children = append(node.Children, snapshotNode(cmd, server, children, child))
	}
	return node
}

// SaveSceneFile writes def as YAML, creating the parent directory.
func SaveSceneFile(def SceneDef, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding scene: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

func nameOf(cmd *Commands, eid EntityId, fallback string) string {
	if name, ok := GetComponent[NameComponent](cmd, eid); ok && name.Name != "" {
		return name.Name
	}
	return fmt.Sprintf("%s-%d", fallback, eid)
}

func meshOf(cmd *Commands, server *AssetServer, eid EntityId) (string, float32) {
	mesh, ok := GetComponent[MeshComponent](cmd, eid)
	if !ok {
		return "", 0
	}
	asset, ok := server.Mesh(mesh.Mesh)
	if !ok {
		return "", 0
	}
	return asset.Name, asset.BoundsRadius
}

func vecSlice(v mgl32.Vec3) []float32 {
	return []float32{v.X(), v.Y(), v.Z()}
}

func quatSlice(q mgl32.Quat) []float32 {
	return []float32{q.W, q.V.X(), q.V.Y(), q.V.Z()}
}
