package portals

import (
	"slices"

	"github.com/gekko3d/portals/portalrt/core"
)

// VisualCloneComponent marks clone nodes and points back at the node they copy.
type VisualCloneComponent struct {
	Source EntityId
}

// VisualClone is a render-only copy of a traveller's subtree.
type VisualClone struct {
	Root   EntityId
	Source EntityId
	// Nodes holds every clone entity, root first, depth-first.
	Nodes []EntityId
}

type VisualCloneManager struct {
	live int
}

func NewVisualCloneManager() *VisualCloneManager {
	return &VisualCloneManager{}
}

// Live counts clones created and not yet released.
func (m *VisualCloneManager) Live() int {
	return m.live
}

// Create copies the source and its descendants, keeping only transforms,
// parent links and mesh rendering. The root is placed at pose.
func (m *VisualCloneManager) Create(cmd *Commands, source EntityId, pose core.Pose) *VisualClone {
	children := childrenIndex(cmd)
	clone := &VisualClone{Source: source}
	ids := make(map[EntityId]EntityId)

	stack := []EntityId{source}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		comps := retainedComponents(cmd.GetAllComponents(node), ids, node == source)
		if node == source {
			comps = append(comps, rootTransform(cmd, source, pose))
		}
		comps = append(comps, VisualCloneComponent{Source: node})

		id := cmd.AddEntity(comps...)
		ids[node] = id
		clone.Nodes = append(clone.Nodes, id)

		kids := children[node]
		for j := len(kids) - 1; j >= 0; j-- {
			stack = append(stack, kids[j])
		}
	}
	clone.Root = clone.Nodes[0]
	m.live++
	return clone
}

// Reposition moves the clone root; descendants follow through the hierarchy.
func (m *VisualCloneManager) Reposition(cmd *Commands, clone *VisualClone, pose core.Pose) {
	if tr, ok := GetComponent[TransformComponent](cmd, clone.Root); ok {
		tr.SetPose(pose)
		return
	}
	// Not flushed yet: overwrite the pending transform.
	cmd.AddComponents(clone.Root, rootTransform(cmd, clone.Source, pose))
}

func (m *VisualCloneManager) Release(cmd *Commands, clone *VisualClone) {
	if clone == nil || clone.Nodes == nil {
		return
	}
	for _, id := range clone.Nodes {
		cmd.RemoveEntity(id)
	}
	clone.Nodes = nil
	m.live--
}

func rootTransform(cmd *Commands, source EntityId, pose core.Pose) TransformComponent {
	tr := NewTransform(pose.Position, pose.Rotation)
	if src, ok := GetComponent[TransformComponent](cmd, source); ok {
		tr.Scale = src.Scale
	}
	return tr
}

// retainedComponents filters a node down to what a clone may keep. The root
// loses its transform (set separately) and its parent link.
func retainedComponents(comps []any, ids map[EntityId]EntityId, root bool) []any {
	var kept []any
	for _, c := range comps {
		switch v := c.(type) {
		case TransformComponent:
			if !root {
				kept = append(kept, v)
			}
		case LocalTransformComponent:
			kept = append(kept, v)
		case Parent:
			if !root {
				kept = append(kept, Parent{Entity: ids[v.Entity]})
			}
		case MeshComponent:
			kept = append(kept, v)
		case MeshRendererComponent:
			kept = append(kept, v)
		}
	}
	return kept
}

// childrenIndex maps each entity to its children in ascending id order.
func childrenIndex(cmd *Commands) map[EntityId][]EntityId {
	res := make(map[EntityId][]EntityId)
	MakeQuery1[Parent](cmd).Map(func(eid EntityId, parent *Parent) bool {
		res[parent.Entity] = append(res[parent.Entity], eid)
		return true
	})
	for _, kids := range res {
		slices.Sort(kids)
	}
	return res
}
