package portals

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// SceneDef defines the initial state of a portal scene.
type SceneDef struct {
	Camera     CameraDef        `yaml:"camera"`
	Portals    []ScenePortalDef `yaml:"portals"`
	Travellers []TravellerDef   `yaml:"travellers"`
}

// CameraDef places the main camera. Rotations in scene files are either
// Euler degrees (pitch, yaw, roll) or a quaternion (w, x, y, z).
type CameraDef struct {
	Position []float32 `yaml:"position"`
	Rotation []float32 `yaml:"rotation"`
	Fov      float32   `yaml:"fov"`
	Near     float32   `yaml:"near"`
	Far      float32   `yaml:"far"`
}

type ScenePortalDef struct {
	Name               string    `yaml:"name"`
	Position           []float32 `yaml:"position"`
	Rotation           []float32 `yaml:"rotation"`
	Link               string    `yaml:"link,omitempty"`
	TriggerHalfExtents []float32 `yaml:"trigger_half_extents,omitempty"`
	TriggerOffset      []float32 `yaml:"trigger_offset,omitempty"`
	ScreenHalfSize     []float32 `yaml:"screen_half_size,omitempty"`
	RenderSelf         bool      `yaml:"render_self,omitempty"`
}

// TravellerDef describes a traveller and its visual subtree. Speed is only
// read by drivers that move travellers; the scene loader ignores it.
type TravellerDef struct {
	Name        string        `yaml:"name"`
	Position    []float32     `yaml:"position"`
	Rotation    []float32     `yaml:"rotation"`
	Scale       []float32     `yaml:"scale,omitempty"`
	HalfExtents []float32     `yaml:"half_extents"`
	Mesh        string        `yaml:"mesh,omitempty"`
	Bounds      float32       `yaml:"bounds,omitempty"`
	Speed       float32       `yaml:"speed,omitempty"`
	RigidBody   bool          `yaml:"rigid_body,omitempty"`
	Script      string        `yaml:"script,omitempty"`
	Lifetime    float32       `yaml:"lifetime,omitempty"`
	Children    []MeshNodeDef `yaml:"children,omitempty"`
}

// MeshNodeDef is a child mesh placed relative to its parent.
type MeshNodeDef struct {
	Name     string        `yaml:"name"`
	Position []float32     `yaml:"position"`
	Rotation []float32     `yaml:"rotation,omitempty"`
	Mesh     string        `yaml:"mesh"`
	Bounds   float32       `yaml:"bounds,omitempty"`
	Children []MeshNodeDef `yaml:"children,omitempty"`
}

// SceneHandles maps scene names to the spawned entities.
type SceneHandles struct {
	Camera     EntityId
	Portals    map[string]EntityId
	Travellers map[string]EntityId
}

func ParseScene(data []byte) (SceneDef, error) {
	var def SceneDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return SceneDef{}, fmt.Errorf("parsing scene: %w", err)
	}
	if err := def.Validate(); err != nil {
		return SceneDef{}, err
	}
	return def, nil
}

func LoadSceneFile(path string) (SceneDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SceneDef{}, err
	}
	def, err := ParseScene(data)
	if err != nil {
		return SceneDef{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Validate checks names and links. Links must be declared consistently on
// both sides or on one side only.
func (def SceneDef) Validate() error {
	links := make(map[string]string)
	for _, p := range def.Portals {
		if p.Name == "" {
			return fmt.Errorf("portal without a name: %w", ErrInvalidScene)
		}
		if _, dup := links[p.Name]; dup {
			return fmt.Errorf("duplicate portal %q: %w", p.Name, ErrInvalidScene)
		}
		links[p.Name] = p.Link
	}
	for name, target := range links {
		if target == "" {
			continue
		}
		if target == name {
			return fmt.Errorf("portal %q links to itself: %w", name, ErrInvalidScene)
		}
		back, ok := links[target]
		if !ok {
			return fmt.Errorf("portal %q links to unknown portal %q: %w", name, target, ErrInvalidScene)
		}
		if back != "" && back != name {
			return fmt.Errorf("portal %q links to %q which links to %q: %w", name, target, back, ErrInvalidScene)
		}
	}

	seen := make(set[string])
	for _, t := range def.Travellers {
		if t.Name == "" {
			return fmt.Errorf("traveller without a name: %w", ErrInvalidScene)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("duplicate traveller %q: %w", t.Name, ErrInvalidScene)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// LoadScene spawns the scene. Entities appear at the next flush.
func LoadScene(cmd *Commands, world *PortalWorld, assets *AssetServer, def SceneDef) (SceneHandles, error) {
	if err := def.Validate(); err != nil {
		return SceneHandles{}, err
	}
	handles := SceneHandles{
		Portals:    make(map[string]EntityId),
		Travellers: make(map[string]EntityId),
	}

	cam := CameraComponent{Main: true, Fov: def.Camera.Fov, Near: def.Camera.Near, Far: def.Camera.Far}
	if cam.Fov == 0 {
		cam.Fov = 60
	}
	if cam.Near == 0 {
		cam.Near = 0.05
	}
	if cam.Far == 0 {
		cam.Far = 1000
	}
	handles.Camera = cmd.AddEntity(
		cam,
		NewTransform(vec3Or(def.Camera.Position, mgl32.Vec3{}), rotationOf(def.Camera.Rotation)),
	)

	for _, p := range def.Portals {
		handles.Portals[p.Name] = world.SpawnPortal(cmd, PortalDef{
			Name:               p.Name,
			Position:           vec3Or(p.Position, mgl32.Vec3{}),
			Rotation:           rotationOf(p.Rotation),
			TriggerHalfExtents: vec3Or(p.TriggerHalfExtents, mgl32.Vec3{}),
			TriggerOffset:      vec3Or(p.TriggerOffset, mgl32.Vec3{}),
			ScreenHalfSize:     vec2Or(p.ScreenHalfSize, mgl32.Vec2{}),
			RenderSelf:         p.RenderSelf,
		})
	}
	for _, p := range def.Portals {
		if p.Link == "" {
			continue
		}
		if err := world.Link(cmd, handles.Portals[p.Name], handles.Portals[p.Link]); err != nil {
			return handles, err
		}
	}

	for _, t := range def.Travellers {
		handles.Travellers[t.Name] = spawnTraveller(cmd, assets, t)
	}
	return handles, nil
}

func spawnTraveller(cmd *Commands, assets *AssetServer, t TravellerDef) EntityId {
	tr := NewTransform(vec3Or(t.Position, mgl32.Vec3{}), rotationOf(t.Rotation))
	tr.Scale = vec3Or(t.Scale, mgl32.Vec3{1, 1, 1})

	comps := []any{
		TravellerComponent{},
		NameComponent{Name: t.Name},
		tr,
		ColliderComponent{HalfExtents: vec3Or(t.HalfExtents, mgl32.Vec3{0.25, 0.9, 0.25})},
	}
	if t.Mesh != "" {
		comps = append(comps, meshComponents(assets, t.Name, t.Mesh, t.Bounds)...)
	}
	if t.RigidBody {
		comps = append(comps, RigidBodyComponent{Mass: 1})
	}
	if t.Script != "" {
		comps = append(comps, ScriptComponent{Name: t.Script})
	}
	if t.Lifetime > 0 {
		comps = append(comps, LifetimeComponent{TimeLeft: t.Lifetime})
	}

	eid := cmd.AddEntity(comps...)
	for _, child := range t.Children {
		spawnMeshNode(cmd, assets, eid, child)
	}
	return eid
}

func spawnMeshNode(cmd *Commands, assets *AssetServer, parent EntityId, node MeshNodeDef) EntityId {
	comps := []any{
		NameComponent{Name: node.Name},
		Parent{Entity: parent},
		LocalTransformComponent{
			Position: vec3Or(node.Position, mgl32.Vec3{}),
			Rotation: rotationOf(node.Rotation),
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		TransformComponent{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
	}
	comps = append(comps, meshComponents(assets, node.Name, node.Mesh, node.Bounds)...)
	eid := cmd.AddEntity(comps...)
	for _, child := range node.Children {
		spawnMeshNode(cmd, assets, eid, child)
	}
	return eid
}

func meshComponents(assets *AssetServer, owner, mesh string, bounds float32) []any {
	if bounds <= 0 {
		bounds = 1
	}
	return []any{
		MeshComponent{Mesh: assets.CreateMesh(mesh, bounds)},
		MeshRendererComponent{Material: assets.CreateMaterial(owner + " material")},
	}
}

func vec3Or(v []float32, fallback mgl32.Vec3) mgl32.Vec3 {
	if len(v) != 3 {
		return fallback
	}
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func vec2Or(v []float32, fallback mgl32.Vec2) mgl32.Vec2 {
	if len(v) != 2 {
		return fallback
	}
	return mgl32.Vec2{v[0], v[1]}
}

// rotationOf reads 3 values as (pitch, yaw, roll) degrees applied as
// yaw * pitch * roll, and 4 values as a (w, x, y, z) quaternion.
func rotationOf(v []float32) mgl32.Quat {
	switch len(v) {
	case 3:
		pitch := mgl32.QuatRotate(mgl32.DegToRad(v[0]), mgl32.Vec3{1, 0, 0})
		yaw := mgl32.QuatRotate(mgl32.DegToRad(v[1]), mgl32.Vec3{0, 1, 0})
		roll := mgl32.QuatRotate(mgl32.DegToRad(v[2]), mgl32.Vec3{0, 0, 1})
		return yaw.Mul(pitch).Mul(roll).Normalize()
	case 4:
		q := mgl32.Quat{W: v[0], V: mgl32.Vec3{v[1], v[2], v[3]}}
		if q.Len() == 0 {
			return mgl32.QuatIdent()
		}
		return q.Normalize()
	}
	return mgl32.QuatIdent()
}
