package portals

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

type AABBComponent struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (a AABBComponent) Overlaps(b AABBComponent) bool {
	return a.Min.X() <= b.Max.X() && a.Max.X() >= b.Min.X() &&
		a.Min.Y() <= b.Max.Y() && a.Max.Y() >= b.Min.Y() &&
		a.Min.Z() <= b.Max.Z() && a.Max.Z() >= b.Min.Z()
}

// ColliderComponent is a box in the entity's local frame, scaled by its transform.
type ColliderComponent struct {
	HalfExtents mgl32.Vec3
	Offset      mgl32.Vec3
}

type SpatialHashGrid struct {
	cellSize float32
	cells    map[uint64][]EntityId
}

func NewSpatialHashGrid(cellSize float32) *SpatialHashGrid {
	return &SpatialHashGrid{
		cellSize: cellSize,
		cells:    make(map[uint64][]EntityId),
	}
}

func (grid *SpatialHashGrid) Clear() {
	clear(grid.cells)
}

func (grid *SpatialHashGrid) Insert(id EntityId, aabb AABBComponent) {
	minX, maxX := grid.getCellIndex(aabb.Min.X()), grid.getCellIndex(aabb.Max.X())
	minY, maxY := grid.getCellIndex(aabb.Min.Y()), grid.getCellIndex(aabb.Max.Y())
	minZ, maxZ := grid.getCellIndex(aabb.Min.Z()), grid.getCellIndex(aabb.Max.Z())

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				key := grid.hashKey(x, y, z)
				grid.cells[key] = append(grid.cells[key], id)
			}
		}
	}
}

// QueryAABB returns broadphase candidates in ascending id order.
func (grid *SpatialHashGrid) QueryAABB(aabb AABBComponent) []EntityId {
	minX, maxX := grid.getCellIndex(aabb.Min.X()), grid.getCellIndex(aabb.Max.X())
	minY, maxY := grid.getCellIndex(aabb.Min.Y()), grid.getCellIndex(aabb.Max.Y())
	minZ, maxZ := grid.getCellIndex(aabb.Min.Z()), grid.getCellIndex(aabb.Max.Z())

	unique := make(set[EntityId])
	var results []EntityId

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				key := grid.hashKey(x, y, z)
				for _, id := range grid.cells[key] {
					if _, ok := unique[id]; !ok {
						unique[id] = struct{}{}
						results = append(results, id)
					}
				}
			}
		}
	}
	slices.Sort(results)
	return results
}

// QueryRadius returns candidates of the sphere's bounding box; callers
// narrow them down.
func (grid *SpatialHashGrid) QueryRadius(center mgl32.Vec3, radius float32) []EntityId {
	return grid.QueryAABB(AABBComponent{
		Min: center.Sub(mgl32.Vec3{radius, radius, radius}),
		Max: center.Add(mgl32.Vec3{radius, radius, radius}),
	})
}

func (grid *SpatialHashGrid) getCellIndex(pos float32) int {
	return int(math.Floor(float64(pos / grid.cellSize)))
}

func (grid *SpatialHashGrid) hashKey(x, y, z int) uint64 {
	// large primes for mixing
	const p1 = 73856093
	const p2 = 19349663
	const p3 = 83492791
	return uint64(x*p1 ^ y*p2 ^ z*p3)
}

type SpatialGridModule struct {
	CellSize float32
}

func (m SpatialGridModule) Install(app *App, cmd *Commands) {
	cellSize := m.CellSize
	if cellSize <= 0 {
		cellSize = 2.0
	}
	cmd.AddResources(NewSpatialHashGrid(cellSize))

	app.UseSystem(
		System(UpdateAABBsSystem).InStage(FixedPreUpdate),
	).UseSystem(
		System(UpdateSpatialGridSystem).InStage(FixedPreUpdate),
	)
}

// UpdateAABBsSystem refits world AABBs of colliders. Entities without an
// AABBComponent get one at the next flush.
func UpdateAABBsSystem(cmd *Commands) {
	MakeQuery3[TransformComponent, ColliderComponent, AABBComponent](cmd).Map(func(id EntityId, tr *TransformComponent, col *ColliderComponent, aabb *AABBComponent) bool {
		fitted := colliderAABB(*tr, *col)
		if aabb == nil {
			cmd.AddComponents(id, fitted)
			return true
		}
		*aabb = fitted
		return true
	}, AABBComponent{})
}

func colliderAABB(tr TransformComponent, col ColliderComponent) AABBComponent {
	half := mgl32.Vec3{
		col.HalfExtents.X() * abs32(tr.Scale.X()),
		col.HalfExtents.Y() * abs32(tr.Scale.Y()),
		col.HalfExtents.Z() * abs32(tr.Scale.Z()),
	}
	rot := tr.Rotation.Normalize().Mat4().Mat3()
	var extent mgl32.Vec3
	for row := 0; row < 3; row++ {
		extent[row] = abs32(rot.At(row, 0))*half.X() + abs32(rot.At(row, 1))*half.Y() + abs32(rot.At(row, 2))*half.Z()
	}
	center := tr.Position.Add(tr.Rotation.Rotate(col.Offset))
	return AABBComponent{
		Min: center.Sub(extent),
		Max: center.Add(extent),
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func UpdateSpatialGridSystem(cmd *Commands, grid *SpatialHashGrid) {
	grid.Clear()

	MakeQuery1[AABBComponent](cmd).Map(func(id EntityId, aabb *AABBComponent) bool {
		grid.Insert(id, *aabb)
		return true
	})
}
