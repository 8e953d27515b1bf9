package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Box is an oriented box: a trigger volume hung off a pose.
type Box struct {
	Center      mgl32.Vec3
	Rotation    mgl32.Quat
	HalfExtents mgl32.Vec3
}

// BoxAt places a box with the given local offset and half extents on pose.
func BoxAt(p Pose, offset, halfExtents mgl32.Vec3) Box {
	rot := p.Rotation.Normalize()
	return Box{
		Center:      p.Position.Add(rot.Rotate(offset)),
		Rotation:    rot,
		HalfExtents: halfExtents,
	}
}

func (b Box) axes() [3]mgl32.Vec3 {
	m := b.Rotation.Normalize().Mat4()
	return [3]mgl32.Vec3{m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()}
}

// AABB returns the world-space bounds enclosing the box.
func (b Box) AABB() (min, max mgl32.Vec3) {
	axes := b.axes()
	var ext mgl32.Vec3
	for k := 0; k < 3; k++ {
		for i := 0; i < 3; i++ {
			ext[k] += abs32(axes[i][k]) * b.HalfExtents[i]
		}
	}
	return b.Center.Sub(ext), b.Center.Add(ext)
}

// OverlapsAABB runs the separating-axis test on the face normals of both
// boxes. Edge-edge axes are skipped, so near a corner the answer errs on the
// side of overlap.
func (b Box) OverlapsAABB(min, max mgl32.Vec3) bool {
	c := min.Add(max).Mul(0.5)
	e := max.Sub(min).Mul(0.5)
	d := c.Sub(b.Center)
	axes := b.axes()

	for i := 0; i < 3; i++ {
		a := axes[i]
		r := abs32(a[0])*e[0] + abs32(a[1])*e[1] + abs32(a[2])*e[2]
		if abs32(a.Dot(d)) > b.HalfExtents[i]+r {
			return false
		}
	}
	for k := 0; k < 3; k++ {
		r := abs32(axes[0][k])*b.HalfExtents[0] + abs32(axes[1][k])*b.HalfExtents[1] + abs32(axes[2][k])*b.HalfExtents[2]
		if abs32(d[k]) > e[k]+r {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether point lies inside the box (inclusive).
func (b Box) ContainsPoint(point mgl32.Vec3) bool {
	return b.OverlapsAABB(point, point)
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
