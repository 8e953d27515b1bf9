package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Projection describes a perspective lens.
type Projection struct {
	FovY   float32 // degrees
	Aspect float32
	Near   float32
	Far    float32
}

func (p Projection) Matrix() mgl32.Mat4 {
	aspect := p.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(p.FovY), aspect, p.Near, p.Far)
}

// ViewMatrix looks along the pose's forward axis with the pose's up axis.
func ViewMatrix(p Pose) mgl32.Mat4 {
	eye := p.Position
	return mgl32.LookAtV(eye, eye.Add(p.Forward()), p.Up())
}

// Frustum holds the 6 clip planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0 with the normal pointing inwards.
type Frustum [6]mgl32.Vec4

func NewFrustum(vp mgl32.Mat4) Frustum {
	var planes Frustum

	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[0] = r3.Add(r0)
	planes[1] = r3.Sub(r0)
	planes[2] = r3.Add(r1)
	planes[3] = r3.Sub(r1)
	planes[4] = r3.Add(r2) // OpenGL-style -1..1 depth
	planes[5] = r3.Sub(r2)

	for i := range planes {
		length := float32(math.Sqrt(float64(planes[i][0]*planes[i][0] + planes[i][1]*planes[i][1] + planes[i][2]*planes[i][2])))
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// FrustumFor builds the frustum of a camera at pose with the given lens.
func FrustumFor(p Pose, proj Projection) Frustum {
	return NewFrustum(proj.Matrix().Mul4(ViewMatrix(p)))
}

func (f Frustum) SphereVisible(center mgl32.Vec3, radius float32) bool {
	for _, pl := range f {
		if pl.Vec3().Dot(center)+pl[3] < -radius {
			return false
		}
	}
	return true
}
