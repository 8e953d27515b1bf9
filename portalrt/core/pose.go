package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a rigid transform: position and orientation, no scale.
type Pose struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

func NewPose(position mgl32.Vec3, rotation mgl32.Quat) Pose {
	return Pose{Position: position, Rotation: rotation}
}

func IdentityPose() Pose {
	return Pose{Rotation: mgl32.QuatIdent()}
}

// Forward is the local +Z axis in world space. Portal surfaces face along it.
func (p Pose) Forward() mgl32.Vec3 {
	return p.Rotation.Normalize().Rotate(mgl32.Vec3{0, 0, 1})
}

func (p Pose) Up() mgl32.Vec3 {
	return p.Rotation.Normalize().Rotate(mgl32.Vec3{0, 1, 0})
}

func (p Pose) Right() mgl32.Vec3 {
	return p.Rotation.Normalize().Rotate(mgl32.Vec3{1, 0, 0})
}

func (p Pose) LocalToWorld() mgl32.Mat4 {
	// M = T * R
	translate := mgl32.Translate3D(p.Position.X(), p.Position.Y(), p.Position.Z())
	return translate.Mul4(p.Rotation.Normalize().Mat4())
}

func (p Pose) WorldToLocal() mgl32.Mat4 {
	// inv(M) = inv(R) * inv(T); the inverse of a unit quaternion is its conjugate
	invRotate := p.Rotation.Normalize().Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-p.Position.X(), -p.Position.Y(), -p.Position.Z())
	return invRotate.Mul4(invTranslate)
}

// ApproxEqual reports whether the positions are within posEps of each other
// (absolute distance) and the orientations agree up to the quaternion double
// cover (q and -q are the same rotation).
func (p Pose) ApproxEqual(other Pose, posEps, rotEps float32) bool {
	if p.Position.Sub(other.Position).Len() > posEps {
		return false
	}
	d := p.Rotation.Normalize().Dot(other.Rotation.Normalize())
	return 1-float32(math.Abs(float64(d))) <= rotEps
}

// Remap maps input, expressed in world space around the source portal, to the
// equivalent world pose around the linked portal:
//
//	M = linked.localToWorld * source.worldToLocal * input.localToWorld
//
// Translation is the fourth column of M and rotation is its re-orthonormalised
// 3x3 block. The composition runs in float64 so that repeated round trips
// through arbitrarily rotated portal pairs do not drift.
func Remap(source, linked, input Pose) Pose {
	m := linked.localToWorld64().Mul4(source.worldToLocal64()).Mul4(input.localToWorld64())

	t := m.Col(3)
	rot := rotationFromMat4(m)

	return Pose{
		Position: mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
		Rotation: mgl32.Quat{
			W: float32(rot.W),
			V: mgl32.Vec3{float32(rot.V[0]), float32(rot.V[1]), float32(rot.V[2])},
		},
	}
}

// SignedSide reports which side of the plane through pose (normal = pose
// forward) point lies on: +1 in front, -1 behind, 0 exactly on the plane.
func SignedSide(point mgl32.Vec3, plane Pose) int {
	rel := vec64(point.Sub(plane.Position))
	fwd := vec64(plane.Forward())
	d := rel.Dot(fwd)
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

func (p Pose) localToWorld64() mgl64.Mat4 {
	q := quat64(p.Rotation).Normalize()
	return mgl64.Translate3D(float64(p.Position[0]), float64(p.Position[1]), float64(p.Position[2])).Mul4(q.Mat4())
}

func (p Pose) worldToLocal64() mgl64.Mat4 {
	q := quat64(p.Rotation).Normalize().Conjugate()
	return q.Mat4().Mul4(mgl64.Translate3D(-float64(p.Position[0]), -float64(p.Position[1]), -float64(p.Position[2])))
}

// rotationFromMat4 strips accumulated scale/skew from the upper 3x3 block with
// Gram-Schmidt before converting to a quaternion.
func rotationFromMat4(m mgl64.Mat4) mgl64.Quat {
	x := m.Col(0).Vec3()
	y := m.Col(1).Vec3()

	if x.Len() < 1e-12 || y.Len() < 1e-12 {
		return mgl64.QuatIdent()
	}
	x = x.Normalize()
	y = y.Sub(x.Mul(x.Dot(y)))
	if y.Len() < 1e-12 {
		return mgl64.QuatIdent()
	}
	y = y.Normalize()
	z := x.Cross(y)

	ortho := mgl64.Mat4FromCols(x.Vec4(0), y.Vec4(0), z.Vec4(0), mgl64.Vec4{0, 0, 0, 1})
	return mgl64.Mat4ToQuat(ortho).Normalize()
}

func vec64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func quat64(q mgl32.Quat) mgl64.Quat {
	return mgl64.Quat{W: float64(q.W), V: vec64(q.V)}
}
