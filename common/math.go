// Package common holds the small math helpers shared by the recast and
// detour packages. Vectors are flat []float32 slices in (x, y, z) order so
// that slices of a packed vertex array can be used directly.
package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Vec3 is re-exported so API surfaces can take mathgl vectors without every
// caller importing mgl32 directly.
type Vec3 = mgl32.Vec3

type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Vert returns the i-th 3-component vertex of a packed array.
func Vert[T Number](verts []T, i int) []T {
	return verts[i*3 : i*3+3]
}

// Vert4 returns the i-th 4-component entry of a packed array.
func Vert4[T Number](verts []T, i int) []T {
	return verts[i*4 : i*4+4]
}

func Sqr[T Number](a T) T { return a * a }

func Abs[T Number](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

func Clamp[T Number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Vcopy(dst, src []float32) {
	dst[0] = src[0]
	dst[1] = src[1]
	dst[2] = src[2]
}

func Vset(dst []float32, x, y, z float32) {
	dst[0] = x
	dst[1] = y
	dst[2] = z
}

func Vadd(dst, a, b []float32) {
	dst[0] = a[0] + b[0]
	dst[1] = a[1] + b[1]
	dst[2] = a[2] + b[2]
}

func Vsub(dst, a, b []float32) {
	dst[0] = a[0] - b[0]
	dst[1] = a[1] - b[1]
	dst[2] = a[2] - b[2]
}

// Vmad computes dst = a + b*s.
func Vmad(dst, a, b []float32, s float32) {
	dst[0] = a[0] + b[0]*s
	dst[1] = a[1] + b[1]*s
	dst[2] = a[2] + b[2]*s
}

func Vscale(dst, v []float32, s float32) {
	dst[0] = v[0] * s
	dst[1] = v[1] * s
	dst[2] = v[2] * s
}

// Vmin folds the component-wise minimum of v into mn.
func Vmin(mn, v []float32) {
	mn[0] = min(mn[0], v[0])
	mn[1] = min(mn[1], v[1])
	mn[2] = min(mn[2], v[2])
}

// Vmax folds the component-wise maximum of v into mx.
func Vmax(mx, v []float32) {
	mx[0] = max(mx[0], v[0])
	mx[1] = max(mx[1], v[1])
	mx[2] = max(mx[2], v[2])
}

func Vcross(dst, a, b []float32) {
	dst[0] = a[1]*b[2] - a[2]*b[1]
	dst[1] = a[2]*b[0] - a[0]*b[2]
	dst[2] = a[0]*b[1] - a[1]*b[0]
}

func Vdot(a, b []float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func Vlen(v []float32) float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

func VlenSqr(v []float32) float32 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func Vdist(a, b []float32) float32 {
	return float32(math.Sqrt(float64(VdistSqr(a, b))))
}

func VdistSqr(a, b []float32) float32 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	dz := b[2] - a[2]
	return dx*dx + dy*dy + dz*dz
}

func Vdist2D(a, b []float32) float32 {
	dx := b[0] - a[0]
	dz := b[2] - a[2]
	return float32(math.Sqrt(float64(dx*dx + dz*dz)))
}

func Vdist2DSqr(a, b []float32) float32 {
	dx := b[0] - a[0]
	dz := b[2] - a[2]
	return dx*dx + dz*dz
}

func Vnormalize(v []float32) {
	d := 1.0 / Vlen(v)
	v[0] *= d
	v[1] *= d
	v[2] *= d
}

func Vlerp(dst, a, b []float32, t float32) {
	dst[0] = a[0] + (b[0]-a[0])*t
	dst[1] = a[1] + (b[1]-a[1])*t
	dst[2] = a[2] + (b[2]-a[2])*t
}

// Vequal reports whether two points are close enough to be considered
// colocated.
func Vequal(a, b []float32) bool {
	const thr = (1.0 / 16384.0) * (1.0 / 16384.0)
	return VdistSqr(a, b) < thr
}

// Vdot2D computes the dot product of u and v projected onto the xz-plane.
func Vdot2D(u, v []float32) float32 {
	return u[0]*v[0] + u[2]*v[2]
}

// Vperp2D computes the xz-plane perp product (uz*vx - ux*vz).
func Vperp2D(u, v []float32) float32 {
	return u[2]*v[0] - u[0]*v[2]
}

// TriArea2D returns the signed xz-plane area of the triangle abc. The sign
// tells which side of the line ab the point c lies on.
func TriArea2D(a, b, c []float32) float32 {
	abx := b[0] - a[0]
	abz := b[2] - a[2]
	acx := c[0] - a[0]
	acz := c[2] - a[2]
	return acx*abz - abx*acz
}

func IsFinite(v float32) bool {
	f := float64(v)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func Visfinite(v []float32) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

func Visfinite2D(v []float32) bool {
	return IsFinite(v[0]) && IsFinite(v[2])
}

// Grid neighbours are visited in the fixed order -x, +z, +x, -z.

func DirOffsetX(dir int) int {
	offset := [4]int{-1, 0, 1, 0}
	return offset[dir&0x03]
}

func DirOffsetZ(dir int) int {
	offset := [4]int{0, 1, 0, -1}
	return offset[dir&0x03]
}

// DirForOffset is the inverse of DirOffsetX/DirOffsetZ; exactly one of x and
// z must be non-zero.
func DirForOffset(x, z int) int {
	dirs := [5]int{3, 0, -1, 2, 1}
	return dirs[((z+1)<<1)+x]
}

func NextPow2(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}

func Ilog2(v uint32) uint32 {
	b2u := func(b bool) uint32 {
		if b {
			return 1
		}
		return 0
	}
	r := b2u(v > 0xffff) << 4
	v >>= r
	shift := b2u(v > 0xff) << 3
	v >>= shift
	r |= shift
	shift = b2u(v > 0xf) << 2
	v >>= shift
	r |= shift
	shift = b2u(v > 0x3) << 1
	v >>= shift
	r |= shift
	r |= v >> 1
	return r
}
