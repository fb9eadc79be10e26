package recast

// 2D exact predicates on the xz-plane for stride-4 integer vertices
// (x, y, z, flags). The y component is ignored.

func next(i, n int) int {
	if i+1 < n {
		return i + 1
	}
	return 0
}

func prev(i, n int) int {
	if i-1 >= 0 {
		return i - 1
	}
	return n - 1
}

func vert4(verts []int, i int) []int {
	return verts[i*4 : i*4+4]
}

// area2 is twice the signed area of the triangle (a, b, c). Positive when
// the triangle is counterclockwise on the xz-plane.
func area2(a, b, c []int) int {
	return (b[0]-a[0])*(c[2]-a[2]) - (c[0]-a[0])*(b[2]-a[2])
}

func left(a, b, c []int) bool      { return area2(a, b, c) < 0 }
func leftOn(a, b, c []int) bool    { return area2(a, b, c) <= 0 }
func collinear(a, b, c []int) bool { return area2(a, b, c) == 0 }

// intersectProp reports proper intersection of segments ab and cd: they
// cross at a point interior to both. Any shared endpoint or collinearity
// makes the intersection improper.
func intersectProp(a, b, c, d []int) bool {
	if collinear(a, b, c) || collinear(a, b, d) ||
		collinear(c, d, a) || collinear(c, d, b) {
		return false
	}
	return (left(a, b, c) != left(a, b, d)) && (left(c, d, a) != left(c, d, b))
}

// between reports whether c lies on the closed segment ab. It requires the
// points to be collinear.
func between(a, b, c []int) bool {
	if !collinear(a, b, c) {
		return false
	}
	if a[0] != b[0] {
		return (a[0] <= c[0] && c[0] <= b[0]) || (a[0] >= c[0] && c[0] >= b[0])
	}
	return (a[2] <= c[2] && c[2] <= b[2]) || (a[2] >= c[2] && c[2] >= b[2])
}

// intersect reports whether segments ab and cd intersect, properly or not.
func intersect(a, b, c, d []int) bool {
	if intersectProp(a, b, c, d) {
		return true
	}
	return between(a, b, c) || between(a, b, d) ||
		between(c, d, a) || between(c, d, b)
}

func vequal2D(a, b []int) bool {
	return a[0] == b[0] && a[2] == b[2]
}
