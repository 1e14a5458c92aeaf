// Package xform is the 3MF transform codec (spec.md §4.3): a 12-element
// text encoding of the upper 3×4 of an affine matrix, written column by
// column, decoded
// into/encoded from a full 4×4 using the flywave/go3d linear-algebra
// types (grounded on flywave-go-mst's use of mat4.T/vec3.T/vec4.T for the
// same kind of mesh-transform composition, see 3jsbin_to_mst.go and
// gltf_to_mst.go).
package xform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
)

// Mat4 is a 4x4 affine transform, rows major (mat4.T is [4]vec4.T, so
// m[row][col] addresses a single component).
type Mat4 = mat4.T

// Identity returns the identity transform.
func Identity() Mat4 {
	return mat4.Ident
}

// Decode parses the whitespace-separated token form of a 3MF `transform`
// attribute. It requires exactly 12 tokens laid out as four columns of a
// 3x4 matrix; anything else (missing attribute, wrong token count,
// unparsable token) yields the identity transform, per spec.md §4.3.
func Decode(text string) Mat4 {
	m := mat4.Ident
	if text == "" {
		return m
	}
	fields := strings.Fields(text)
	if len(fields) != 12 {
		return mat4.Ident
	}
	var v [12]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return mat4.Ident
		}
		v[i] = n
	}
	// Tokens are 4 columns of a 3-row matrix, column-major within each
	// column: v[0..2] is column 0 (rows 0-2), v[3..5] column 1, v[6..8]
	// column 2, v[9..11] column 3 (the translation).
	m[0] = vec4.T{float32(v[0]), float32(v[3]), float32(v[6]), float32(v[9])}
	m[1] = vec4.T{float32(v[1]), float32(v[4]), float32(v[7]), float32(v[10])}
	m[2] = vec4.T{float32(v[2]), float32(v[5]), float32(v[8]), float32(v[11])}
	m[3] = vec4.T{0, 0, 0, 1}
	return m
}

// Encode emits the 12 entries of m's upper 3x4 in the same column-major
// token order Decode reads, separated by single spaces.
func Encode(m Mat4) string {
	v := [12]float32{
		m[0][0], m[1][0], m[2][0],
		m[0][1], m[1][1], m[2][1],
		m[0][2], m[1][2], m[2][2],
		m[0][3], m[1][3], m[2][3],
	}
	parts := make([]string, 12)
	for i, f := range v {
		parts[i] = formatFloat(f)
	}
	return strings.Join(parts, " ")
}

// formatFloat renders a float32 with the shortest round-trippable
// representation, the Go equivalent of max_digits10 formatting
// (spec.md §4.9).
func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

// Compose returns parent * child, i.e. child's local transform applied
// first and parent's applied outermost (spec.md §4.5: "the item
// transform is applied outermost").
func Compose(parent, child Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += parent[r][k] * child[k][c]
			}
			out[r][c] = sum
		}
	}
	return out
}

// ApplyPoint transforms a point (not a direction) by m.
func ApplyPoint(m Mat4, p vec3.T) vec3.T {
	out := vec3.T{}
	for r := 0; r < 3; r++ {
		out[r] = m[r][0]*p[0] + m[r][1]*p[1] + m[r][2]*p[2] + m[r][3]
	}
	return out
}

// ScaleComponents returns the lengths of the 3 column vectors of the
// upper-left 3x3 — the scale factors baked into m, used to detect the
// zero-scale case spec.md §4.5/§9 calls out as defensive and
// unspecified.
func ScaleComponents(m Mat4) (sx, sy, sz float32) {
	col := func(c int) vec3.T {
		return vec3.T{m[0][c], m[1][c], m[2][c]}
	}
	c0, c1, c2 := col(0), col(1), col(2)
	sx = c0.Length()
	sy = c1.Length()
	sz = c2.Length()
	return
}

// HasZeroScale reports whether any axis of m has been scaled to zero,
// meaning m is not invertible and should not be applied to an instance
// (spec.md §4.5).
func HasZeroScale(m Mat4) bool {
	sx, sy, sz := ScaleComponents(m)
	const eps = 1e-9
	return sx < eps || sy < eps || sz < eps
}

// Invert returns the inverse of m and true, or the identity and false if
// m is not invertible (zero scale on some axis — spec.md §4.8 uses this
// to back-transform world-frame vertices into a volume's local frame).
func Invert(m Mat4) (Mat4, bool) {
	if HasZeroScale(m) {
		return mat4.Ident, false
	}
	det := determinant3x3(m)
	const eps = 1e-12
	if det > -eps && det < eps {
		return mat4.Ident, false
	}
	inv3, ok := invert3x3(m, det)
	if !ok {
		return mat4.Ident, false
	}
	// Translation of the inverse: -inv3 * t
	t := vec3.T{m[0][3], m[1][3], m[2][3]}
	it := vec3.T{}
	for r := 0; r < 3; r++ {
		it[r] = -(inv3[r][0]*t[0] + inv3[r][1]*t[1] + inv3[r][2]*t[2])
	}
	var out Mat4
	for r := 0; r < 3; r++ {
		out[r] = vec4.T{inv3[r][0], inv3[r][1], inv3[r][2], it[r]}
	}
	out[3] = vec4.T{0, 0, 0, 1}
	return out, true
}

func determinant3x3(m Mat4) float32 {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]
	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

// invert3x3 returns the 3x3 inverse as a [3]vec3.T (rows), given a
// precomputed nonzero determinant.
func invert3x3(m Mat4, det float32) ([3]vec3.T, bool) {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]

	invDet := 1 / det
	var out [3]vec3.T
	out[0] = vec3.T{(e*i - f*h) * invDet, (c*h - b*i) * invDet, (b*f - c*e) * invDet}
	out[1] = vec3.T{(f*g - d*i) * invDet, (a*i - c*g) * invDet, (c*d - a*f) * invDet}
	out[2] = vec3.T{(d*h - e*g) * invDet, (b*g - a*h) * invDet, (a*e - b*d) * invDet}
	return out, true
}

// String renders m for debugging/diagnostics context strings.
func String(m Mat4) string {
	return fmt.Sprintf("[%s]", Encode(m))
}
