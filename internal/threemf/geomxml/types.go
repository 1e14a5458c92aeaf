// Package geomxml implements the 3MF geometry document's streaming
// reader (spec.md §4.4) and writer (spec.md §4.9): the XML document at
// 3D/3dmodel.model that carries the actual mesh data, object graph, and
// build list.
package geomxml

import "github.com/kjplatz/threemf/internal/threemf/xform"

// RawGeometry is the parser-local indexed-triangle-set described by
// spec.md §3: an ordered float list of vertex components and an ordered
// uint32 list of triangle indices, both flat.
type RawGeometry struct {
	Vertices []float32 // len divisible by 3
	Indices  []uint32  // len divisible by 3, every index < len(Vertices)/3
}

// TriangleCount returns the number of triangles described by Indices.
func (g RawGeometry) TriangleCount() int {
	return len(g.Indices) / 3
}

// VertexCount returns the number of vertices described by Vertices.
func (g RawGeometry) VertexCount() int {
	return len(g.Vertices) / 3
}

// Component is a reference from one 3MF object to another plus the
// transform to apply (spec.md §3).
type Component struct {
	ObjectID  int
	Transform xform.Mat4
}

// BuildItemRequest is one <build><item> as read off the wire, before
// alias/component resolution (spec.md §4.5 consumes these).
type BuildItemRequest struct {
	ObjectID  int
	Transform xform.Mat4
	Printable bool
}

// ImportedObject is one object imported with direct geometry: its 3MF
// id, its name, and the geometry itself. Imported is kept index-aligned
// with ObjectTable's values for the lifetime of a single Load call.
type ImportedObject struct {
	ThreeMFID int
	Name      string
	Geometry  RawGeometry
}

// ParseResult is everything the geometry document reader produces for
// the build-graph resolver and the second (sidecar) pass to consume.
type ParseResult struct {
	UnitFactor float64
	Version    int

	// ObjectTable maps a 3MF object id to an index into Imported —
	// populated iff that object carries direct geometry (spec.md §3/§4.4).
	ObjectTable map[int]int

	// AliasTable maps every defined 3MF object id to the component list
	// it expands to; mesh-bearing objects alias themselves with an
	// identity transform.
	AliasTable map[int][]Component

	Imported []ImportedObject

	BuildItems []BuildItemRequest
}
