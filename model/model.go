// Package model holds the minimal in-memory collaborator types the
// 3MF importer/exporter populate and read. The full model — printing
// config registry, mesh repair, convex hull, multi-material rendering —
// is explicitly out of scope for this repository (spec.md §1 Non-goals);
// these types exist only so the threemf package has somewhere concrete
// to attach resolved meshes and instances to, and so its tests can
// assert against something. Adapted in shape from
// philipparndt/go3mf's internal/models.Model (an Object/Mesh/Build
// triple) but restructured around the application's multi-volume object
// model instead of the raw 3MF resource graph.
package model

import "github.com/kjplatz/threemf/internal/threemf/xform"

// KeyValue is an ordered (key, value) pair, used for metadata lists that
// must round-trip in document order.
type KeyValue struct {
	Key   string
	Value string
}

// Mesh is a flattened indexed-triangle-set: Vertices is a flat XYZXYZ...
// list, Indices groups into triangles of three vertex indices each.
type Mesh struct {
	Vertices []float32
	Indices  []uint32
}

// TriangleCount returns the number of triangles in the mesh.
func (m Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// VolumeType mirrors the recognized 3MF volume roles (spec.md §4.8).
type VolumeType int

const (
	VolumeModelPart VolumeType = iota
	VolumeParameterModifier
	VolumeSupportEnforcer
	VolumeSupportBlocker
)

var volumeTypeNames = map[string]VolumeType{
	"model_part":         VolumeModelPart,
	"parameter_modifier": VolumeParameterModifier,
	"support_enforcer":   VolumeSupportEnforcer,
	"support_blocker":    VolumeSupportBlocker,
}

var volumeTypeStrings = map[VolumeType]string{
	VolumeModelPart:         "model_part",
	VolumeParameterModifier: "parameter_modifier",
	VolumeSupportEnforcer:   "support_enforcer",
	VolumeSupportBlocker:    "support_blocker",
}

// ParseVolumeType maps a `volume_type` metadata value to a VolumeType,
// defaulting to VolumeModelPart for unrecognized values.
func ParseVolumeType(s string) VolumeType {
	if t, ok := volumeTypeNames[s]; ok {
		return t
	}
	return VolumeModelPart
}

func (t VolumeType) String() string {
	if s, ok := volumeTypeStrings[t]; ok {
		return s
	}
	return "model_part"
}

// VolumeSource records where an imported volume's geometry came from,
// the source_* metadata family of spec.md §4.8.
type VolumeSource struct {
	InputFile string
	ObjectID  int
	VolumeID  int
	OffsetX   float64
	OffsetY   float64
	OffsetZ   float64
}

// ModelVolume is one contiguous triangle range of an object's mesh, with
// its own local transform and parameter overrides (spec.md §3 glossary:
// Volume).
type ModelVolume struct {
	Name      string
	Type      VolumeType
	Mesh      Mesh
	Transform xform.Mat4 // identity unless the source file was Version > 1
	Config    []KeyValue // unrecognized per-volume metadata, forwarded verbatim
	Source    VolumeSource
}

// ModelInstance is one placement of a ModelObject on the build plate.
type ModelInstance struct {
	Transform xform.Mat4
	Printable bool
}

// LayerRange is one entry of a layer-config-ranges sidecar (spec.md
// §4.7): a Z interval and the print-option overrides active within it.
type LayerRange struct {
	MinZ, MaxZ float64
	Options    map[string]string
}

// SupportPoint is one SLA support point (spec.md §4.7).
type SupportPoint struct {
	X, Y, Z     float64
	HeadRadius  float64
	IsNewIsland bool
}

// ModelObject is an application-level object: a name, zero or more
// volumes sliced out of a shared 3MF mesh, and the instances that place
// it on the build plate.
type ModelObject struct {
	Name     string
	Volumes  []*ModelVolume
	Instances []*ModelInstance
	Metadata  []KeyValue

	LayerHeightProfile []float64
	LayerConfigRanges  []LayerRange
	SupportPoints      []SupportPoint
}

// Model is the complete in-memory document a Load call populates and a
// Store call reads back.
type Model struct {
	Objects []*ModelObject
}

// AddObject appends and returns a new empty object.
func (m *Model) AddObject(name string) *ModelObject {
	obj := &ModelObject{Name: name}
	m.Objects = append(m.Objects, obj)
	return obj
}
