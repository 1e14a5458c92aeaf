// Package xmlnames is the single string table of element and attribute
// names shared by the geometry and model-config readers/writers. Keeping
// these in one place means the streaming parsers can dispatch on equality
// against named constants instead of scattering string literals through
// every state machine.
package xmlnames

// Geometry document element names (3MF Core).
const (
	Model      = "model"
	Resources  = "resources"
	Object     = "object"
	Mesh       = "mesh"
	Vertices   = "vertices"
	Vertex     = "vertex"
	Triangles  = "triangles"
	Triangle   = "triangle"
	Components = "components"
	Component  = "component"
	Build      = "build"
	Item       = "item"
	Metadata   = "metadata"
	BaseMaterials = "basematerials"
	Base          = "base"
)

// Model-config document element names.
const (
	Config = "config"
	Volume = "volume"
)

// Attribute names.
const (
	AttrUnit      = "unit"
	AttrName      = "name"
	AttrType      = "type"
	AttrID        = "id"
	AttrX         = "x"
	AttrY         = "y"
	AttrZ         = "z"
	AttrV1        = "v1"
	AttrV2        = "v2"
	AttrV3        = "v3"
	AttrObjectID  = "objectid"
	AttrTransform = "transform"
	AttrPrintable = "printable"
	AttrKey       = "key"
	AttrValue     = "value"
	AttrFirstID   = "firstid"
	AttrLastID    = "lastid"
	AttrMinZ      = "min_z"
	AttrMaxZ      = "max_z"
	AttrOptKey    = "opt_key"
	AttrPreserve  = "preserve"
)

// Metadata type values used by the model-config document.
const (
	MetadataTypeObject = "object"
	MetadataTypeVolume = "volume"
)

// MetadataVersionKey is the well-known metadata name carrying the writer
// version of this module's output (spec.md §3, §6).
const MetadataVersionKey = "slic3rpe:Version3mf"

// Recognized/ignored 3MF object types (spec.md §4.4). An object whose
// type is one of the four ignored types below is skipped entirely; any
// other type value is imported like ModelObjectType.
const (
	ModelObjectType   = "model"
	SupportObjectType = "solidsupport"
	LegacySupportType = "support"
	SurfaceType       = "surface"
	OtherType         = "other"
)

// IsIgnoredObjectType reports whether a 3MF object `type` attribute value
// means "don't import this as a model object".
func IsIgnoredObjectType(t string) bool {
	switch t {
	case SupportObjectType, LegacySupportType, SurfaceType, OtherType:
		return true
	default:
		return false
	}
}

// Recognized per-volume metadata keys (spec.md §4.8).
const (
	VolumeNameKey         = "name"
	VolumeModifierKey     = "modifier"
	VolumeTypeKey         = "volume_type"
	VolumeMatrixKey       = "matrix"
	VolumeSourceFileKey   = "source_file"
	VolumeSourceObjectKey = "source_object_id"
	VolumeSourceVolumeKey = "source_volume_id"
	VolumeSourceOffsetX   = "source_offset_x"
	VolumeSourceOffsetY   = "source_offset_y"
	VolumeSourceOffsetZ   = "source_offset_z"
)
