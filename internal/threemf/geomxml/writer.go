package geomxml

import (
	"io"
	"strconv"

	"github.com/beevik/etree"
	"github.com/flywave/go3d/vec3"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/xform"
	"github.com/kjplatz/threemf/internal/threemf/xmlnames"
	"github.com/kjplatz/threemf/model"
)

// VolumeRange is the [firstTriangleId, lastTriangleId] a volume occupies
// within its object's combined mesh, in the order its volumes were
// written — modelconfig.Writer consumes this to emit matching
// `volume firstid lastid` elements (spec.md §4.6/§4.9).
type VolumeRange struct {
	FirstTriangleID int
	LastTriangleID  int
}

// ObjectWriteInfo is what the geometry writer learned about one
// model.ModelObject, for the modelconfig writer to key off of.
type ObjectWriteInfo struct {
	Object       *model.ModelObject
	CanonicalID  int // the 3MF object id carrying the combined mesh
	InstanceIDs  []int // one id per instance, index-aligned with Object.Instances
	VolumeRanges []VolumeRange // index-aligned with Object.Volumes
}

// WriteResult is everything WriteGeometry produced besides the XML
// bytes themselves.
type WriteResult struct {
	Objects []ObjectWriteInfo
}

// WriterOptions configures WriteGeometry.
type WriterOptions struct {
	WriterVersion int
}

// WriteGeometry renders m's objects and build items as a 3MF geometry
// document (spec.md §4.9): a dense 1-based id is assigned per instance
// of each object, the first instance of each object carries the
// combined mesh and every subsequent instance is a components-only
// object pointing back at it.
func WriteGeometry(w io.Writer, m *model.Model, opt WriterOptions) (*WriteResult, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	modelEl := doc.CreateElement(xmlnames.Model)
	modelEl.CreateAttr(xmlnames.AttrUnit, "millimeter")
	modelEl.CreateAttr("xml:lang", "en-US")
	modelEl.CreateAttr("xmlns", "http://schemas.microsoft.com/3dmanufacturing/core/2015/02")

	versionMeta := modelEl.CreateElement(xmlnames.Metadata)
	versionMeta.CreateAttr(xmlnames.AttrName, xmlnames.MetadataVersionKey)
	versionMeta.SetText(strconv.Itoa(opt.WriterVersion))

	resourcesEl := modelEl.CreateElement(xmlnames.Resources)
	buildEl := modelEl.CreateElement(xmlnames.Build)

	result := &WriteResult{}
	nextID := 1

	for _, obj := range m.Objects {
		if len(obj.Instances) == 0 {
			continue
		}
		info := ObjectWriteInfo{Object: obj}

		canonicalID := nextID
		nextID++
		info.CanonicalID = canonicalID

		mesh, ranges := combineVolumes(obj)
		info.VolumeRanges = ranges
		writeMeshObject(resourcesEl, canonicalID, mesh)

		for i, inst := range obj.Instances {
			var instanceID int
			if i == 0 {
				instanceID = canonicalID
			} else {
				instanceID = nextID
				nextID++
				writeComponentObject(resourcesEl, instanceID, canonicalID)
			}
			info.InstanceIDs = append(info.InstanceIDs, instanceID)

			itemEl := buildEl.CreateElement(xmlnames.Item)
			itemEl.CreateAttr(xmlnames.AttrObjectID, strconv.Itoa(instanceID))
			itemEl.CreateAttr(xmlnames.AttrTransform, xform.Encode(inst.Transform))
			itemEl.CreateAttr(xmlnames.AttrPrintable, boolAttr(inst.Printable))
		}

		result.Objects = append(result.Objects, info)
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return nil, diag.New(diag.MemberWrite, "3D/3dmodel.model", err)
	}
	return result, nil
}

// combineVolumes flattens obj's volumes (each in its own local frame)
// into a single object-frame mesh, transforming each volume's vertices
// by its stored transform before appending (the write-side mirror of
// the back-transform §4.8 applies on read).
func combineVolumes(obj *model.ModelObject) (model.Mesh, []VolumeRange) {
	if len(obj.Volumes) == 0 {
		return model.Mesh{}, nil
	}

	var combined model.Mesh
	ranges := make([]VolumeRange, 0, len(obj.Volumes))
	triOffset := 0

	for _, vol := range obj.Volumes {
		vertexOffset := uint32(len(combined.Vertices) / 3)
		for i := 0; i+2 < len(vol.Mesh.Vertices); i += 3 {
			local := vec3.T{vol.Mesh.Vertices[i], vol.Mesh.Vertices[i+1], vol.Mesh.Vertices[i+2]}
			p := xform.ApplyPoint(vol.Transform, local)
			combined.Vertices = append(combined.Vertices, p[0], p[1], p[2])
		}
		for _, idx := range vol.Mesh.Indices {
			combined.Indices = append(combined.Indices, idx+vertexOffset)
		}

		triCount := vol.Mesh.TriangleCount()
		ranges = append(ranges, VolumeRange{
			FirstTriangleID: triOffset,
			LastTriangleID:  triOffset + triCount - 1,
		})
		triOffset += triCount
	}

	return combined, ranges
}

func writeMeshObject(resourcesEl *etree.Element, id int, mesh model.Mesh) {
	objEl := resourcesEl.CreateElement(xmlnames.Object)
	objEl.CreateAttr(xmlnames.AttrID, strconv.Itoa(id))
	objEl.CreateAttr(xmlnames.AttrType, xmlnames.ModelObjectType)

	meshEl := objEl.CreateElement(xmlnames.Mesh)
	verticesEl := meshEl.CreateElement(xmlnames.Vertices)
	for i := 0; i+2 < len(mesh.Vertices); i += 3 {
		vEl := verticesEl.CreateElement(xmlnames.Vertex)
		vEl.CreateAttr(xmlnames.AttrX, formatCoord(mesh.Vertices[i]))
		vEl.CreateAttr(xmlnames.AttrY, formatCoord(mesh.Vertices[i+1]))
		vEl.CreateAttr(xmlnames.AttrZ, formatCoord(mesh.Vertices[i+2]))
	}
	trianglesEl := meshEl.CreateElement(xmlnames.Triangles)
	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		tEl := trianglesEl.CreateElement(xmlnames.Triangle)
		tEl.CreateAttr(xmlnames.AttrV1, strconv.FormatUint(uint64(mesh.Indices[i]), 10))
		tEl.CreateAttr(xmlnames.AttrV2, strconv.FormatUint(uint64(mesh.Indices[i+1]), 10))
		tEl.CreateAttr(xmlnames.AttrV3, strconv.FormatUint(uint64(mesh.Indices[i+2]), 10))
	}
}

func writeComponentObject(resourcesEl *etree.Element, id, canonicalID int) {
	objEl := resourcesEl.CreateElement(xmlnames.Object)
	objEl.CreateAttr(xmlnames.AttrID, strconv.Itoa(id))
	objEl.CreateAttr(xmlnames.AttrType, xmlnames.ModelObjectType)

	componentsEl := objEl.CreateElement(xmlnames.Components)
	cEl := componentsEl.CreateElement(xmlnames.Component)
	cEl.CreateAttr(xmlnames.AttrObjectID, strconv.Itoa(canonicalID))
}

func formatCoord(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func boolAttr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
