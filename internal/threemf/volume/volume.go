// Package volume materializes per-object volumes from a raw 3MF mesh
// and the volume ranges/metadata a modelconfig.Document describes
// (spec.md §4.8).
package volume

import (
	"fmt"

	"github.com/flywave/go3d/vec3"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/geomxml"
	"github.com/kjplatz/threemf/internal/threemf/modelconfig"
	"github.com/kjplatz/threemf/internal/threemf/xform"
	"github.com/kjplatz/threemf/internal/threemf/xmlnames"
	"github.com/kjplatz/threemf/model"
)

// RepairAndHull is the mesh-repair collaborator (spec.md §1 Non-goals):
// materialization calls Repair once per volume, and this module carries
// no implementation of its own. It has no convex-hull method, so no
// convex hull is computed for a volume.
type RepairAndHull interface {
	Repair(mesh *model.Mesh)
}

// NopRepairAndHull is a RepairAndHull that does nothing, for callers
// with no repair collaborator wired in.
type NopRepairAndHull struct{}

func (NopRepairAndHull) Repair(*model.Mesh) {}

// Materialize builds the list of volumes for one object from its raw
// imported geometry and optional model-config entry (spec.md §4.8). If
// ranges has no volumes, a synthetic single volume covering the whole
// mesh is produced.
func Materialize(geom geomxml.RawGeometry, ranges *modelconfig.ObjectMetadata, version int, repair RepairAndHull, sink *diag.Sink) ([]*model.ModelVolume, error) {
	triCount := geom.TriangleCount()

	var volRanges []modelconfig.VolumeMetadata
	if ranges != nil && len(ranges.Volumes) > 0 {
		volRanges = ranges.Volumes
	} else {
		volRanges = []modelconfig.VolumeMetadata{{FirstTriangleID: 0, LastTriangleID: triCount - 1}}
	}

	volumes := make([]*model.ModelVolume, 0, len(volRanges))
	for _, vr := range volRanges {
		if vr.FirstTriangleID > vr.LastTriangleID || vr.LastTriangleID >= triCount {
			return nil, diag.New(diag.BadTriangleRange,
				fmt.Sprintf("range %d-%d of %d triangles", vr.FirstTriangleID, vr.LastTriangleID, triCount),
				fmt.Errorf("triangle range out of bounds"))
		}

		vol := &model.ModelVolume{Transform: xform.Identity()}
		mesh, matrix, hasMatrix := extractFacets(geom, vr, version)
		if hasMatrix {
			vol.Transform = matrix
		}
		vol.Mesh = mesh

		applyVolumeMetadata(vol, vr.Entries, sink)
		repair.Repair(&vol.Mesh)
		volumes = append(volumes, vol)
	}
	return volumes, nil
}

// extractFacets copies the triangles in [vr.FirstTriangleID, vr.LastTriangleID]
// into a standalone mesh. When version > 1 and the range carries a
// `matrix` metadata entry, each vertex is premultiplied by the inverse
// of that matrix before storage, since the geometry document's vertices
// are in world frame but the volume's mesh is stored in its own local
// frame (spec.md §4.8 step 3).
func extractFacets(geom geomxml.RawGeometry, vr modelconfig.VolumeMetadata, version int) (model.Mesh, xform.Mat4, bool) {
	var matrix xform.Mat4
	hasMatrix := false
	if version > 1 {
		for _, e := range vr.Entries {
			if e.Key == xmlnames.VolumeMatrixKey {
				if m, ok := decodeRowMajorMatrix(e.Value); ok {
					matrix = m
					hasMatrix = true
				}
				break
			}
		}
	}

	var inv xform.Mat4
	invertible := false
	if hasMatrix {
		inv, invertible = xform.Invert(matrix)
	}

	facetCount := vr.LastTriangleID - vr.FirstTriangleID + 1
	mesh := model.Mesh{
		Vertices: make([]float32, 0, facetCount*9),
		Indices:  make([]uint32, 0, facetCount*3),
	}

	vertexRemap := map[uint32]uint32{}
	for tri := vr.FirstTriangleID; tri <= vr.LastTriangleID; tri++ {
		for k := 0; k < 3; k++ {
			srcIdx := geom.Indices[tri*3+k]
			dstIdx, seen := vertexRemap[srcIdx]
			if !seen {
				dstIdx = uint32(len(mesh.Vertices) / 3)
				vertexRemap[srcIdx] = dstIdx

				x := geom.Vertices[srcIdx*3]
				y := geom.Vertices[srcIdx*3+1]
				z := geom.Vertices[srcIdx*3+2]
				if hasMatrix && invertible {
					p := xform.ApplyPoint(inv, vec3.T{x, y, z})
					x, y, z = p[0], p[1], p[2]
				}
				mesh.Vertices = append(mesh.Vertices, x, y, z)
			}
			mesh.Indices = append(mesh.Indices, dstIdx)
		}
	}

	if hasMatrix {
		return mesh, matrix, true
	}
	return mesh, xform.Identity(), false
}

// applyVolumeMetadata installs the recognized per-volume keys in the
// priority order spec.md §4.8 step 6 lists, forwarding everything else
// verbatim into the volume's config list.
func applyVolumeMetadata(vol *model.ModelVolume, entries []modelconfig.Entry, sink *diag.Sink) {
	hasVolumeType := false
	for _, e := range entries {
		if e.Key == xmlnames.VolumeTypeKey {
			hasVolumeType = true
			break
		}
	}

	for _, e := range entries {
		switch e.Key {
		case xmlnames.VolumeNameKey:
			vol.Name = e.Value
		case xmlnames.VolumeModifierKey:
			if !hasVolumeType && e.Value == "1" {
				vol.Type = model.VolumeParameterModifier
			}
		case xmlnames.VolumeTypeKey:
			vol.Type = model.ParseVolumeType(e.Value)
		case xmlnames.VolumeMatrixKey:
			// consumed directly by extractFacets; not forwarded.
		case xmlnames.VolumeSourceFileKey:
			vol.Source.InputFile = e.Value
		case xmlnames.VolumeSourceObjectKey:
			vol.Source.ObjectID = atoiSafe(e.Value)
		case xmlnames.VolumeSourceVolumeKey:
			vol.Source.VolumeID = atoiSafe(e.Value)
		case xmlnames.VolumeSourceOffsetX:
			vol.Source.OffsetX = atofSafe(e.Value)
		case xmlnames.VolumeSourceOffsetY:
			vol.Source.OffsetY = atofSafe(e.Value)
		case xmlnames.VolumeSourceOffsetZ:
			vol.Source.OffsetZ = atofSafe(e.Value)
		default:
			vol.Config = append(vol.Config, model.KeyValue{Key: e.Key, Value: e.Value})
		}
	}
}
