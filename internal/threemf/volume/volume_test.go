package volume

import (
	"testing"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/geomxml"
	"github.com/kjplatz/threemf/internal/threemf/modelconfig"
	"github.com/kjplatz/threemf/internal/threemf/xmlnames"
	"github.com/kjplatz/threemf/model"
)

// singleTriangle is a one-triangle mesh: a unit right triangle in the XY plane.
func singleTriangle() geomxml.RawGeometry {
	return geomxml.RawGeometry{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:  []uint32{0, 1, 2},
	}
}

func twoTriangles() geomxml.RawGeometry {
	return geomxml.RawGeometry{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 0, 1, 0,
			0, 0, 1, 1, 0, 1, 0, 1, 1,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
}

func TestMaterializeSynthesizesWholeMeshVolumeWhenNoRanges(t *testing.T) {
	volumes, err := Materialize(singleTriangle(), nil, 1, NopRepairAndHull{}, &diag.Sink{})
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if len(volumes) != 1 {
		t.Fatalf("got %d volumes, want 1", len(volumes))
	}
	if volumes[0].Mesh.TriangleCount() != 1 {
		t.Errorf("volume triangle count = %d, want 1", volumes[0].Mesh.TriangleCount())
	}
}

func TestMaterializeRejectsBadTriangleRange(t *testing.T) {
	ranges := &modelconfig.ObjectMetadata{
		Volumes: []modelconfig.VolumeMetadata{
			{FirstTriangleID: 0, LastTriangleID: 5}, // out of bounds: only 1 triangle exists
		},
	}
	_, err := Materialize(singleTriangle(), ranges, 1, NopRepairAndHull{}, &diag.Sink{})
	if err == nil {
		t.Fatal("expected BadTriangleRange error")
	}
	if e, ok := err.(*diag.Error); !ok || e.Kind != diag.BadTriangleRange {
		t.Errorf("got %v, want BadTriangleRange", err)
	}
}

func TestMaterializeSplitsRangesIntoDistinctVolumes(t *testing.T) {
	ranges := &modelconfig.ObjectMetadata{
		Volumes: []modelconfig.VolumeMetadata{
			{FirstTriangleID: 0, LastTriangleID: 0},
			{FirstTriangleID: 1, LastTriangleID: 1},
		},
	}
	volumes, err := Materialize(twoTriangles(), ranges, 1, NopRepairAndHull{}, &diag.Sink{})
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if len(volumes) != 2 {
		t.Fatalf("got %d volumes, want 2", len(volumes))
	}
	for i, vol := range volumes {
		if vol.Mesh.TriangleCount() != 1 {
			t.Errorf("volume %d triangle count = %d, want 1", i, vol.Mesh.TriangleCount())
		}
	}
}

func TestMaterializeBackTransformsVersion2Matrix(t *testing.T) {
	// Version 2 file, one volume with a `matrix` entry. The volume's
	// vertices are stored in world frame; a translate-by-10-in-x matrix should be inverted
	// on import so the volume mesh ends up in its own local frame,
	// i.e. the first vertex (0,0,0 in world) becomes (-10,0,0) locally.
	matrixTranslateX10 := "1 0 0 10  0 1 0 0  0 0 1 0  0 0 0 1"

	ranges := &modelconfig.ObjectMetadata{
		Volumes: []modelconfig.VolumeMetadata{
			{
				FirstTriangleID: 0,
				LastTriangleID:  0,
				Entries: []modelconfig.Entry{
					{Key: xmlnames.VolumeMatrixKey, Value: matrixTranslateX10},
				},
			},
		},
	}

	volumes, err := Materialize(singleTriangle(), ranges, 2, NopRepairAndHull{}, &diag.Sink{})
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if len(volumes) != 1 {
		t.Fatalf("got %d volumes, want 1", len(volumes))
	}
	vol := volumes[0]
	if vol.Transform[0][3] != 10 {
		t.Errorf("volume transform not set from matrix entry: %+v", vol.Transform)
	}
	gotX := vol.Mesh.Vertices[0]
	if gotX != -10 {
		t.Errorf("first vertex x after back-transform = %v, want -10", gotX)
	}
}

func TestMaterializeIgnoresMatrixBelowVersion2(t *testing.T) {
	matrixTranslateX10 := "1 0 0 10  0 1 0 0  0 0 1 0  0 0 0 1"
	ranges := &modelconfig.ObjectMetadata{
		Volumes: []modelconfig.VolumeMetadata{
			{
				FirstTriangleID: 0,
				LastTriangleID:  0,
				Entries: []modelconfig.Entry{
					{Key: xmlnames.VolumeMatrixKey, Value: matrixTranslateX10},
				},
			},
		},
	}
	volumes, err := Materialize(singleTriangle(), ranges, 1, NopRepairAndHull{}, &diag.Sink{})
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if volumes[0].Mesh.Vertices[0] != 0 {
		t.Errorf("version 1 volume should not be back-transformed, got x=%v", volumes[0].Mesh.Vertices[0])
	}
}

func TestApplyVolumeMetadataPriorityAndForwarding(t *testing.T) {
	entries := []modelconfig.Entry{
		{Key: xmlnames.VolumeNameKey, Value: "insert"},
		{Key: xmlnames.VolumeModifierKey, Value: "1"},
		{Key: xmlnames.VolumeTypeKey, Value: "support_enforcer"},
		{Key: xmlnames.VolumeSourceFileKey, Value: "part.stl"},
		{Key: "custom_key", Value: "custom_value"},
	}
	vol := &model.ModelVolume{}
	applyVolumeMetadata(vol, entries, &diag.Sink{})

	if vol.Name != "insert" {
		t.Errorf("name = %q, want insert", vol.Name)
	}
	// Explicit volume_type must win over the legacy modifier=1 fallback.
	if vol.Type != model.VolumeSupportEnforcer {
		t.Errorf("type = %v, want VolumeSupportEnforcer (explicit volume_type wins over modifier)", vol.Type)
	}
	if vol.Source.InputFile != "part.stl" {
		t.Errorf("source file = %q, want part.stl", vol.Source.InputFile)
	}
	if len(vol.Config) != 1 || vol.Config[0].Key != "custom_key" {
		t.Errorf("unrecognized entry not forwarded: %v", vol.Config)
	}
}

func TestApplyVolumeMetadataModifierFallbackWhenNoVolumeType(t *testing.T) {
	entries := []modelconfig.Entry{
		{Key: xmlnames.VolumeModifierKey, Value: "1"},
	}
	vol := &model.ModelVolume{}
	applyVolumeMetadata(vol, entries, &diag.Sink{})
	if vol.Type != model.VolumeParameterModifier {
		t.Errorf("type = %v, want VolumeParameterModifier from legacy modifier fallback", vol.Type)
	}
}
