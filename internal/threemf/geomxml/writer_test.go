package geomxml

import (
	"bytes"
	"testing"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/xform"
	"github.com/kjplatz/threemf/model"
)

func TestWriteGeometryRoundTrip(t *testing.T) {
	m := &model.Model{}
	obj := m.AddObject("cube")
	obj.Volumes = []*model.ModelVolume{
		{
			Transform: xform.Identity(),
			Mesh: model.Mesh{
				Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
				Indices:  []uint32{0, 1, 2},
			},
		},
	}
	obj.Instances = []*model.ModelInstance{
		{Transform: xform.Identity(), Printable: true},
	}

	var buf bytes.Buffer
	writeResult, err := WriteGeometry(&buf, m, WriterOptions{WriterVersion: 2})
	if err != nil {
		t.Fatalf("WriteGeometry failed: %v", err)
	}
	if len(writeResult.Objects) != 1 {
		t.Fatalf("got %d write infos, want 1", len(writeResult.Objects))
	}

	sink := &diag.Sink{}
	rd := NewReader(Options{ArchiveStem: "roundtrip"}, sink)
	parsed, err := rd.Parse(&buf)
	if err != nil {
		t.Fatalf("re-parsing written document failed: %v", err)
	}
	if len(parsed.Imported) != 1 {
		t.Fatalf("got %d imported objects after round-trip, want 1", len(parsed.Imported))
	}
	if parsed.Imported[0].Geometry.TriangleCount() != 1 {
		t.Errorf("triangle count after round-trip = %d, want 1", parsed.Imported[0].Geometry.TriangleCount())
	}
	if len(parsed.BuildItems) != 1 {
		t.Fatalf("got %d build items, want 1", len(parsed.BuildItems))
	}
	if !parsed.BuildItems[0].Printable {
		t.Error("instance printable flag lost in round-trip")
	}
}

func TestWriteGeometryMultipleInstancesShareCanonicalMesh(t *testing.T) {
	m := &model.Model{}
	obj := m.AddObject("part")
	obj.Volumes = []*model.ModelVolume{
		{
			Transform: xform.Identity(),
			Mesh: model.Mesh{
				Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
				Indices:  []uint32{0, 1, 2},
			},
		},
	}
	obj.Instances = []*model.ModelInstance{
		{Transform: xform.Identity(), Printable: true},
		{Transform: xform.Identity(), Printable: true},
		{Transform: xform.Identity(), Printable: false},
	}

	var buf bytes.Buffer
	writeResult, err := WriteGeometry(&buf, m, WriterOptions{WriterVersion: 2})
	if err != nil {
		t.Fatalf("WriteGeometry failed: %v", err)
	}
	info := writeResult.Objects[0]
	if len(info.InstanceIDs) != 3 {
		t.Fatalf("got %d instance ids, want 3", len(info.InstanceIDs))
	}
	if info.InstanceIDs[0] != info.CanonicalID {
		t.Errorf("first instance id %d should equal canonical id %d", info.InstanceIDs[0], info.CanonicalID)
	}
	for _, id := range info.InstanceIDs[1:] {
		if id == info.CanonicalID {
			t.Error("subsequent instance should get a distinct id from the canonical mesh object")
		}
	}

	sink := &diag.Sink{}
	rd := NewReader(Options{ArchiveStem: "roundtrip"}, sink)
	parsed, err := rd.Parse(&buf)
	if err != nil {
		t.Fatalf("re-parsing written document failed: %v", err)
	}
	if len(parsed.BuildItems) != 3 {
		t.Fatalf("got %d build items, want 3", len(parsed.BuildItems))
	}
	if len(parsed.Imported) != 1 {
		t.Errorf("got %d imported (mesh-bearing) objects, want 1 shared mesh", len(parsed.Imported))
	}
}
