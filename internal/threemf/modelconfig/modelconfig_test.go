package modelconfig

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/xform"
	"github.com/kjplatz/threemf/model"
)

const sampleConfig = `<?xml version="1.0"?>
<config>
  <object id="1">
    <metadata type="object" key="name" value="Cube"/>
    <volume firstid="0" lastid="11">
      <metadata type="volume" key="name" value="body"/>
    </volume>
    <volume firstid="12" lastid="23">
      <metadata type="volume" key="volume_type" value="support_enforcer"/>
    </volume>
  </object>
</config>`

func TestParseObjectAndVolumes(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleConfig), &diag.Sink{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	obj := doc.ByObjectID(1)
	if obj == nil {
		t.Fatal("object 1 not found")
	}
	if len(obj.Entries) != 1 || obj.Entries[0].Value != "Cube" {
		t.Errorf("object metadata = %v, want name=Cube", obj.Entries)
	}
	if len(obj.Volumes) != 2 {
		t.Fatalf("got %d volumes, want 2", len(obj.Volumes))
	}
	if obj.Volumes[0].FirstTriangleID != 0 || obj.Volumes[0].LastTriangleID != 11 {
		t.Errorf("volume 0 range = %d-%d, want 0-11", obj.Volumes[0].FirstTriangleID, obj.Volumes[0].LastTriangleID)
	}
	if len(obj.Volumes[1].Entries) != 1 || obj.Volumes[1].Entries[0].Key != "volume_type" {
		t.Errorf("volume 1 metadata = %v", obj.Volumes[1].Entries)
	}
}

func TestParseDuplicateObjectIDFails(t *testing.T) {
	doc := `<config><object id="1"/><object id="1"/></config>`
	_, err := Parse(strings.NewReader(doc), &diag.Sink{})
	if err == nil {
		t.Fatal("expected duplicate object id error")
	}
	e, ok := err.(*diag.Error)
	if !ok || e.Kind != diag.DuplicateObjectID {
		t.Errorf("got %v, want DuplicateObjectId", err)
	}
}

func TestParseUnknownMetadataTypeIsNonFatal(t *testing.T) {
	doc := `<config><object id="1"><metadata type="bogus" key="k" value="v"/></object></config>`
	sink := &diag.Sink{}
	_, err := Parse(strings.NewReader(doc), sink)
	if err != nil {
		t.Fatalf("unknown metadata type should not abort parsing: %v", err)
	}
	if sink.Empty() {
		t.Error("unknown metadata type should be reported")
	}
}

func TestWriteThenParseRoundTrip(t *testing.T) {
	vol := &model.ModelVolume{Name: "body", Transform: xform.Identity()}
	obj := &model.ModelObject{Name: "Cube"}

	var buf bytes.Buffer
	err := Write(&buf, []ObjectWrite{
		{
			ThreeMFID: 1,
			Object:    obj,
			VolumeRanges: []VolumeRangeWrite{
				{Volume: vol, FirstTriangleID: 0, LastTriangleID: 5},
			},
		},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	doc, err := Parse(&buf, &diag.Sink{})
	if err != nil {
		t.Fatalf("re-parsing written document failed: %v", err)
	}
	got := doc.ByObjectID(1)
	if got == nil {
		t.Fatal("object 1 missing after round-trip")
	}
	if len(got.Volumes) != 1 || got.Volumes[0].FirstTriangleID != 0 || got.Volumes[0].LastTriangleID != 5 {
		t.Errorf("volume range lost in round-trip: %v", got.Volumes)
	}
}
