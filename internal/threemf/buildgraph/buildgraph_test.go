package buildgraph

import (
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/geomxml"
	"github.com/kjplatz/threemf/internal/threemf/xform"
	"github.com/kjplatz/threemf/model"
)

func translation(tx float32) xform.Mat4 {
	m := xform.Identity()
	m[0] = vec4.T{1, 0, 0, tx}
	return m
}

func TestResolveAllSelfAliasAttachesInstance(t *testing.T) {
	result := &geomxml.ParseResult{
		ObjectTable: map[int]int{1: 0},
		AliasTable: map[int][]geomxml.Component{
			1: {{ObjectID: 1, Transform: xform.Identity()}},
		},
		BuildItems: []geomxml.BuildItemRequest{
			{ObjectID: 1, Transform: xform.Identity(), Printable: true},
		},
	}
	objects := []*model.ModelObject{{Name: "a"}}
	sink := &diag.Sink{}

	if err := ResolveAll(result, objects, sink); err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if len(objects[0].Instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(objects[0].Instances))
	}
	if !objects[0].Instances[0].Printable {
		t.Error("instance should be printable")
	}
}

func TestResolveAllComposesComponentTransform(t *testing.T) {
	// Object A has mesh (self-alias). Object B aliases to A translated by +10.
	result := &geomxml.ParseResult{
		ObjectTable: map[int]int{1: 0},
		AliasTable: map[int][]geomxml.Component{
			1: {{ObjectID: 1, Transform: xform.Identity()}},
			2: {{ObjectID: 1, Transform: translation(10)}},
		},
		BuildItems: []geomxml.BuildItemRequest{
			{ObjectID: 2, Transform: xform.Identity(), Printable: true},
		},
	}
	objects := []*model.ModelObject{{Name: "a"}}
	sink := &diag.Sink{}

	if err := ResolveAll(result, objects, sink); err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if len(objects[0].Instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(objects[0].Instances))
	}
	got := xform.ApplyPoint(objects[0].Instances[0].Transform, vec3.T{0, 0, 0})
	if got[0] != 10 {
		t.Errorf("translated instance x = %v, want 10", got[0])
	}
}

func TestResolveAllDetectsCycle(t *testing.T) {
	// A -> B -> A, build item references A.
	result := &geomxml.ParseResult{
		ObjectTable: map[int]int{},
		AliasTable: map[int][]geomxml.Component{
			1: {{ObjectID: 2, Transform: xform.Identity()}},
			2: {{ObjectID: 1, Transform: xform.Identity()}},
		},
		BuildItems: []geomxml.BuildItemRequest{
			{ObjectID: 1, Transform: xform.Identity(), Printable: true},
		},
	}
	sink := &diag.Sink{}
	err := ResolveAll(result, nil, sink)
	if err == nil {
		t.Fatal("expected AliasDepthExceeded for a cyclic alias chain")
	}
	if e, ok := err.(*diag.Error); !ok || e.Kind != diag.AliasDepthExceeded {
		t.Errorf("got error %v, want AliasDepthExceeded", err)
	}
}

func TestResolveAllSkipsZeroScaleTransform(t *testing.T) {
	zero := xform.Identity()
	zero[0] = vec4.T{0, 0, 0, 0}

	result := &geomxml.ParseResult{
		ObjectTable: map[int]int{1: 0},
		AliasTable: map[int][]geomxml.Component{
			1: {{ObjectID: 1, Transform: xform.Identity()}},
		},
		BuildItems: []geomxml.BuildItemRequest{
			{ObjectID: 1, Transform: zero, Printable: true},
		},
	}
	objects := []*model.ModelObject{{Name: "a"}}
	sink := &diag.Sink{}

	if err := ResolveAll(result, objects, sink); err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if objects[0].Instances[0].Transform != xform.Identity() {
		t.Error("zero-scale transform should be skipped (left at identity)")
	}
	if sink.Empty() {
		t.Error("skipping a zero-scale transform should report a diagnostic")
	}
}
