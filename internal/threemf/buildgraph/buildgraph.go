// Package buildgraph resolves the <build><item> list into concrete
// model instances by recursively expanding the alias/component graph a
// geomxml.Reader produced (spec.md §4.5).
package buildgraph

import (
	"fmt"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/geomxml"
	"github.com/kjplatz/threemf/internal/threemf/xform"
	"github.com/kjplatz/threemf/model"
)

// maxDepth guards against component cycles (spec.md §4.5): an explicit
// counter replaces any reliance on stack overflow (spec.md §9).
const maxDepth = 10

// ResolveAll walks every build item in result against its alias table,
// attaching a model.ModelInstance to the corresponding model object for
// each self-alias reached. objects must be index-aligned with
// result.ObjectTable's values (i.e. objects[result.ObjectTable[id]] is
// the model object imported for 3MF id `id`).
func ResolveAll(result *geomxml.ParseResult, objects []*model.ModelObject, sink *diag.Sink) error {
	for _, item := range result.BuildItems {
		if err := resolve(result, objects, item.ObjectID, item.Transform, item.Printable, 1, sink); err != nil {
			return err
		}
	}
	return nil
}

func resolve(result *geomxml.ParseResult, objects []*model.ModelObject, objectID int, transform xform.Mat4, printable bool, depth int, sink *diag.Sink) error {
	if depth > maxDepth {
		return diag.New(diag.AliasDepthExceeded, fmt.Sprintf("objectid %d", objectID),
			fmt.Errorf("component alias chain exceeds depth %d", maxDepth))
	}

	components, ok := result.AliasTable[objectID]
	if !ok {
		return diag.New(diag.UnknownBuildItem, fmt.Sprintf("objectid %d", objectID),
			fmt.Errorf("no alias entry for object"))
	}

	if isSelfAlias(objectID, components) {
		idx, ok := result.ObjectTable[objectID]
		if !ok || idx >= len(objects) {
			return diag.New(diag.UnknownBuildItem, fmt.Sprintf("objectid %d", objectID),
				fmt.Errorf("self-aliased object has no imported geometry"))
		}
		attachInstance(objects[idx], transform, printable, sink, objectID)
		return nil
	}

	for _, c := range components {
		childTransform := xform.Compose(transform, c.Transform)
		if err := resolve(result, objects, c.ObjectID, childTransform, printable, depth+1, sink); err != nil {
			return err
		}
	}
	return nil
}

func isSelfAlias(objectID int, components []geomxml.Component) bool {
	if len(components) != 1 {
		return false
	}
	return components[0].ObjectID == objectID
}

// attachInstance applies spec.md §4.5's instance transform rule: a
// transform whose baked-in scale has a zero component is not invertible
// and is skipped defensively, leaving the instance at identity and
// recording a non-fatal diagnostic (see DESIGN.md Open Question 3).
func attachInstance(obj *model.ModelObject, transform xform.Mat4, printable bool, sink *diag.Sink, objectID int) {
	inst := &model.ModelInstance{Transform: transform, Printable: printable}
	if xform.HasZeroScale(transform) {
		inst.Transform = xform.Identity()
		if sink != nil {
			sink.Report(diag.BadAttribute, fmt.Sprintf("objectid %d", objectID),
				fmt.Errorf("instance transform has a zero scale component, not applied"))
		}
	}
	obj.Instances = append(obj.Instances, inst)
}
