package geomxml

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/kjplatz/threemf/internal/threemf/attrs"
	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/xform"
	"github.com/kjplatz/threemf/internal/threemf/xmlnames"
)

// state is one entry of the parser's nested state stack (spec.md §9:
// "a small state stack (in_model / in_resources / in_object / in_mesh /
// in_vertices / in_triangles / in_components / in_build / in_metadata)").
type state int

const (
	inModel state = iota
	inResources
	inObject
	inMesh
	inVertices
	inTriangles
	inComponents
	inBuild
	inMetadata
)

// currentObject is the parser's scratch for the <object> currently
// being read (spec.md §3: CurrentObject).
type currentObject struct {
	id         int
	ignored    bool
	nameHint   string
	geometry   RawGeometry
	components []Component
}

// Options configures the reader.
type Options struct {
	// ArchiveStem is used to synthesize a name for an <object> with no
	// `name` attribute (spec.md §4.4).
	ArchiveStem string
	// CheckVersion, when true, makes a file Version greater than
	// WriterVersion a fatal VersionError (spec.md §6).
	CheckVersion  bool
	WriterVersion int
}

// Reader streams the 3MF geometry document.
type Reader struct {
	opt  Options
	diag *diag.Sink
}

func NewReader(opt Options, sink *diag.Sink) *Reader {
	return &Reader{opt: opt, diag: sink}
}

// Parse drives an xml.Decoder over r, returning the resolved tables the
// build-graph resolver and sidecar pass need.
func (rd *Reader) Parse(r io.Reader) (*ParseResult, error) {
	dec := xml.NewDecoder(r)

	result := &ParseResult{
		UnitFactor: 1.0,
		ObjectTable: map[int]int{},
		AliasTable:  map[int][]Component{},
	}

	var stack []state
	top := func() state {
		if len(stack) == 0 {
			return inModel
		}
		return stack[len(stack)-1]
	}
	push := func(s state) { stack = append(stack, s) }
	pop := func() {
		if len(stack) > 0 {
			stack = stack[:len(stack)-1]
		}
	}

	seenObjectIDs := map[int]bool{}
	objectCount := 0

	var cur *currentObject
	var metaName string
	var metaChars []byte

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, diag.New(diag.XMLSyntax, "3D/3dmodel.model", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case xmlnames.Model:
				result.UnitFactor = attrs.UnitFactor(attrs.String(t.Attr, xmlnames.AttrUnit))
				push(inModel)

			case xmlnames.Resources:
				push(inResources)

			case xmlnames.Object:
				id := attrs.Int(t.Attr, xmlnames.AttrID)
				if id <= 0 {
					return nil, diag.New(diag.BadAttribute, "object", fmt.Errorf("missing or non-positive id"))
				}
				if seenObjectIDs[id] {
					return nil, diag.New(diag.DuplicateObjectID, fmt.Sprintf("object id %d", id), fmt.Errorf("duplicate object id"))
				}
				seenObjectIDs[id] = true

				objType := attrs.String(t.Attr, xmlnames.AttrType)
				if objType == "" {
					objType = xmlnames.ModelObjectType
				}
				name := attrs.String(t.Attr, xmlnames.AttrName)
				if name == "" {
					name = fmt.Sprintf("%s_%d", rd.opt.ArchiveStem, objectCount)
				}
				objectCount++

				cur = &currentObject{
					id:       id,
					ignored:  xmlnames.IsIgnoredObjectType(objType),
					nameHint: name,
				}
				push(inObject)

			case xmlnames.Mesh:
				if cur != nil {
					cur.geometry = RawGeometry{}
				}
				push(inMesh)

			case xmlnames.Vertices:
				if cur != nil {
					cur.geometry.Vertices = nil
				}
				push(inVertices)

			case xmlnames.Vertex:
				if top() == inVertices && cur != nil {
					x := attrs.Float(t.Attr, xmlnames.AttrX) * result.UnitFactor
					y := attrs.Float(t.Attr, xmlnames.AttrY) * result.UnitFactor
					z := attrs.Float(t.Attr, xmlnames.AttrZ) * result.UnitFactor
					cur.geometry.Vertices = append(cur.geometry.Vertices, float32(x), float32(y), float32(z))
				}

			case xmlnames.Triangles:
				if cur != nil {
					cur.geometry.Indices = nil
				}
				push(inTriangles)

			case xmlnames.Triangle:
				if top() == inTriangles && cur != nil {
					v1 := attrs.Int(t.Attr, xmlnames.AttrV1)
					v2 := attrs.Int(t.Attr, xmlnames.AttrV2)
					v3 := attrs.Int(t.Attr, xmlnames.AttrV3)
					cur.geometry.Indices = append(cur.geometry.Indices, uint32(v1), uint32(v2), uint32(v3))
				}

			case xmlnames.Components:
				push(inComponents)

			case xmlnames.Component:
				if cur != nil {
					objID := attrs.Int(t.Attr, xmlnames.AttrObjectID)
					tf := xform.Decode(attrs.String(t.Attr, xmlnames.AttrTransform))
					cur.components = append(cur.components, Component{ObjectID: objID, Transform: tf})
				}

			case xmlnames.Build:
				push(inBuild)

			case xmlnames.Item:
				if top() == inBuild {
					objID := attrs.Int(t.Attr, xmlnames.AttrObjectID)
					tf := xform.Decode(attrs.String(t.Attr, xmlnames.AttrTransform))
					printable := attrs.Bool(t.Attr, xmlnames.AttrPrintable)
					result.BuildItems = append(result.BuildItems, BuildItemRequest{
						ObjectID:  objID,
						Transform: tf,
						Printable: printable,
					})
				}

			case xmlnames.Metadata:
				metaName = attrs.String(t.Attr, xmlnames.AttrName)
				metaChars = metaChars[:0]
				push(inMetadata)
			}

		case xml.CharData:
			if top() == inMetadata {
				metaChars = append(metaChars, t...)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case xmlnames.Object:
				rd.finishObject(result, cur)
				cur = nil
				pop()

			case xmlnames.Metadata:
				if metaName == xmlnames.MetadataVersionKey {
					version := parseVersionText(string(metaChars))
					result.Version = version
					if rd.opt.CheckVersion && version > rd.opt.WriterVersion {
						return nil, diag.New(diag.VersionError, xmlnames.MetadataVersionKey,
							fmt.Errorf("file version %d exceeds writer version %d", version, rd.opt.WriterVersion))
					}
				}
				pop()

			case xmlnames.Mesh, xmlnames.Vertices, xmlnames.Triangles, xmlnames.Components,
				xmlnames.Build, xmlnames.Resources, xmlnames.Model:
				pop()
			}
		}
	}

	if err := rd.validateComponents(result); err != nil {
		return nil, err
	}

	return result, nil
}

// finishObject applies the object-close rules of spec.md §4.4.
func (rd *Reader) finishObject(result *ParseResult, cur *currentObject) {
	if cur == nil || cur.ignored {
		return
	}
	hasGeometry := len(cur.geometry.Vertices) > 0
	hasComponents := len(cur.components) > 0

	switch {
	case !hasGeometry && !hasComponents:
		// drop the placeholder
	case hasGeometry:
		idx := len(result.Imported)
		result.Imported = append(result.Imported, ImportedObject{ThreeMFID: cur.id, Name: cur.nameHint, Geometry: cur.geometry})
		result.ObjectTable[cur.id] = idx
		result.AliasTable[cur.id] = []Component{{ObjectID: cur.id, Transform: xform.Identity()}}
	case hasComponents:
		result.AliasTable[cur.id] = cur.components
	}
}

// validateComponents enforces spec.md §4.4's deferred component
// resolution check: every component reference recorded anywhere must
// name an object present in either table by the time the document ends.
func (rd *Reader) validateComponents(result *ParseResult) error {
	for id, components := range result.AliasTable {
		for _, c := range components {
			if id == c.ObjectID && len(components) == 1 {
				continue // self-alias, trivially fine
			}
			_, inObjects := result.ObjectTable[c.ObjectID]
			_, inAliases := result.AliasTable[c.ObjectID]
			if !inObjects && !inAliases {
				return diag.New(diag.UnknownComponent, fmt.Sprintf("objectid %d", c.ObjectID),
					fmt.Errorf("component references undefined object"))
			}
		}
	}
	for _, item := range result.BuildItems {
		_, inAliases := result.AliasTable[item.ObjectID]
		if !inAliases {
			return diag.New(diag.UnknownBuildItem, fmt.Sprintf("objectid %d", item.ObjectID),
				fmt.Errorf("build item references undefined object"))
		}
	}
	return nil
}

func parseVersionText(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
