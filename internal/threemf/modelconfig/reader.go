package modelconfig

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/kjplatz/threemf/internal/threemf/attrs"
	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/xmlnames"
)

// Parse streams Metadata/Slic3r_PE_model.config (spec.md §4.6): a
// `config` root holding `object` elements, each with `volume` range
// markers and `metadata type=object|volume key value` entries. An
// unrecognized metadata type is non-fatal: the entry is skipped and
// reported to sink (spec.md §7).
func Parse(r io.Reader, sink *diag.Sink) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := &Document{}

	var curObject *ObjectMetadata
	var curVolume *VolumeMetadata
	seenObjectIDs := map[int]bool{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, diag.New(diag.XMLSyntax, "Metadata/Slic3r_PE_model.config", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case xmlnames.Object:
				id := attrs.Int(t.Attr, xmlnames.AttrID)
				if seenObjectIDs[id] {
					return nil, diag.New(diag.DuplicateObjectID, fmt.Sprintf("object id %d", id),
						fmt.Errorf("duplicate object in model-config"))
				}
				seenObjectIDs[id] = true
				curObject = &ObjectMetadata{ObjectID: id}
				curVolume = nil

			case xmlnames.Volume:
				if curObject == nil {
					continue
				}
				vol := VolumeMetadata{
					FirstTriangleID: attrs.Int(t.Attr, xmlnames.AttrFirstID),
					LastTriangleID:  attrs.Int(t.Attr, xmlnames.AttrLastID),
				}
				curObject.Volumes = append(curObject.Volumes, vol)
				curVolume = &curObject.Volumes[len(curObject.Volumes)-1]

			case xmlnames.Metadata:
				kind := attrs.String(t.Attr, xmlnames.AttrType)
				key := attrs.String(t.Attr, xmlnames.AttrKey)
				value := attrs.String(t.Attr, xmlnames.AttrValue)
				entry := Entry{Key: key, Value: value}

				switch kind {
				case xmlnames.MetadataTypeObject:
					if curObject != nil {
						curObject.Entries = append(curObject.Entries, entry)
					}
				case xmlnames.MetadataTypeVolume:
					if curVolume != nil {
						curVolume.Entries = append(curVolume.Entries, entry)
					}
				default:
					if sink != nil {
						sink.Report(diag.BadMetadataType, fmt.Sprintf("object %d", curObjectID(curObject)),
							fmt.Errorf("unknown metadata type %q, entry skipped", kind))
					}
				}
			}

		case xml.EndElement:
			if t.Name.Local == xmlnames.Object {
				if curObject != nil {
					doc.Objects = append(doc.Objects, curObject)
				}
				curObject = nil
				curVolume = nil
			}
		}
	}

	return doc, nil
}

func curObjectID(o *ObjectMetadata) int {
	if o == nil {
		return 0
	}
	return o.ObjectID
}
