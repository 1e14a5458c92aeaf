package modelconfig

import (
	"io"
	"strconv"

	"github.com/beevik/etree"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/xform"
	"github.com/kjplatz/threemf/internal/threemf/xmlnames"
	"github.com/kjplatz/threemf/model"
)

// ObjectWrite is what the geometry writer (geomxml.WriteGeometry) and
// the volume materializer's inverse know about one object, enough to
// reconstruct its model-config entry.
type ObjectWrite struct {
	ThreeMFID    int
	Object       *model.ModelObject
	VolumeRanges []VolumeRangeWrite
}

// VolumeRangeWrite pairs a volume with its triangle range in the
// object's combined mesh.
type VolumeRangeWrite struct {
	Volume          *model.ModelVolume
	FirstTriangleID int
	LastTriangleID  int
}

// Write renders Metadata/Slic3r_PE_model.config for the given objects
// (spec.md §4.10): per-object metadata, per-volume `firstid`/`lastid`
// ranges, and a `matrix` metadata entry carrying each volume's local
// transform in 16-element row-major form.
func Write(w io.Writer, objects []ObjectWrite) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	configEl := doc.CreateElement(xmlnames.Config)

	for _, ow := range objects {
		objEl := configEl.CreateElement(xmlnames.Object)
		objEl.CreateAttr(xmlnames.AttrID, strconv.Itoa(ow.ThreeMFID))

		if ow.Object.Name != "" {
			writeMetadata(objEl, xmlnames.MetadataTypeObject, xmlnames.VolumeNameKey, ow.Object.Name)
		}
		for _, kv := range ow.Object.Metadata {
			writeMetadata(objEl, xmlnames.MetadataTypeObject, kv.Key, kv.Value)
		}

		for _, vr := range ow.VolumeRanges {
			volEl := objEl.CreateElement(xmlnames.Volume)
			volEl.CreateAttr(xmlnames.AttrFirstID, strconv.Itoa(vr.FirstTriangleID))
			volEl.CreateAttr(xmlnames.AttrLastID, strconv.Itoa(vr.LastTriangleID))
			writeVolumeMetadata(volEl, vr.Volume)
		}
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return diag.New(diag.MemberWrite, "Metadata/Slic3r_PE_model.config", err)
	}
	return nil
}

func writeVolumeMetadata(volEl *etree.Element, vol *model.ModelVolume) {
	if vol.Name != "" {
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeNameKey, vol.Name)
	}
	if vol.Type != model.VolumeModelPart {
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeTypeKey, vol.Type.String())
	}
	if vol.Transform != xform.Identity() {
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeMatrixKey, matrixText(vol.Transform))
	}
	if vol.Source.InputFile != "" {
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeSourceFileKey, vol.Source.InputFile)
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeSourceObjectKey, strconv.Itoa(vol.Source.ObjectID))
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeSourceVolumeKey, strconv.Itoa(vol.Source.VolumeID))
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeSourceOffsetX, formatOffset(vol.Source.OffsetX))
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeSourceOffsetY, formatOffset(vol.Source.OffsetY))
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, xmlnames.VolumeSourceOffsetZ, formatOffset(vol.Source.OffsetZ))
	}
	for _, kv := range vol.Config {
		writeMetadata(volEl, xmlnames.MetadataTypeVolume, kv.Key, kv.Value)
	}
}

func writeMetadata(parent *etree.Element, kind, key, value string) {
	metaEl := parent.CreateElement(xmlnames.Metadata)
	metaEl.CreateAttr(xmlnames.AttrType, kind)
	metaEl.CreateAttr(xmlnames.AttrKey, key)
	metaEl.CreateAttr(xmlnames.AttrValue, value)
}

// matrixText renders a volume transform as the 16-element row-major
// form the Slic3rPE model-config file uses, distinct from the geometry
// document's 12-element column-major `transform` attribute encoding.
func matrixText(m xform.Mat4) string {
	var sb []byte
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if r != 0 || c != 0 {
				sb = append(sb, ' ')
			}
			sb = strconv.AppendFloat(sb, float64(m[r][c]), 'g', -1, 32)
		}
	}
	return string(sb)
}

func formatOffset(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
