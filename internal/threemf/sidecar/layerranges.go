package sidecar

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/beevik/etree"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/xmlnames"
	"github.com/kjplatz/threemf/model"
)

// LayerRanges maps a 1-based import-order object index to its ordered
// layer-config ranges.
type LayerRanges map[int][]model.LayerRange

// ParseLayerRanges reads Metadata/Prusa_Slicer_layer_config_ranges.xml
// (spec.md §4.7): an `<objects>` root of `<object id>` elements, each
// holding `<range min_z max_z>` elements with nested `<option opt_key>`
// entries.
func ParseLayerRanges(r io.Reader) (LayerRanges, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, diag.New(diag.XMLSyntax, "Metadata/Prusa_Slicer_layer_config_ranges.xml", err)
	}

	root := doc.SelectElement("objects")
	ranges := LayerRanges{}
	if root == nil {
		return ranges, nil
	}

	for _, objEl := range root.SelectElements("object") {
		id, err := strconv.Atoi(objEl.SelectAttrValue(xmlnames.AttrID, ""))
		if err != nil {
			return nil, diag.New(diag.BadAttribute, "object", fmt.Errorf("missing or non-numeric id"))
		}
		if _, dup := ranges[id]; dup {
			return nil, diag.New(diag.DuplicateObjectID, fmt.Sprintf("object id %d", id), fmt.Errorf("duplicate object in layer config ranges"))
		}

		var rangesForObject []model.LayerRange
		for _, rangeEl := range objEl.SelectElements("range") {
			minZ, _ := strconv.ParseFloat(rangeEl.SelectAttrValue(xmlnames.AttrMinZ, "0"), 64)
			maxZ, _ := strconv.ParseFloat(rangeEl.SelectAttrValue(xmlnames.AttrMaxZ, "0"), 64)
			opts := map[string]string{}
			for _, optEl := range rangeEl.SelectElements("option") {
				key := optEl.SelectAttrValue(xmlnames.AttrOptKey, "")
				opts[key] = optEl.Text()
			}
			rangesForObject = append(rangesForObject, model.LayerRange{MinZ: minZ, MaxZ: maxZ, Options: opts})
		}
		ranges[id] = rangesForObject
	}
	return ranges, nil
}

// WriteLayerRanges writes the layer-config ranges document, one
// `<object>` per id in ids that has at least one range. The result is
// indented for readability (spec.md §4.10's "post-processed with
// newline insertions" — etree's Indent performs the same cosmetic pass
// a hand-rolled tree-builder-plus-newline-pass would).
func WriteLayerRanges(w io.Writer, ranges LayerRanges, ids []int) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("objects")

	for _, id := range ids {
		rangesForObject := ranges[id]
		if len(rangesForObject) == 0 {
			continue
		}
		objEl := root.CreateElement("object")
		objEl.CreateAttr(xmlnames.AttrID, strconv.Itoa(id))

		for _, rng := range rangesForObject {
			rangeEl := objEl.CreateElement("range")
			rangeEl.CreateAttr(xmlnames.AttrMinZ, strconv.FormatFloat(rng.MinZ, 'g', -1, 64))
			rangeEl.CreateAttr(xmlnames.AttrMaxZ, strconv.FormatFloat(rng.MaxZ, 'g', -1, 64))
			keys := make([]string, 0, len(rng.Options))
			for key := range rng.Options {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				optEl := rangeEl.CreateElement("option")
				optEl.CreateAttr(xmlnames.AttrOptKey, key)
				optEl.SetText(rng.Options[key])
			}
		}
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return diag.New(diag.MemberWrite, "Metadata/Prusa_Slicer_layer_config_ranges.xml", err)
	}
	return nil
}
