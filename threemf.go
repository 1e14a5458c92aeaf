// Package threemf reads and writes the 3MF-based project container this
// module targets: the 3D Core geometry document plus the
// PrusaSlicer-family sidecar files that carry per-object layer heights,
// layer-config ranges, SLA support points, print config, and per-volume
// metadata (spec.md §1-§6).
package threemf

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/kjplatz/threemf/internal/threemf/archive"
	"github.com/kjplatz/threemf/internal/threemf/buildgraph"
	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/internal/threemf/geomxml"
	"github.com/kjplatz/threemf/internal/threemf/modelconfig"
	"github.com/kjplatz/threemf/internal/threemf/sidecar"
	"github.com/kjplatz/threemf/internal/threemf/volume"
	"github.com/kjplatz/threemf/model"
)

// CurrentWriterVersion is the Version this module stamps onto every
// file it writes (spec.md §6): per-volume `matrix` metadata, meshes
// stored in local frame.
const CurrentWriterVersion = 2

// Archive member names (spec.md §6).
const (
	modelFile             = "3D/3dmodel.model"
	contentTypesFile      = "[Content_Types].xml"
	relsFile              = "_rels/.rels"
	thumbnailFile         = "Metadata/thumbnail.png"
	printConfigFile       = "Metadata/Slic3r_PE.config"
	modelConfigFile       = "Metadata/Slic3r_PE_model.config"
	layerHeightsFile      = "Metadata/Slic3r_PE_layer_heights_profile.txt"
	layerConfigRangesFile = "Metadata/Prusa_Slicer_layer_config_ranges.xml"
	slaSupportPointsFile  = "Metadata/Slic3r_PE_sla_support_points.txt"
)

// Re-export the diagnostics types so callers don't need to import the
// internal package directly.
type (
	Error = diag.Error
	Kind  = diag.Kind
	Sink  = diag.Sink
)

// LoadOptions configures Load.
type LoadOptions struct {
	// CheckVersion, when true, rejects a file whose writer Version
	// exceeds WriterVersion with a fatal VersionError (spec.md §6).
	CheckVersion bool
	WriterVersion int

	// Repair is the mesh-repair collaborator (out of scope, spec.md §1);
	// only its Repair method is called, no convex hull is computed.
	// Defaults to volume.NopRepairAndHull{} when nil.
	Repair volume.RepairAndHull

	// PrintConfig receives the parsed print-config key/value pairs.
	// Defaults to a fresh sidecar.MapPrintConfigSink when nil.
	PrintConfig sidecar.PrintConfigSink
}

// StoreOptions configures Store.
type StoreOptions struct {
	WriterVersion    int
	CompressionLevel int // passed to archive.OpenWrite; 0 selects deflate level 6
	PrintConfig      map[string]string
}

// Load opens the 3MF container at path and returns the populated model
// plus any non-fatal diagnostics accumulated along the way. Fatal errors
// abort the call and return a *diag.Error (spec.md §7).
func Load(path string, opt LoadOptions) (*model.Model, *Sink, error) {
	sink := &diag.Sink{}
	repair := opt.Repair
	if repair == nil {
		repair = volume.NopRepairAndHull{}
	}
	printCfg := opt.PrintConfig
	if printCfg == nil {
		printCfg = sidecar.NewMapPrintConfigSink()
	}
	if opt.WriterVersion == 0 {
		opt.WriterVersion = CurrentWriterVersion
	}

	r, err := archive.OpenRead(path)
	if err != nil {
		return nil, sink, err
	}
	defer r.Close()

	if !r.Has(modelFile) {
		return nil, sink, diag.New(diag.ArchiveOpen, modelFile, fmt.Errorf("required member missing"))
	}

	geomRC, err := r.Open(modelFile)
	if err != nil {
		return nil, sink, err
	}
	defer geomRC.Close()

	reader := geomxml.NewReader(geomxml.Options{
		ArchiveStem:   archiveStem(path),
		CheckVersion:  opt.CheckVersion,
		WriterVersion: opt.WriterVersion,
	}, sink)
	parsed, err := reader.Parse(geomRC)
	if err != nil {
		return nil, sink, err
	}

	m := &model.Model{}
	objects := make([]*model.ModelObject, len(parsed.Imported))
	for i, imp := range parsed.Imported {
		objects[i] = m.AddObject(imp.Name)
	}

	if err := buildgraph.ResolveAll(parsed, objects, sink); err != nil {
		return nil, sink, err
	}

	var cfgDoc *modelconfig.Document
	if r.Has(modelConfigFile) {
		cfgRC, err := r.Open(modelConfigFile)
		if err != nil {
			return nil, sink, err
		}
		cfgDoc, err = modelconfig.Parse(cfgRC, sink)
		cfgRC.Close()
		if err != nil {
			return nil, sink, err
		}
	}

	for i, imp := range parsed.Imported {
		var entry *modelconfig.ObjectMetadata
		if cfgDoc != nil {
			entry = cfgDoc.ByObjectID(imp.ThreeMFID)
		}
		volumes, err := volume.Materialize(imp.Geometry, entry, parsed.Version, repair, sink)
		if err != nil {
			return nil, sink, err
		}
		objects[i].Volumes = volumes
		if entry != nil {
			for _, e := range entry.Entries {
				objects[i].Metadata = append(objects[i].Metadata, model.KeyValue{Key: e.Key, Value: e.Value})
			}
		}
	}

	// Drop objects that never acquired an instance (spec.md §4.4 "model close").
	kept := objects[:0]
	for _, obj := range objects {
		if len(obj.Instances) > 0 {
			kept = append(kept, obj)
		}
	}
	m.Objects = kept

	if err := loadSidecars(r, m, sink); err != nil {
		return nil, sink, err
	}
	if r.Has(printConfigFile) {
		rc, err := r.Open(printConfigFile)
		if err != nil {
			return nil, sink, err
		}
		err = sidecar.ParsePrintConfig(rc, printCfg)
		rc.Close()
		if err != nil {
			return nil, sink, err
		}
	}

	return m, sink, nil
}

// loadSidecars applies the second archive pass (spec.md §5): layer
// heights, SLA support points, and layer-config ranges, keyed by each
// object's 1-based position in m.Objects, i.e. after Load has dropped
// the objects that acquired no instance (the same numbering Store
// writes).
func loadSidecars(r *archive.Reader, m *model.Model, sink *diag.Sink) error {
	var heights sidecar.LayerHeightProfiles
	if r.Has(layerHeightsFile) {
		rc, err := r.Open(layerHeightsFile)
		if err != nil {
			return err
		}
		heights, err = sidecar.ParseLayerHeights(rc, sink)
		rc.Close()
		if err != nil {
			return err
		}
	}

	var points sidecar.SupportPoints
	if r.Has(slaSupportPointsFile) {
		rc, err := r.Open(slaSupportPointsFile)
		if err != nil {
			return err
		}
		points, err = sidecar.ParseSLASupportPoints(rc, sink)
		rc.Close()
		if err != nil {
			return err
		}
	}

	var ranges sidecar.LayerRanges
	if r.Has(layerConfigRangesFile) {
		rc, err := r.Open(layerConfigRangesFile)
		if err != nil {
			return err
		}
		ranges, err = sidecar.ParseLayerRanges(rc)
		rc.Close()
		if err != nil {
			return err
		}
	}

	for i, obj := range m.Objects {
		key := i + 1
		if heights != nil {
			obj.LayerHeightProfile = heights[key]
		}
		if points != nil {
			obj.SupportPoints = points[key]
		}
		if ranges != nil {
			obj.LayerConfigRanges = ranges[key]
		}
	}
	return nil
}

// Store writes m out as a new 3MF container at path.
func Store(path string, m *model.Model, opt StoreOptions) error {
	if opt.WriterVersion == 0 {
		opt.WriterVersion = CurrentWriterVersion
	}

	w, err := archive.OpenWrite(path, compressionLevel(opt.CompressionLevel))
	if err != nil {
		return err
	}

	if err := storeInner(w, m, opt); err != nil {
		w.Abort()
		return err
	}
	if err := w.Finalize(); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}

func storeInner(w *archive.Writer, m *model.Model, opt StoreOptions) error {
	var geomBuf bytes.Buffer
	writeResult, err := geomxml.WriteGeometry(&geomBuf, m, geomxml.WriterOptions{WriterVersion: opt.WriterVersion})
	if err != nil {
		return err
	}
	if err := w.Add(modelFile, geomBuf.Bytes(), archive.Deflate); err != nil {
		return err
	}

	if err := w.Add(contentTypesFile, []byte(contentTypesXML), archive.Deflate); err != nil {
		return err
	}
	if err := w.Add(relsFile, []byte(relsXML), archive.Deflate); err != nil {
		return err
	}

	cfgObjects := make([]modelconfig.ObjectWrite, 0, len(writeResult.Objects))
	heights := sidecar.LayerHeightProfiles{}
	points := sidecar.SupportPoints{}
	ranges := sidecar.LayerRanges{}
	ids := make([]int, 0, len(writeResult.Objects))

	for i, info := range writeResult.Objects {
		key := i + 1
		ids = append(ids, key)
		heights[key] = info.Object.LayerHeightProfile
		points[key] = info.Object.SupportPoints
		ranges[key] = info.Object.LayerConfigRanges

		volRanges := make([]modelconfig.VolumeRangeWrite, len(info.VolumeRanges))
		for j, vr := range info.VolumeRanges {
			volRanges[j] = modelconfig.VolumeRangeWrite{
				Volume:          info.Object.Volumes[j],
				FirstTriangleID: vr.FirstTriangleID,
				LastTriangleID:  vr.LastTriangleID,
			}
		}
		cfgObjects = append(cfgObjects, modelconfig.ObjectWrite{
			ThreeMFID:    info.CanonicalID,
			Object:       info.Object,
			VolumeRanges: volRanges,
		})
	}

	var cfgBuf bytes.Buffer
	if err := modelconfig.Write(&cfgBuf, cfgObjects); err != nil {
		return err
	}
	if err := w.Add(modelConfigFile, cfgBuf.Bytes(), archive.Deflate); err != nil {
		return err
	}

	var heightsBuf bytes.Buffer
	if err := sidecar.WriteLayerHeights(&heightsBuf, heights, ids); err != nil {
		return err
	}
	if heightsBuf.Len() > 0 {
		if err := w.Add(layerHeightsFile, heightsBuf.Bytes(), archive.Deflate); err != nil {
			return err
		}
	}

	var pointsBuf bytes.Buffer
	if err := sidecar.WriteSLASupportPoints(&pointsBuf, points, ids); err != nil {
		return err
	}
	if anySupportPoints(points) {
		if err := w.Add(slaSupportPointsFile, pointsBuf.Bytes(), archive.Deflate); err != nil {
			return err
		}
	}

	var rangesBuf bytes.Buffer
	if err := sidecar.WriteLayerRanges(&rangesBuf, ranges, ids); err != nil {
		return err
	}
	if anyRanges(ranges) {
		if err := w.Add(layerConfigRangesFile, rangesBuf.Bytes(), archive.Deflate); err != nil {
			return err
		}
	}

	if len(opt.PrintConfig) > 0 {
		var cfgOut bytes.Buffer
		if err := sidecar.WritePrintConfig(&cfgOut, opt.PrintConfig); err != nil {
			return err
		}
		if err := w.Add(printConfigFile, cfgOut.Bytes(), archive.Deflate); err != nil {
			return err
		}
	}

	return nil
}

func anySupportPoints(points sidecar.SupportPoints) bool {
	for _, p := range points {
		if len(p) > 0 {
			return true
		}
	}
	return false
}

func anyRanges(ranges sidecar.LayerRanges) bool {
	for _, r := range ranges {
		if len(r) > 0 {
			return true
		}
	}
	return false
}

func compressionLevel(level int) int {
	if level == 0 {
		return 6
	}
	return level
}

func archiveStem(p string) string {
	base := path.Base(filepathToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>
`

const relsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Target="/3D/3dmodel.model" Id="rel0" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>
</Relationships>
`
