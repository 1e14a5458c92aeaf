package sidecar

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kjplatz/threemf/internal/threemf/diag"
	"github.com/kjplatz/threemf/model"
)

const slaVersionHeaderPrefix = "support_points_format_version="

// islandEpsilon is the tolerance the version-1 island flag is compared
// against (spec.md §9 open question: the flag is stored as a float that
// should equal 1.0 for a new island).
const islandEpsilon = 1e-4

// SupportPoints maps a 1-based import-order object index to its parsed
// support points.
type SupportPoints map[int][]model.SupportPoint

// ParseSLASupportPoints reads Metadata/Slic3r_PE_sla_support_points.txt
// (spec.md §4.7). An optional first line `support_points_format_version=N`
// sets the record layout for the rest of the file; absent, version
// defaults to 0. Versions other than 0/1 are reported and ignored.
func ParseSLASupportPoints(r io.Reader, sink *diag.Sink) (SupportPoints, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, diag.New(diag.MemberRead, "Metadata/Slic3r_PE_sla_support_points.txt", err)
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	data = bytes.TrimSuffix(data, []byte("\r"))

	lines := strings.Split(string(data), "\n")
	version := 0
	if len(lines) > 0 && strings.HasPrefix(lines[0], slaVersionHeaderPrefix) {
		v, err := strconv.Atoi(strings.TrimPrefix(lines[0], slaVersionHeaderPrefix))
		if err == nil {
			version = v
		}
		lines = lines[1:]
	}

	points := SupportPoints{}
	if version != 0 && version != 1 {
		if sink != nil {
			sink.Report(diag.BadSidecarRecord, "support_points_format_version", fmt.Errorf("unsupported SLA support point version %d, file ignored", version))
		}
		return points, nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		id, tokens, ok := splitKeyedLine(line)
		if !ok {
			sink.Report(diag.BadSidecarRecord, line, fmt.Errorf("malformed SLA support point record"))
			continue
		}
		if _, dup := points[id]; dup {
			sink.Report(diag.DuplicateSidecarKey, line, fmt.Errorf("duplicate object id %d, keeping latest", id))
		}
		group := 3
		if version == 1 {
			group = 5
		}
		var parsed []model.SupportPoint
		values := make([]float64, 0, len(tokens))
		numeric := true
		for _, tok := range tokens {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				numeric = false
				break
			}
			values = append(values, v)
		}
		if !numeric {
			sink.Report(diag.BadSidecarRecord, line, fmt.Errorf("non-numeric SLA support point token"))
			continue
		}
		for i := 0; i+group <= len(values); i += group {
			if version == 0 {
				parsed = append(parsed, model.SupportPoint{
					X: values[i], Y: values[i+1], Z: values[i+2],
					HeadRadius:  0.4,
					IsNewIsland: false,
				})
			} else {
				parsed = append(parsed, model.SupportPoint{
					X: values[i], Y: values[i+1], Z: values[i+2],
					HeadRadius:  values[i+3],
					IsNewIsland: math.Abs(values[i+4]-1) < islandEpsilon,
				})
			}
		}
		points[id] = parsed
	}
	return points, nil
}

func splitKeyedLine(line string) (int, []string, bool) {
	bar := strings.IndexByte(line, '|')
	if bar < 0 {
		return 0, nil, false
	}
	key := line[:bar]
	eq := strings.IndexByte(key, '=')
	if eq < 0 {
		return 0, nil, false
	}
	id, err := strconv.Atoi(key[eq+1:])
	if err != nil {
		return 0, nil, false
	}
	return id, strings.Fields(line[bar+1:]), true
}

// WriteSLASupportPoints writes version-1 records for every object with
// at least one support point (spec.md §4.10 applied by analogy to the
// layer-heights writer: objects without points are skipped).
func WriteSLASupportPoints(w io.Writer, points SupportPoints, ids []int) error {
	var buf bytes.Buffer
	buf.WriteString(slaVersionHeaderPrefix)
	buf.WriteString("1\n")

	for _, id := range ids {
		pts := points[id]
		if len(pts) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "object_id=%d|", id)
		for i, p := range pts {
			if i > 0 {
				buf.WriteByte(' ')
			}
			island := 0.0
			if p.IsNewIsland {
				island = 1.0
			}
			fmt.Fprintf(&buf, "%s %s %s %s %s",
				formatSLAFloat(p.X), formatSLAFloat(p.Y), formatSLAFloat(p.Z),
				formatSLAFloat(p.HeadRadius), formatSLAFloat(island))
		}
		buf.WriteByte('\n')
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return diag.New(diag.MemberWrite, "Metadata/Slic3r_PE_sla_support_points.txt", err)
	}
	return nil
}

func formatSLAFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
