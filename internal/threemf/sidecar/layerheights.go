// Package sidecar implements the four Metadata/*.txt and *.config
// companion files a 3MF project carries alongside the geometry document
// (spec.md §4.7/§4.10): layer-heights profiles, SLA support points,
// layer-config ranges, and print config.
package sidecar

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kjplatz/threemf/internal/threemf/diag"
)

// LayerHeightProfiles maps a 1-based import-order object index to its
// flattened (z, height, z, height, ...) profile.
type LayerHeightProfiles map[int][]float64

// ParseLayerHeights reads Metadata/Slic3r_PE_layer_heights_profile.txt
// (spec.md §4.7). Malformed or duplicate records are reported to sink
// and skipped; only a genuinely unreadable stream aborts the call.
func ParseLayerHeights(r io.Reader, sink *diag.Sink) (LayerHeightProfiles, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, diag.New(diag.MemberRead, "Metadata/Slic3r_PE_layer_heights_profile.txt", err)
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	data = bytes.TrimSuffix(data, []byte("\r"))

	profiles := LayerHeightProfiles{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, values, ok := parseLayerHeightLine(line)
		if !ok {
			sink.Report(diag.BadSidecarRecord, line, fmt.Errorf("malformed layer-heights record"))
			continue
		}
		if _, dup := profiles[id]; dup {
			sink.Report(diag.DuplicateSidecarKey, line, fmt.Errorf("duplicate object id %d, keeping latest", id))
		}
		profiles[id] = values
	}
	return profiles, nil
}

func parseLayerHeightLine(line string) (int, []float64, bool) {
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
	tokens := strings.Split(line[bar+1:], ";")
	if len(tokens) < 4 || len(tokens)%2 != 0 {
		return 0, nil, false
	}
	values := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, nil, false
		}
		values = append(values, v)
	}
	return id, values, true
}

// WriteLayerHeights writes the profiles whose values satisfy the
// even-count ≥ 4 invariant; objects with no usable profile are skipped
// (spec.md §4.10). ids controls emission order.
func WriteLayerHeights(w io.Writer, profiles LayerHeightProfiles, ids []int) error {
	var buf bytes.Buffer
	for _, id := range ids {
		values := profiles[id]
		if len(values) < 4 || len(values)%2 != 0 {
			continue
		}
		fmt.Fprintf(&buf, "object_id=%d|", id)
		for i, v := range values {
			if i > 0 {
				buf.WriteByte(';')
			}
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		buf.WriteByte('\n')
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return diag.New(diag.MemberWrite, "Metadata/Slic3r_PE_layer_heights_profile.txt", err)
	}
	return nil
}
