package sidecar

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kjplatz/threemf/internal/threemf/diag"
)

// PrintConfigSink is the collaborator print-config lines are delegated
// to (spec.md §4.7): this module only tokenizes the file, the
// printing-config key/value registry is out of scope.
type PrintConfigSink interface {
	Set(key, value string)
}

// MapPrintConfigSink is the default PrintConfigSink: an ordered
// key/value store good enough for round-tripping when no richer
// collaborator is supplied.
type MapPrintConfigSink struct {
	Values map[string]string
	order  []string
}

func NewMapPrintConfigSink() *MapPrintConfigSink {
	return &MapPrintConfigSink{Values: map[string]string{}}
}

func (s *MapPrintConfigSink) Set(key, value string) {
	if _, exists := s.Values[key]; !exists {
		s.order = append(s.order, key)
	}
	s.Values[key] = value
}

// Keys returns the keys in the order they were first Set.
func (s *MapPrintConfigSink) Keys() []string {
	return s.order
}

// printConfigDenylist is never emitted by WritePrintConfig (spec.md §4.10).
var printConfigDenylist = map[string]bool{
	"compatible_printers": true,
}

// ParsePrintConfig reads Metadata/Slic3r_PE.config (spec.md §4.7): lines
// of the form `; key = value`. Lines that don't match are ignored.
func ParsePrintConfig(r io.Reader, sink PrintConfigSink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, ";") {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, ";"))
		eq := strings.IndexByte(body, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(body[:eq])
		value := strings.TrimSpace(body[eq+1:])
		if key == "" {
			continue
		}
		sink.Set(key, value)
	}
	if err := scanner.Err(); err != nil {
		return diag.New(diag.MemberRead, "Metadata/Slic3r_PE.config", err)
	}
	return nil
}

// WritePrintConfig emits every entry in values (in key order) as a
// `; key = value` line, except keys on the denylist.
func WritePrintConfig(w io.Writer, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		if printConfigDenylist[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "; %s = %s\n", k, values[k])
	}
	if _, err := w.Write([]byte(sb.String())); err != nil {
		return diag.New(diag.MemberWrite, "Metadata/Slic3r_PE.config", err)
	}
	return nil
}
