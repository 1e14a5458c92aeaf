package sidecar

import (
	"strings"
	"testing"
)

func TestParsePrintConfigReadsCommentedKeyValues(t *testing.T) {
	data := "; layer_height = 0.2\n; not a config line\nfill_density = 20\n; fill_density = 20%\n"
	sink := NewMapPrintConfigSink()
	if err := ParsePrintConfig(strings.NewReader(data), sink); err != nil {
		t.Fatalf("ParsePrintConfig failed: %v", err)
	}
	if sink.Values["layer_height"] != "0.2" {
		t.Errorf("layer_height = %q, want 0.2", sink.Values["layer_height"])
	}
	if sink.Values["fill_density"] != "20%" {
		t.Errorf("fill_density = %q, want 20%%", sink.Values["fill_density"])
	}
	if len(sink.Keys()) != 2 {
		t.Errorf("got %d keys, want 2 (non-comment line ignored)", len(sink.Keys()))
	}
}

func TestWritePrintConfigEnforcesDenylist(t *testing.T) {
	values := map[string]string{
		"layer_height":         "0.2",
		"compatible_printers":  "Printer A",
	}
	var buf strings.Builder
	if err := WritePrintConfig(&buf, values); err != nil {
		t.Fatalf("WritePrintConfig failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "compatible_printers") {
		t.Errorf("compatible_printers should never be emitted, got %q", out)
	}
	if !strings.Contains(out, "; layer_height = 0.2\n") {
		t.Errorf("layer_height line missing, got %q", out)
	}
}

func TestWritePrintConfigSortsKeys(t *testing.T) {
	values := map[string]string{"zeta": "1", "alpha": "2"}
	var buf strings.Builder
	if err := WritePrintConfig(&buf, values); err != nil {
		t.Fatalf("WritePrintConfig failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "alpha") || !strings.Contains(lines[1], "zeta") {
		t.Errorf("keys not sorted: %v", lines)
	}
}
