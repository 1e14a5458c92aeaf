package diag

import (
	"errors"
	"fmt"
	"testing"
)

func TestFatalClassification(t *testing.T) {
	fatal := []Kind{ArchiveOpen, XMLSyntax, DuplicateObjectID, VersionError, BadTriangleRange}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%v should be fatal", k)
		}
	}
	nonFatal := []Kind{BadSidecarRecord, DuplicateSidecarKey, BadMetadataType}
	for _, k := range nonFatal {
		if k.Fatal() {
			t.Errorf("%v should be non-fatal", k)
		}
	}
}

func TestErrorIsMatchesByKindOnly(t *testing.T) {
	err := New(UnknownComponent, "objectid 7", fmt.Errorf("boom"))
	if !errors.Is(err, New(UnknownComponent, "different context", errors.New("other"))) {
		t.Error("errors.Is should match on Kind alone")
	}
	if errors.Is(err, New(UnknownBuildItem, "objectid 7", fmt.Errorf("boom"))) {
		t.Error("errors.Is should not match a different Kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(BadAttribute, "ctx", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the wrapped cause to errors.Is")
	}
}

func TestSinkAccumulatesInOrder(t *testing.T) {
	var sink Sink
	if !sink.Empty() {
		t.Fatal("new sink should be empty")
	}
	sink.Report(BadSidecarRecord, "rec1", errors.New("one"))
	sink.Report(DuplicateSidecarKey, "rec2", errors.New("two"))

	findings := sink.Findings()
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(findings))
	}
	if findings[0].Kind != BadSidecarRecord || findings[1].Kind != DuplicateSidecarKey {
		t.Error("findings out of order")
	}
	if sink.Empty() {
		t.Error("sink with findings should not be Empty")
	}
}
