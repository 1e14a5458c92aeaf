// Package diag holds the error taxonomy and the explicit diagnostics sink
// that every reader/writer operation in this module accepts by reference
// instead of logging to an implicit global (spec.md §9).
package diag

import "fmt"

// Kind is the error taxonomy of spec.md §7. It is a property of the
// error, not a separate Go type, so a single diag.Error can be compared
// with errors.Is against any of these.
type Kind int

const (
	// I/O.
	ArchiveOpen Kind = iota
	MemberRead
	MemberWrite
	FinalizeFailed

	// Malformed XML/attributes.
	XMLSyntax
	BadAttribute

	// Graph invariants.
	DuplicateObjectID
	UnknownComponent
	UnknownBuildItem
	AliasDepthExceeded

	// Geometry.
	BadTriangleRange
	EmptyMesh

	// Non-fatal, sidecar-scoped.
	BadSidecarRecord
	DuplicateSidecarKey
	BadMetadataType

	// Fatal, aborts import.
	VersionError
)

var kindNames = map[Kind]string{
	ArchiveOpen:         "ArchiveOpen",
	MemberRead:          "MemberRead",
	MemberWrite:         "MemberWrite",
	FinalizeFailed:      "FinalizeFailed",
	XMLSyntax:           "XmlSyntax",
	BadAttribute:        "BadAttribute",
	DuplicateObjectID:   "DuplicateObjectId",
	UnknownComponent:    "UnknownComponent",
	UnknownBuildItem:    "UnknownBuildItem",
	AliasDepthExceeded:  "AliasDepthExceeded",
	BadTriangleRange:    "BadTriangleRange",
	EmptyMesh:           "EmptyMesh",
	BadSidecarRecord:    "BadSidecarRecord",
	DuplicateSidecarKey: "DuplicateSidecarKey",
	BadMetadataType:     "BadMetadataType",
	VersionError:        "VersionError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Fatal reports whether an error of this kind aborts the current
// load/store call (spec.md §7 policy). Every other kind is accumulated
// and reported to the diagnostic sink instead.
func (k Kind) Fatal() bool {
	switch k {
	case BadSidecarRecord, DuplicateSidecarKey, BadMetadataType:
		return false
	default:
		return true
	}
}

// Error wraps a Kind and a cause, keeping errors.Is/errors.As usable
// against both the kind and the underlying error.
type Error struct {
	Kind    Kind
	Context string // what was being processed, e.g. a member name or object id
	Err     error
}

func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

func (e *Error) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &diag.Error{Kind: X}) match by kind alone, so
// callers can branch on the taxonomy without caring about the wrapped
// cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sink accumulates non-fatal findings for the duration of a single
// Load/Store call. The zero value is ready to use.
type Sink struct {
	findings []*Error
}

// Report appends a non-fatal finding. Fatal kinds should be returned as
// errors instead of reported here; Report does not check this, callers
// are expected to follow spec.md §7's policy.
func (s *Sink) Report(kind Kind, context string, err error) {
	s.findings = append(s.findings, New(kind, context, err))
}

// Findings returns the accumulated non-fatal diagnostics in the order
// they were reported.
func (s *Sink) Findings() []*Error {
	return s.findings
}

// Empty reports whether nothing was ever reported.
func (s *Sink) Empty() bool {
	return len(s.findings) == 0
}
