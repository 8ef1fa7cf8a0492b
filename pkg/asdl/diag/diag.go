// Package diag implements the compiler's single structured-error
// representation (C1). Every stage from the surface parser through backend
// emission returns its result alongside a diag.Bag rather than raising for
// user-input errors; Go errors are reserved for collaborator-boundary
// failures (bad YAML, missing files) that never reach the diagnostic
// pipeline. See spec §3.1, §4.1 and §7.
package diag

import (
	"fmt"
	"sort"

	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// Severity classifies a Diagnostic. Only Error gates later compiler stages.
type Severity int

const (
	// Info is a purely informational note, never gates anything.
	Info Severity = iota
	// Warning is non-fatal hygiene (LINT-NNN codes); never gates a stage.
	Warning
	// Error gates every stage after the one that raised it.
	Error
)

// String renders a severity the way it appears in rendered diagnostics.
func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "info"
	}
}

// Note is one entry in a Diagnostic's ordered notes list: supplementary
// context, optionally anchored to its own span.
type Note struct {
	Span    sourcemap.Span
	Message string
}

// Diagnostic is the system's single structured-error record: (code,
// severity, primary span, message, ordered notes). Codes are namespaced per
// §6.3: PARSE-NNN, AST-NNN, IR-NNN, EMIT-NNN, LINT-NNN, VIEW-NNN.
type Diagnostic struct {
	Code     string
	Severity Severity
	Span     sourcemap.Span
	Message  string
	Notes    []Note
}

// NoSpanNote is appended in place of a fabricated location whenever a
// diagnostic's underlying entity carries no span (e.g. it originates from
// an older AST entry produced before span-tracking was wired up for that
// shape). Per §7, the compiler never invents a location.
const NoSpanNote = "<no source location available>"

// New constructs a Diagnostic with no notes.
func New(code string, severity Severity, span sourcemap.Span, message string) Diagnostic {
	return Diagnostic{Code: code, Severity: severity, Span: span, Message: message}
}

// Errorf constructs an error-severity Diagnostic with a formatted message.
func Errorf(code string, span sourcemap.Span, format string, args ...any) Diagnostic {
	return New(code, Error, span, fmt.Sprintf(format, args...))
}

// Warningf constructs a warning-severity Diagnostic with a formatted message.
func Warningf(code string, span sourcemap.Span, format string, args ...any) Diagnostic {
	return New(code, Warning, span, fmt.Sprintf(format, args...))
}

// WithNote appends a note and returns the Diagnostic for chaining.
func (d Diagnostic) WithNote(span sourcemap.Span, message string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: span, Message: message})
	return d
}

// Error implements the error interface so a Diagnostic can be wrapped into
// a Go error at collaborator boundaries (e.g. cmd/asdlc) without losing its
// code.
func (d Diagnostic) Error() string {
	if d.Span.IsZero() {
		return fmt.Sprintf("%s: %s (%s)", d.Code, d.Message, NoSpanNote)
	}
	return fmt.Sprintf("%s: %s: %s", d.Span.String(), d.Code, d.Message)
}

// Bag is the deterministic ordered collector every stage accumulates into.
// It is a value type; the zero Bag is ready to use.
type Bag struct {
	diags []Diagnostic
}

// Emit appends a diagnostic to the bag.
func (b *Bag) Emit(d Diagnostic) {
	b.diags = append(b.diags, d)
}

// Extend appends every diagnostic produced by a subordinate stage. Used
// pervasively when one component's output folds another's diag.Bag into its
// own, e.g. the pipeline collecting every stage's bag into one.
func (b *Bag) Extend(other Bag) {
	b.diags = append(b.diags, other.diags...)
}

// Errors returns only error-severity diagnostics.
func (b Bag) Errors() []Diagnostic {
	return b.filter(Error)
}

// Warnings returns only warning-severity diagnostics.
func (b Bag) Warnings() []Diagnostic {
	return b.filter(Warning)
}

func (b Bag) filter(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range b.diags {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any diagnostic in the bag is error-severity.
// This is the gate every pipeline stage checks before proceeding (§4.12,
// §7): warnings never gate, errors always do.
func (b Bag) HasErrors() bool {
	for _, d := range b.diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// All returns every diagnostic in insertion order (pre-sort).
func (b Bag) All() []Diagnostic {
	return b.diags
}

// Len reports how many diagnostics the bag holds.
func (b Bag) Len() int {
	return len(b.diags)
}

// SortStable orders diagnostics by (file, line, col, code), with diagnostics
// carrying a zero span ordered last, by code among themselves. Ties keep
// their relative order, since sort.SliceStable is used (see §4.1, §7).
func SortStable(diags []Diagnostic) []Diagnostic {
	out := make([]Diagnostic, len(diags))
	copy(out, diags)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Span.IsZero() != b.Span.IsZero() {
			// zero spans sort last
			return b.Span.IsZero()
		}
		if a.Span.IsZero() {
			return a.Code < b.Code
		}
		if a.Span.Less(b.Span) {
			return true
		}
		if b.Span.Less(a.Span) {
			return false
		}
		return a.Code < b.Code
	})
	return out
}

// Sorted returns this bag's diagnostics in canonical render order.
func (b Bag) Sorted() []Diagnostic {
	return SortStable(b.diags)
}
