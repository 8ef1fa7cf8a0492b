// Package ast defines the typed surface representation of an ASDL document
// (C3): the AST the external YAML parser hands to the compiler, plus the
// schema validation that runs immediately on handoff. See spec §3.2, §4.3.
package ast

import "github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"

// InstanceKind discriminates the two authored forms of an instance value.
type InstanceKind int

const (
	// InlineInstance is the compact string-expression form: a reference
	// with optional parenthesized parameter text, e.g. `nfet(L=1u W=1u)`.
	InlineInstance InstanceKind = iota
	// StructuredInstance is the `{ref, parameters}` mapping form.
	StructuredInstance
)

// InstanceDecl is one authored `instances` entry: either an inline string
// expression or a structured `{ref, parameters}` form. Both forms reduce to
// the same two raw-text fields; the pattern/parameter tokenizer parses them
// uniformly downstream in the PatternedGraph builder (C5).
type InstanceDecl struct {
	Kind InstanceKind
	// RefText is the raw reference naming the instanced module or device
	// symbol, e.g. "nfet" or "ns.cell@view"; it is not patterned (the
	// patterned instance name is the `instances` map key).
	RefText string
	// ParamsText is the raw "key=value key2='v v'" parameter text, parsed by
	// the shared quote-aware tokenizer in C5.
	ParamsText string
	// ParamsAliasUsed is set when the structured form used the rejected
	// `params` key instead of the canonical `parameters` key (AST-016).
	ParamsAliasUsed bool
	// PinBindings holds the structured form's inline pin-to-net bindings:
	// any mapping key besides `ref`/`parameters`/`params` is read as a pin
	// name, its scalar value as the (possibly `$`-prefixed, possibly
	// patterned) net it connects to. Folded into the owning net's endpoint
	// list by the PatternedGraph builder (§4.5 point 3). Nil on the inline
	// string form and on structured forms that declare none.
	PinBindings *OrderedMap[string]
	Span        sourcemap.Span
}

// NetDecl is one authored `nets` entry: a pattern-expression key naming the
// net, and its endpoint list held as a list-of-lists to preserve authored
// schematic grouping (spec §3.2, SchematicHints).
type NetDecl struct {
	NameText string
	// Endpoints preserves the authored list-of-lists shape; flattening for
	// binding purposes happens in the PatternedGraph builder.
	Endpoints [][]string
	Span      sourcemap.Span
}

// InstanceDefaultEntry is one entry of a module's `instance_defaults`
// binding map, applied to every instance in the module. A trailing `!` on
// the authored value suppresses the warning normally raised when a default
// is overridden by an individual instance.
type InstanceDefaultEntry struct {
	ValueText string
	Suppress  bool
	Span      sourcemap.Span
}

// ModuleDecl is one authored `modules` entry.
type ModuleDecl struct {
	Symbol ModuleSymbol
	// Ports is the ordered list of literal `$`-prefixed net names declared
	// directly (as opposed to promoted from instance_defaults or inline pin
	// bindings).
	Ports []string
	// Parameters is the module-level `{var}` substitution table, ordered.
	Parameters *OrderedMap[string]
	// Variables is propagated unchanged to every realization.
	Variables *OrderedMap[string]
	Nets       *OrderedMap[NetDecl]
	Instances  *OrderedMap[InstanceDecl]
	// Patterns holds named pattern macros (`<@name>`), keyed by name.
	Patterns *OrderedMap[string]
	// InstanceDefaults is nil when the module declares none.
	InstanceDefaults *OrderedMap[InstanceDefaultEntry]
	Docstring        string
	Span             sourcemap.Span
}

// DeviceDecl is one authored `devices` entry: primitive devices with
// per-backend templates, resolved by instance refs the same way modules
// are.
type DeviceDecl struct {
	Symbol string
	Ports  []string
	// Parameters holds default parameter values, ordered.
	Parameters *OrderedMap[string]
	// Backends maps backend name to the device's per-backend instance
	// template text, as authored (device-scoped override of the backend
	// config's generic instance_template for this device symbol).
	Backends  *OrderedMap[string]
	Docstring string
	Span      sourcemap.Span
}

// Document is an AsdlDocument: the ordered bag of imports/modules/devices
// parsed from one ASDL source file.
type Document struct {
	// Imports maps namespace to the authored (not yet resolved) path text.
	Imports *OrderedMap[string]
	// Modules maps module-symbol text ("cell" or "cell@view") to its
	// declaration.
	Modules *OrderedMap[ModuleDecl]
	Devices *OrderedMap[DeviceDecl]
	// Top optionally names the entry module for this document.
	Top string

	FileID string
}

// NewDocument constructs an empty Document ready for population by the
// external YAML parser.
func NewDocument(fileID string) *Document {
	return &Document{
		Imports: NewOrderedMap[string](),
		Modules: NewOrderedMap[ModuleDecl](),
		Devices: NewOrderedMap[DeviceDecl](),
		FileID:  fileID,
	}
}
