package ast

import (
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/pattern"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// Validate runs schema validation on a Document immediately after handoff
// from the external YAML parser (spec §4.3). It does not resolve imports or
// instance references — that is the import resolver's (C4) and
// PatternedGraph builder's (C5) job.
func Validate(doc *Document) diag.Bag {
	var bag diag.Bag

	if doc.Modules.Len() == 0 && doc.Devices.Len() == 0 {
		bag.Emit(diag.Errorf("AST-014", sourcemap.Span{}, "document %s declares only imports: no modules or devices", doc.FileID))
	}

	for _, ns := range doc.Imports.Keys() {
		if !IsIdentifier(ns) {
			bag.Emit(diag.Errorf("AST-002", sourcemap.Span{}, "invalid import namespace %q", ns))
		}
	}

	seen := make(map[string]bool)

	for _, symText := range doc.Modules.Keys() {
		decl, _ := doc.Modules.Get(symText)

		if seen[symText] {
			bag.Emit(diag.Errorf("AST-012", decl.Span, "duplicate declaration of symbol %q", symText))
		}
		seen[symText] = true

		validateModule(decl, &bag)
	}

	for _, symText := range doc.Devices.Keys() {
		decl, _ := doc.Devices.Get(symText)

		if seen[symText] {
			bag.Emit(diag.Errorf("AST-012", decl.Span, "duplicate declaration of symbol %q", symText))
		}
		seen[symText] = true

		if !IsIdentifier(decl.Symbol) {
			bag.Emit(diag.Errorf("AST-003", decl.Span, "invalid device symbol %q", decl.Symbol))
		}

		for _, port := range decl.Ports {
			if err := pattern.ValidateLiteral(port); err != nil {
				bag.Emit(diag.Errorf("AST-004", decl.Span, "device %q: %s", decl.Symbol, err))
			}
		}
	}

	if doc.Top != "" {
		if _, err := ParseModuleSymbol(doc.Top); err != nil {
			bag.Emit(diag.Errorf("AST-005", sourcemap.Span{}, "invalid top module symbol %q: %s", doc.Top, err))
		}
	}

	return bag
}

func validateModule(decl ModuleDecl, bag *diag.Bag) {
	for _, port := range decl.Ports {
		if err := pattern.ValidateLiteral(port); err != nil {
			bag.Emit(diag.Errorf("AST-004", decl.Span, "module %q: %s", decl.Symbol, err))
		}
	}

	for _, key := range decl.Nets.Keys() {
		net, _ := decl.Nets.Get(key)

		for _, group := range net.Endpoints {
			for _, ep := range group {
				if ep == "" {
					bag.Emit(diag.Errorf("AST-006", net.Span, "empty endpoint in net %q: string-form endpoints are rejected, endpoint lists must be YAML lists of instance.pin strings", key))
				}
			}
		}
	}

	for _, key := range decl.Instances.Keys() {
		inst, _ := decl.Instances.Get(key)

		if inst.ParamsAliasUsed {
			bag.Emit(diag.Errorf("AST-016", inst.Span,
				"instance %q uses the rejected 'params' alias; the canonical key is 'parameters'", key))
		}
	}
}
