// Package query implements the read-only query facade (C11): two frozen v0
// JSON envelope shapes built on the shared hierarchy traversal. See spec
// §4.11, §6.5.
package query

import (
	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/atomizer"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/hierarchy"
	"github.com/asdl-lang/asdlc/pkg/asdl/netlist"
	"github.com/asdl-lang/asdlc/pkg/asdl/viewbind"
)

// SchemaVersion is the only envelope schema_version this facade emits.
const SchemaVersion = 1

// Envelope is the common v0 JSON wrapper every query result is returned in.
type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	Kind          string `json:"kind"`
	Payload       any    `json:"payload"`
}

// TreeRow is one row of a `query.tree` payload. Resolved/Emitted are
// pointers so they marshal as JSON null until that stage has run, per
// spec's "stage-specific nullable fields" contract.
type TreeRow struct {
	Path        string  `json:"path"`
	Instance    string  `json:"instance"`
	AuthoredRef string  `json:"authored_ref"`
	Resolved    *string `json:"resolved"`
	Emitted     *string `json:"emitted"`
}

// BindingRow is one row of a `query.bindings` payload.
type BindingRow struct {
	Path        string `json:"path"`
	Instance    string `json:"instance"`
	AuthoredRef string `json:"authored_ref"`
	Resolved    string `json:"resolved"`
	RuleID      string `json:"rule_id"`
}

// Tree builds the `query.tree` envelope: every hierarchy entry (devices
// included) in DFS-pre order, with authored_ref always populated and
// resolved/emitted filled in as far as the optionally-supplied bindings and
// design allow.
//
// bindings may be nil (authored-only query); design may be nil (no
// emission run yet, so `emitted` stays null for every row).
func Tree(apg *atomizer.AtomizedProgramGraph, topID graph.StableID, bindings map[string]string, design *netlist.Design) (Envelope, diag.Bag) {
	var bag diag.Bag

	entries, _ := hierarchy.TraverseHierarchy(apg, topID, true, nil)

	emittedByPath := make(map[string]string)
	if design != nil {
		resolvedEntries, _ := hierarchy.TraverseHierarchy(apg, topID, true, bindings)
		indexEmittedNames(design, resolvedEntries, emittedByPath)
	}

	rows := make([]TreeRow, 0, len(entries))
	for _, e := range entries {
		row := TreeRow{
			Path:        e.FullPath,
			Instance:    e.InstanceLeaf,
			AuthoredRef: e.RefSymbolText,
		}

		if resolved, ok := bindings[e.FullPath]; ok && resolved != "" {
			row.Resolved = strPtr(resolved)
		}

		if emitted, ok := emittedByPath[e.FullPath]; ok {
			row.Emitted = strPtr(emitted)
		}

		rows = append(rows, row)
	}

	return Envelope{SchemaVersion: SchemaVersion, Kind: "query.tree", Payload: rows}, bag
}

// Bindings builds the `query.bindings` envelope from a resolved view-binding
// sidecar: rows sorted by (path, instance). viewbind.Bind emits rows in
// DFS-pre order, which is not lexical (path, instance) order, so this
// re-sorts.
func Bindings(rows []viewbind.ResolvedViewBindingEntry, entries []hierarchy.Entry) (Envelope, diag.Bag) {
	var bag diag.Bag

	authoredByKey := make(map[string]string, len(entries))
	for _, e := range entries {
		authoredByKey[e.FullPath+"\x00"+e.InstanceLeaf] = e.RefSymbolText
	}

	out := make([]BindingRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, BindingRow{
			Path:        r.Path,
			Instance:    r.Instance,
			AuthoredRef: authoredByKey[r.Path+"\x00"+r.Instance],
			Resolved:    r.Resolved,
			RuleID:      r.RuleID,
		})
	}

	sortRows(out)

	return Envelope{SchemaVersion: SchemaVersion, Kind: "query.bindings", Payload: out}, bag
}

func sortRows(rows []BindingRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rowLess(rows[j], rows[j-1]); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func rowLess(a, b BindingRow) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.Instance < b.Instance
}

// indexEmittedNames reduces a resolved hierarchy walk (bindings already
// applied by the caller's TraverseHierarchy pass) to a full_path -> emitted
// name map, reusing the module naming netlist.Lower already computed
// instead of re-deriving it with a second traversal over Design. Device
// leaves are named after their (never renamed) device symbol directly.
func indexEmittedNames(design *netlist.Design, entries []hierarchy.Entry, out map[string]string) {
	for _, e := range entries {
		switch e.Kind {
		case hierarchy.ModuleNode:
			if name, ok := design.NameByModuleID[e.ModuleID]; ok {
				out[e.FullPath] = name
			}
		case hierarchy.DeviceNode:
			if sym, err := ast.ParseModuleSymbol(e.RefSymbolText); err == nil {
				out[e.FullPath] = sym.Cell
			}
		}
	}
}

func strPtr(s string) *string {
	return &s
}
