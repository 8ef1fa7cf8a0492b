// Package hierarchy implements the single shared deterministic hierarchy
// walk (C10): top-module resolution and DFS-preorder traversal used by both
// view binding (C7) and the query facade (C11). See spec §4.8.
package hierarchy

import (
	"fmt"

	"github.com/asdl-lang/asdlc/pkg/asdl/atomizer"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// Policy selects how ambiguous or missing top inference behaves: Strict is
// for emission, Permissive is for traversal/query.
type Policy int

const (
	Strict Policy = iota
	Permissive
)

// NodeKind discriminates a module realization from a device leaf in a
// traversal entry.
type NodeKind int

const (
	ModuleNode NodeKind = iota
	DeviceNode
)

// Entry is one node visited by TraverseHierarchy, in DFS-preorder.
type Entry struct {
	FullPath     string
	InstanceLeaf string
	Kind         NodeKind
	ModuleID     graph.StableID // valid when Kind == ModuleNode
	DeviceID     graph.StableID // valid when Kind == DeviceNode
	Depth        int
	// RefSymbolText/RefFileID carry the instance's authored (pre-view-bind)
	// reference, as consumed by view binding's InstanceIndex (spec §3.8).
	RefSymbolText string
	RefFileID     string
}

// ResolveTopModule centralizes top inference (spec §4.8): an explicit top
// symbol always wins; absent that, strict policy demands exactly one module
// declared in the entry file (EMIT-001 otherwise), while permissive policy
// falls back to the unique module across the whole program and, when there
// is none, to the last declared module, reporting the ambiguity as a
// non-fatal walk note instead of an error.
func ResolveTopModule(apg *atomizer.AtomizedProgramGraph, entryFileID, explicitTop string, policy Policy) (graph.StableID, []string, diag.Bag) {
	var bag diag.Bag
	var notes []string

	if explicitTop != "" {
		id, ok := apg.Upstream.SymbolIndex[entryFileID][explicitTop]
		if !ok {
			bag.Emit(diag.Errorf("EMIT-001", sourcemap.Span{}, "explicit top %q not found in entry file %s", explicitTop, entryFileID))
			return "", notes, bag
		}
		if _, isModule := apg.Modules[id]; !isModule {
			bag.Emit(diag.Errorf("EMIT-001", sourcemap.Span{}, "explicit top %q does not name a module", explicitTop))
			return "", notes, bag
		}
		return id, notes, bag
	}

	var entryModules []graph.StableID
	for _, modID := range apg.ModuleOrder {
		am := apg.Modules[modID]
		if am.FileID == entryFileID {
			entryModules = append(entryModules, modID)
		}
	}

	if len(entryModules) == 1 {
		return entryModules[0], notes, bag
	}

	switch policy {
	case Strict:
		if len(entryModules) == 0 {
			bag.Emit(diag.Errorf("EMIT-001", sourcemap.Span{}, "entry file %s declares no modules", entryFileID))
		} else {
			bag.Emit(diag.Errorf("EMIT-001", sourcemap.Span{}, "entry file %s declares %d modules; an explicit top is required", entryFileID, len(entryModules)))
		}
		return "", notes, bag
	default: // Permissive
		if len(apg.ModuleOrder) == 1 {
			return apg.ModuleOrder[0], notes, bag
		}
		if len(entryModules) > 1 {
			notes = append(notes, fmt.Sprintf("ambiguous top: entry file %s declares %d modules; using the last declared module", entryFileID, len(entryModules)))
		} else {
			notes = append(notes, fmt.Sprintf("ambiguous top: no module declared in entry file %s and %d modules in program", entryFileID, len(apg.ModuleOrder)))
		}
		return apg.ModuleOrder[len(apg.ModuleOrder)-1], notes, bag
	}
}

// TraverseHierarchy walks the design DFS-preorder from topID. Ancestry-based
// cycle detection stops descent into a module already on the current
// root-to-here path, surfacing a walk note instead of a diagnostic (cycles
// in an analog hierarchy are a design error, not a compiler error, in
// traversal/query contexts). netlist.Lower drives this same walk, so a
// cycle is not reported as an error at emission time either.
//
// bindings optionally carries view-binding resolutions keyed by full
// instance path (the same shape as netlist.Lower's and viewbind.Bind's
// rows): when an entry's path has an override, descent follows the
// resolved module symbol instead of the instance's authored reference.
// Entry.RefSymbolText/RefFileID always report the authored reference
// regardless of any override, matching view binding's InstanceIndex
// contract (spec §3.8). Pass nil for an authored-only walk.
func TraverseHierarchy(apg *atomizer.AtomizedProgramGraph, topID graph.StableID, includeDevices bool, bindings map[string]string) ([]Entry, []string) {
	w := &walker{apg: apg, includeDevices: includeDevices, bindings: bindings}
	w.visit(topID, "", 0, map[graph.StableID]bool{})
	return w.entries, w.notes
}

type walker struct {
	apg            *atomizer.AtomizedProgramGraph
	includeDevices bool
	bindings       map[string]string
	entries        []Entry
	notes          []string
}

func (w *walker) visit(modID graph.StableID, pathPrefix string, depth int, ancestry map[graph.StableID]bool) {
	am, ok := w.apg.Modules[modID]
	if !ok {
		return
	}

	ancestry[modID] = true
	defer delete(ancestry, modID)

	for _, instName := range am.InstanceOrder {
		inst := am.Instances[instName]
		fullPath := instName
		if pathPrefix != "" {
			fullPath = pathPrefix + "/" + instName
		}

		if inst.RefIsDevice {
			if w.includeDevices {
				devID := w.lookupDeviceID(inst)
				w.entries = append(w.entries, Entry{
					FullPath:      fullPath,
					InstanceLeaf:  instName,
					Kind:          DeviceNode,
					DeviceID:      devID,
					Depth:         depth,
					RefSymbolText: inst.RefSymbol.String(),
					RefFileID:     inst.RefFileID,
				})
			}
			continue
		}

		refSymbolText := inst.RefSymbol.String()
		if override, ok := w.bindings[fullPath]; ok && override != "" {
			refSymbolText = override
		}

		targetID, ok := w.apg.Upstream.SymbolIndex[inst.RefFileID][refSymbolText]
		if !ok {
			w.notes = append(w.notes, fmt.Sprintf("unresolved module reference at %s (%s)", fullPath, refSymbolText))
			continue
		}

		w.entries = append(w.entries, Entry{
			FullPath:      fullPath,
			InstanceLeaf:  instName,
			Kind:          ModuleNode,
			ModuleID:      targetID,
			Depth:         depth,
			RefSymbolText: inst.RefSymbol.String(),
			RefFileID:     inst.RefFileID,
		})

		if ancestry[targetID] {
			w.notes = append(w.notes, fmt.Sprintf("cycle stopped at %s: module %s already on path", fullPath, inst.RefSymbol))
			continue
		}

		w.visit(targetID, fullPath, depth+1, ancestry)
	}
}

func (w *walker) lookupDeviceID(inst *atomizer.AtomizedInstance) graph.StableID {
	id, _ := w.apg.Upstream.SymbolIndex[inst.RefFileID][inst.RefSymbol.String()]
	return id
}
