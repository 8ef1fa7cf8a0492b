// Package graph implements the PatternedGraph builder (C5): lowering AST
// documents into a pattern-preserving graph of bundles plus external
// registries. See spec §3.5 and §4.5.
package graph

import "fmt"

// StableID is a deterministic opaque identifier assigned at graph
// construction time, formatted `<kind>:<seq>`. graph.Build draws every id
// of a program from one Allocator, so no id is handed out twice and two
// runs on identical input produce identical ids.
type StableID string

// Allocator assigns StableIds with one sequence per kind. graph.Build
// creates one Allocator for the whole program and lowers files in the
// ProgramDB's fixed order, so ids are stable across runs.
type Allocator struct {
	seq map[string]int
}

// NewAllocator constructs a fresh id allocator.
func NewAllocator() *Allocator {
	return &Allocator{seq: make(map[string]int)}
}

// Next allocates the next id of the given kind.
func (a *Allocator) Next(kind string) StableID {
	a.seq[kind]++
	return StableID(fmt.Sprintf("%s:%d", kind, a.seq[kind]))
}

// Kinds used throughout the PatternedGraph and AtomizedGraph.
const (
	KindModule   = "module"
	KindDevice   = "device"
	KindNet      = "net"
	KindEndpoint = "endpoint"
	KindInstance = "instance"
	KindExpr     = "expr"
)
