// Package depgraph dumps a resolved ProgramDB's file-level import
// dependency graph as deterministic JSON, for the `asdlc depgraph` CLI
// subcommand.
package depgraph

import (
	"sort"

	"github.com/asdl-lang/asdlc/pkg/asdl/importer"
)

// Edge is one resolved import: file importing, under what namespace, which
// target file.
type Edge struct {
	From      string `json:"from"`
	Namespace string `json:"namespace"`
	To        string `json:"to"`
}

// Graph is the dependency-graph dump: every file id discovered during
// resolution, plus every resolved import edge, both in deterministic order.
type Graph struct {
	Files []string `json:"files"`
	Edges []Edge   `json:"edges"`
}

// Build walks db's NameEnv to produce a Graph. File order follows
// db.FileIDs() (discovery order); edges are sorted by (from, namespace) for
// determinism independent of map iteration order.
func Build(db *importer.ProgramDB) Graph {
	g := Graph{Files: db.FileIDs()}

	for _, fileID := range g.Files {
		for ns, target := range db.NameEnv[fileID] {
			g.Edges = append(g.Edges, Edge{From: fileID, Namespace: ns, To: target})
		}
	}

	sort.Slice(g.Edges, func(i, j int) bool {
		a, b := g.Edges[i], g.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.Namespace < b.Namespace
	})

	return g
}
