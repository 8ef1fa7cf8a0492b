package query

import (
	"testing"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/atomizer"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/hierarchy"
	"github.com/asdl-lang/asdlc/pkg/asdl/importer"
	"github.com/asdl-lang/asdlc/pkg/asdl/netlist"
	"github.com/asdl-lang/asdlc/pkg/asdl/viewbind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoLevelDoc() *ast.Document {
	doc := ast.NewDocument("/top.asdl")

	emptyNets := func() *ast.OrderedMap[ast.NetDecl] { return ast.NewOrderedMap[ast.NetDecl]() }
	emptyInsts := func() *ast.OrderedMap[ast.InstanceDecl] { return ast.NewOrderedMap[ast.InstanceDecl]() }

	doc.Modules.Set("leaf", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "leaf"}, Nets: emptyNets(), Instances: emptyInsts()})

	topInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	topInsts.Set("X0", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "leaf"})

	doc.Modules.Set("top", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "top"}, Nets: emptyNets(), Instances: topInsts})

	return doc
}

func buildAtomized(t *testing.T, doc *ast.Document) (*atomizer.AtomizedProgramGraph, graph.StableID) {
	t.Helper()

	db := importer.NewProgramDB()
	db.Add(doc.FileID, doc)

	pg, bag := graph.Build(db)
	require.False(t, bag.HasErrors())

	apg, abag := atomizer.Atomize(pg)
	require.False(t, abag.HasErrors())

	topID, _, tbag := hierarchy.ResolveTopModule(apg, doc.FileID, "top", hierarchy.Strict)
	require.False(t, tbag.HasErrors())

	return apg, topID
}

func TestTreeAuthoredOnlyLeavesResolvedAndEmittedNull(t *testing.T) {
	apg, topID := buildAtomized(t, twoLevelDoc())

	env, bag := Tree(apg, topID, nil, nil)
	require.False(t, bag.HasErrors())
	assert.Equal(t, "query.tree", env.Kind)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)

	rows := env.Payload.([]TreeRow)
	require.Len(t, rows, 1)
	assert.Equal(t, "X0", rows[0].Instance)
	assert.Equal(t, "leaf", rows[0].AuthoredRef)
	assert.Nil(t, rows[0].Resolved)
	assert.Nil(t, rows[0].Emitted)
}

func TestTreePopulatesEmittedAfterLowering(t *testing.T) {
	apg, topID := buildAtomized(t, twoLevelDoc())

	design, lbag := netlist.Lower(apg, topID, nil)
	require.False(t, lbag.HasErrors())

	env, bag := Tree(apg, topID, nil, design)
	require.False(t, bag.HasErrors())

	rows := env.Payload.([]TreeRow)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Emitted)
	assert.Equal(t, "leaf", *rows[0].Emitted)
}

func TestBindingsSortsByPathThenInstance(t *testing.T) {
	apg, topID := buildAtomized(t, twoLevelDoc())
	entries, _ := hierarchy.TraverseHierarchy(apg, topID, false, nil)

	rows := []viewbind.ResolvedViewBindingEntry{
		{Path: "", Instance: "X0", Resolved: "leaf", RuleID: ""},
	}

	env, bag := Bindings(rows, entries)
	require.False(t, bag.HasErrors())
	assert.Equal(t, "query.bindings", env.Kind)

	out := env.Payload.([]BindingRow)
	require.Len(t, out, 1)
	assert.Equal(t, "leaf", out[0].AuthoredRef)
}
