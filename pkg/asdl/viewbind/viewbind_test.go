package viewbind

import (
	"testing"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/atomizer"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/hierarchy"
	"github.com/asdl-lang/asdlc/pkg/asdl/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shiftRowDesign() *ast.Document {
	doc := ast.NewDocument("/top.asdl")

	emptyNets := func() *ast.OrderedMap[ast.NetDecl] { return ast.NewOrderedMap[ast.NetDecl]() }
	emptyInsts := func() *ast.OrderedMap[ast.InstanceDecl] { return ast.NewOrderedMap[ast.InstanceDecl]() }

	doc.Modules.Set("shift_row", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "shift_row"}, Nets: emptyNets(), Instances: emptyInsts()})
	doc.Modules.Set("shift_row@behave", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "shift_row", View: "behave"}, Nets: emptyNets(), Instances: emptyInsts()})
	doc.Modules.Set("shift_row@sim", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "shift_row", View: "sim"}, Nets: emptyNets(), Instances: emptyInsts()})

	topInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	topInsts.Set("row0", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "shift_row", ParamsText: ""})
	topInsts.Set("row1", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "shift_row", ParamsText: ""})

	doc.Modules.Set("top", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "top"}, Nets: emptyNets(), Instances: topInsts})

	return doc
}

func buildTopAtomized(t *testing.T, doc *ast.Document) (*atomizer.AtomizedProgramGraph, graph.StableID) {
	t.Helper()

	db := importer.NewProgramDB()
	db.Add(doc.FileID, doc)

	pg, bag := graph.Build(db)
	require.False(t, bag.HasErrors(), "build errors: %v", bag.Errors())

	apg, abag := atomizer.Atomize(pg)
	require.False(t, abag.HasErrors(), "atomize errors: %v", abag.Errors())

	topID, _, tbag := hierarchy.ResolveTopModule(apg, doc.FileID, "top", hierarchy.Strict)
	require.False(t, tbag.HasErrors())

	return apg, topID
}

func TestBindAppliesBaselineAndRuleOverride(t *testing.T) {
	apg, topID := buildTopAtomized(t, shiftRowDesign())

	cfg := Config{
		Profiles: map[string]Profile{
			"P": {
				ViewOrder: []string{"behave", "default"},
				Rules: []Rule{
					{Match: Match{Path: "row0"}, Bind: "shift_row@sim"},
				},
			},
		},
		ProfileOrder: []string{"P"},
	}

	rows, bag := Bind(apg, topID, cfg, "P")
	require.False(t, bag.HasErrors(), "unexpected bind errors: %v", bag.Errors())
	require.Len(t, rows, 2)

	assert.Equal(t, ResolvedViewBindingEntry{Path: "", Instance: "row0", Resolved: "shift_row@sim", RuleID: "rule0"}, rows[0])
	assert.Equal(t, ResolvedViewBindingEntry{Path: "", Instance: "row1", Resolved: "shift_row@behave", RuleID: ""}, rows[1])
}

func TestBindUnknownProfile(t *testing.T) {
	apg, topID := buildTopAtomized(t, shiftRowDesign())

	_, bag := Bind(apg, topID, Config{Profiles: map[string]Profile{}}, "missing")
	require.True(t, bag.HasErrors())
	assert.Equal(t, "VIEW-001", bag.Errors()[0].Code)
}
