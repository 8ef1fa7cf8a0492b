package hierarchy

import (
	"testing"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/atomizer"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleModuleDesign declares exactly one module in its file, directly
// instantiating a device leaf.
func singleModuleDesign() *ast.Document {
	doc := ast.NewDocument("/single.asdl")

	nf := ast.DeviceDecl{Symbol: "nfet", Ports: []string{"D", "G", "S"}}
	doc.Devices.Set("nfet", nf)

	nets := ast.NewOrderedMap[ast.NetDecl]()
	nets.Set("$VDD", ast.NetDecl{NameText: "$VDD"})

	insts := ast.NewOrderedMap[ast.InstanceDecl]()
	insts.Set("MN", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "nfet", ParamsText: "L=1u"})

	top := ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "top"}, Nets: nets, Instances: insts}
	doc.Modules.Set("top", top)

	return doc
}

// twoLevelDesign declares two modules in the same entry file ("leaf" and
// "top"), so top inference without an explicit top is ambiguous under the
// strict policy.
func twoLevelDesign() *ast.Document {
	doc := ast.NewDocument("/top.asdl")

	nf := ast.DeviceDecl{Symbol: "nfet", Ports: []string{"D", "G", "S"}}
	doc.Devices.Set("nfet", nf)

	leafNets := ast.NewOrderedMap[ast.NetDecl]()
	leafNets.Set("$D", ast.NetDecl{NameText: "$D"})
	leafNets.Set("$G", ast.NetDecl{NameText: "$G"})
	leafNets.Set("$S", ast.NetDecl{NameText: "$S"})

	leafInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	leafInsts.Set("MN", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "nfet", ParamsText: "L=1u"})

	leaf := ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "leaf"}, Nets: leafNets, Instances: leafInsts}
	doc.Modules.Set("leaf", leaf)

	topNets := ast.NewOrderedMap[ast.NetDecl]()
	topNets.Set("$VDD", ast.NetDecl{NameText: "$VDD"})

	topInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	topInsts.Set("X0", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "leaf", ParamsText: ""})
	topInsts.Set("X1", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "leaf", ParamsText: ""})

	top := ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "top"}, Nets: topNets, Instances: topInsts}
	doc.Modules.Set("top", top)

	return doc
}

func buildAtomized(t *testing.T, doc *ast.Document) *atomizer.AtomizedProgramGraph {
	t.Helper()

	db := importer.NewProgramDB()
	db.Add(doc.FileID, doc)

	pg, bag := graph.Build(db)
	require.False(t, bag.HasErrors(), "build errors: %v", bag.Errors())

	apg, abag := atomizer.Atomize(pg)
	require.False(t, abag.HasErrors(), "atomize errors: %v", abag.Errors())

	return apg
}

func TestResolveTopModuleSingleEntryModule(t *testing.T) {
	apg := buildAtomized(t, singleModuleDesign())

	topID, notes, bag := ResolveTopModule(apg, "/single.asdl", "", Strict)
	require.False(t, bag.HasErrors())
	assert.Empty(t, notes)
	assert.Equal(t, "top", apg.Modules[topID].Symbol.Cell)
}

func TestResolveTopModuleStrictAmbiguousWithoutExplicitTop(t *testing.T) {
	apg := buildAtomized(t, twoLevelDesign())

	_, _, bag := ResolveTopModule(apg, "/top.asdl", "", Strict)
	require.True(t, bag.HasErrors())
	assert.Equal(t, "EMIT-001", bag.Errors()[0].Code)
}

func TestResolveTopModulePermissiveFallsBackOnAmbiguity(t *testing.T) {
	apg := buildAtomized(t, twoLevelDesign())

	topID, notes, bag := ResolveTopModule(apg, "/top.asdl", "", Permissive)
	assert.False(t, bag.HasErrors())
	assert.NotEmpty(t, notes)
	assert.Contains(t, []graph.StableID{apg.ModuleOrder[0], apg.ModuleOrder[1]}, topID)
}

func TestResolveTopModuleExplicitTopWins(t *testing.T) {
	apg := buildAtomized(t, twoLevelDesign())

	topID, notes, bag := ResolveTopModule(apg, "/top.asdl", "top", Strict)
	require.False(t, bag.HasErrors())
	assert.Empty(t, notes)
	assert.Equal(t, "top", apg.Modules[topID].Symbol.Cell)
}

func TestTraverseHierarchyDFSPreOrder(t *testing.T) {
	apg := buildAtomized(t, twoLevelDesign())

	topID, _, bag := ResolveTopModule(apg, "/top.asdl", "top", Strict)
	require.False(t, bag.HasErrors())

	entries, notes := TraverseHierarchy(apg, topID, true, nil)
	assert.Empty(t, notes)

	require.Len(t, entries, 4) // X0, X0/MN, X1, X1/MN
	assert.Equal(t, "X0", entries[0].FullPath)
	assert.Equal(t, ModuleNode, entries[0].Kind)
	assert.Equal(t, "X0/MN", entries[1].FullPath)
	assert.Equal(t, DeviceNode, entries[1].Kind)
	assert.Equal(t, "X1", entries[2].FullPath)
	assert.Equal(t, "X1/MN", entries[3].FullPath)
}

func TestTraverseHierarchyExcludesDevicesWhenRequested(t *testing.T) {
	apg := buildAtomized(t, twoLevelDesign())

	topID, _, bag := ResolveTopModule(apg, "/top.asdl", "top", Strict)
	require.False(t, bag.HasErrors())

	entries, _ := TraverseHierarchy(apg, topID, false, nil)
	require.Len(t, entries, 2)
	assert.Equal(t, ModuleNode, entries[0].Kind)
	assert.Equal(t, ModuleNode, entries[1].Kind)
}
