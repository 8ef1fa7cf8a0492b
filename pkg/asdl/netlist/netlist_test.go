package netlist

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

func reachabilityDesign() *ast.Document {
	doc := ast.NewDocument("/top.asdl")

	nf := ast.DeviceDecl{
		Symbol: "nfet",
		Ports:  []string{"D", "G", "S"},
		Backends: func() *ast.OrderedMap[string] {
			m := ast.NewOrderedMap[string]()
			m.Set("ngspice", "M{name} {ports} nfet L={L} W={W}")
			return m
		}(),
	}
	doc.Devices.Set("nfet", nf)

	usedNets := ast.NewOrderedMap[ast.NetDecl]()
	usedNets.Set("$D", ast.NetDecl{NameText: "$D"})
	usedNets.Set("$G", ast.NetDecl{NameText: "$G"})
	usedNets.Set("$S", ast.NetDecl{NameText: "$S"})

	usedInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	usedInsts.Set("MN", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "nfet", ParamsText: "L=1u W=1u"})

	doc.Modules.Set("used", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "used"}, Nets: usedNets, Instances: usedInsts})

	orphanNets := ast.NewOrderedMap[ast.NetDecl]()
	orphanInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	doc.Modules.Set("orphan", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "orphan"}, Nets: orphanNets, Instances: orphanInsts})

	topNets := ast.NewOrderedMap[ast.NetDecl]()
	topNets.Set("$VDD", ast.NetDecl{NameText: "$VDD"})

	topInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	topInsts.Set("X0", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "used", ParamsText: ""})

	doc.Modules.Set("top", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "top"}, Nets: topNets, Instances: topInsts})

	return doc
}

func TestLowerProjectsOnlyReachableModules(t *testing.T) {
	doc := reachabilityDesign()

	db := importer.NewProgramDB()
	db.Add(doc.FileID, doc)

	pg, bag := graph.Build(db)
	require.False(t, bag.HasErrors())

	apg, abag := atomizer.Atomize(pg)
	require.False(t, abag.HasErrors())

	topID, _, tbag := hierarchy.ResolveTopModule(apg, doc.FileID, "top", hierarchy.Strict)
	require.False(t, tbag.HasErrors())

	design, lbag := Lower(apg, topID, nil)
	require.False(t, lbag.HasErrors(), "unexpected lower errors: %v", lbag.Errors())

	var names []string
	for _, m := range design.Modules {
		names = append(names, m.Name)
	}

	assert.ElementsMatch(t, []string{"top", "used"}, names)
	assert.Equal(t, "top", design.Top)
	require.Len(t, design.Devices, 1)
	assert.Equal(t, "nfet", design.Devices[0].Name)
}

func collisionDesign() *ast.Document {
	doc := ast.NewDocument("/top.asdl")

	leafNets := ast.NewOrderedMap[ast.NetDecl]()
	leafInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	doc.Modules.Set("stage_a", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "stage_a"}, Nets: leafNets, Instances: leafInsts})

	leafNets2 := ast.NewOrderedMap[ast.NetDecl]()
	leafInsts2 := ast.NewOrderedMap[ast.InstanceDecl]()
	doc.Modules.Set("stage@a", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "stage", View: "a"}, Nets: leafNets2, Instances: leafInsts2})

	topInsts := ast.NewOrderedMap[ast.InstanceDecl]()
	topInsts.Set("S0", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "stage_a", ParamsText: ""})
	topInsts.Set("S1", ast.InstanceDecl{Kind: ast.InlineInstance, RefText: "stage@a", ParamsText: ""})

	doc.Modules.Set("top", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "top"}, Nets: ast.NewOrderedMap[ast.NetDecl](), Instances: topInsts})

	return doc
}

func TestLowerAssignsOrdinalSuffixOnNameCollision(t *testing.T) {
	doc := collisionDesign()

	db := importer.NewProgramDB()
	db.Add(doc.FileID, doc)

	pg, bag := graph.Build(db)
	require.False(t, bag.HasErrors())

	apg, abag := atomizer.Atomize(pg)
	require.False(t, abag.HasErrors())

	topID, _, tbag := hierarchy.ResolveTopModule(apg, doc.FileID, "top", hierarchy.Strict)
	require.False(t, tbag.HasErrors())

	design, lbag := Lower(apg, topID, nil)
	require.False(t, lbag.HasErrors())

	var names []string
	for _, m := range design.Modules {
		names = append(names, m.Name)
	}

	assert.ElementsMatch(t, []string{"top", "stage_a", "stage_a__2"}, names)
}
