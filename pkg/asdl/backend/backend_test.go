package backend

import (
	"testing"

	"github.com/asdl-lang/asdlc/pkg/asdl/netlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ngspiceConfig() Config {
	return Config{
		Name:      "ngspice",
		Extension: ".cir",
		System: SystemTemplates{
			NetlistHeader:      "* {name}",
			NetlistFooter:      ".end",
			SubcktHeader:       ".subckt {name} {ports}",
			SubcktHeaderParams: ".subckt {name} {ports} {params}",
			SubcktCall:         "X{name} {ports} {ref}",
			SubcktCallParams:   "X{name} {ports} {ref} {params}",
		},
	}
}

func diffPairDesign() *netlist.Design {
	nfet := netlist.Device{
		Name:       "nfet",
		Ports:      []string{"D", "G", "S"},
		Parameters: map[string]string{},
		Backends:   map[string]string{"ngspice": "M{name} {ports} nfet L={L} W={W}"},
	}

	used := netlist.Module{
		Name:  "used",
		Ports: []string{"VDD", "IN", "OUT"},
		Nets:  []string{"VDD", "IN", "OUT"},
		Instances: []netlist.Instance{
			{
				Name:       "MN",
				Ref:        "nfet",
				IsDevice:   true,
				Conns:      map[string]string{"D": "OUT", "G": "IN", "S": "VDD"},
				Parameters: map[string]string{"L": "1u", "W": "2u"},
			},
		},
		Parameters: map[string]string{},
	}

	top := netlist.Module{
		Name:  "top",
		Ports: nil,
		Nets:  []string{"VDD", "IN", "OUT"},
		Instances: []netlist.Instance{
			{
				Name:       "X0",
				Ref:        "used",
				IsDevice:   false,
				Conns:      map[string]string{"VDD": "VDD", "IN": "IN", "OUT": "OUT"},
				Parameters: map[string]string{},
			},
		},
		Parameters: map[string]string{},
	}

	return &netlist.Design{Modules: []netlist.Module{top, used}, Devices: []netlist.Device{nfet}, Top: "top"}
}

func TestRenderWrapsNonTopModulesAndLeavesTopFlatByDefault(t *testing.T) {
	design := diffPairDesign()

	out, bag := Render(design, ngspiceConfig(), false)
	require.False(t, bag.HasErrors(), "unexpected render errors: %v", bag.Errors())

	assert.Contains(t, out, "* top")
	assert.Contains(t, out, ".end")
	assert.Contains(t, out, ".subckt used VDD IN OUT")
	assert.Contains(t, out, "XX0 VDD IN OUT used")
	assert.Contains(t, out, "MMN OUT IN VDD nfet L=1u W=2u")
	assert.NotContains(t, out, ".subckt top")
}

func TestRenderWrapsTopWhenRequested(t *testing.T) {
	design := diffPairDesign()

	out, bag := Render(design, ngspiceConfig(), true)
	require.False(t, bag.HasErrors())

	assert.Contains(t, out, ".subckt top")
}

func TestRenderUnknownPlaceholderReportsEmit003(t *testing.T) {
	cfg := ngspiceConfig()
	cfg.System.NetlistHeader = "* {bogus}"

	design := diffPairDesign()

	_, bag := Render(design, cfg, false)
	require.True(t, bag.HasErrors())
	assert.Equal(t, "EMIT-003", bag.Errors()[0].Code)
}

func TestInstanceFieldsExposesParamsAsDeterministicStringAndIndividualKeys(t *testing.T) {
	fields := instanceFields("MN", []string{"OUT", "IN", "VDD"}, map[string]string{"W": "2u", "L": "1u"})

	assert.Equal(t, "L=1u W=2u", fields["params"])
	assert.Equal(t, "1u", fields["L"])
	assert.Equal(t, "2u", fields["W"])
	assert.Equal(t, "OUT IN VDD", fields["ports"])
}

func TestCollapseWhitespaceDropsStrayBlanksFromEmptyPlaceholders(t *testing.T) {
	got := collapseWhitespace(".subckt top  \n")
	assert.Equal(t, ".subckt top", got)
}
