package pattern

import (
	"testing"

	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
	"github.com/stretchr/testify/assert"
)

func TestExpandAtomsEnum(t *testing.T) {
	expr, bag := Parse("MN_<P|N>", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	atoms, bag := ExpandAtoms(expr, "MN")
	assert.False(t, bag.HasErrors())
	assert.Len(t, atoms, 2)
	assert.Equal(t, "MN_P", atoms[0].Literal)
	assert.Equal(t, "MN_N", atoms[1].Literal)
	assert.Equal(t, "MN_", atoms[0].BaseName)
}

func TestExpandAtomsRange(t *testing.T) {
	expr, bag := Parse("MN_<1:2>", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	atoms, bag := ExpandAtoms(expr, "MN")
	assert.False(t, bag.HasErrors())
	assert.Len(t, atoms, 2)
	assert.Equal(t, "MN_1", atoms[0].Literal)
	assert.Equal(t, "MN_2", atoms[1].Literal)
	assert.Equal(t, 1, atoms[0].SuffixParts[0].Int)
}

func TestExpandAtomsSplice(t *testing.T) {
	expr, bag := Parse("OUT;OUT", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	atoms, bag := ExpandAtoms(expr, "net")
	assert.False(t, bag.HasErrors())
	assert.Len(t, atoms, 2)
	assert.Equal(t, "OUT", atoms[0].Literal)
	assert.Equal(t, "OUT", atoms[1].Literal)
}

func TestExpandAtomsOverflow(t *testing.T) {
	expr, bag := Parse("X<0:20000>", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	_, bag = ExpandAtoms(expr, "X")
	assert.True(t, bag.HasErrors())
	assert.Equal(t, "IR-007", bag.Errors()[0].Code)
}

func TestAtomizeEndpoint(t *testing.T) {
	expr, bag := Parse("MN_IN_<P|N>.D", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	eps, bag := AtomizeEndpoint(expr, "inst")
	assert.False(t, bag.HasErrors())
	assert.Len(t, eps, 2)
	assert.Equal(t, "MN_IN_P", eps[0].Instance)
	assert.Equal(t, "D", eps[0].Pin)
	assert.Equal(t, "MN_IN_N", eps[1].Instance)
}

func TestExpandNamedOneLevel(t *testing.T) {
	named, bag := Parse("<P|N>", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	expr, bag := Parse("MN_<@diff>", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	resolved, bag := ExpandNamed(expr, map[string]*PatternExpr{"diff": named})
	assert.False(t, bag.HasErrors())

	atoms, bag := ExpandAtoms(resolved, "MN")
	assert.False(t, bag.HasErrors())
	assert.Len(t, atoms, 2)
	assert.Equal(t, "MN_P", atoms[0].Literal)
}

func TestExpandNamedUndefined(t *testing.T) {
	expr, bag := Parse("MN_<@missing>", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	_, bag = ExpandNamed(expr, map[string]*PatternExpr{})
	assert.True(t, bag.HasErrors())
	assert.Equal(t, "IR-009", bag.Errors()[0].Code)
}

func TestAxesTaggedAndDefault(t *testing.T) {
	expr, bag := Parse("<row=0:1>_<1:2>", sourcemap.Span{})
	assert.False(t, bag.HasErrors())

	axes := Axes(expr, "owner")
	assert.Equal(t, []string{"row", "owner"}, axes)
}

func TestValidateLiteralRejectsPatternChars(t *testing.T) {
	assert.NoError(t, ValidateLiteral("VDD"))
	assert.Error(t, ValidateLiteral("VDD<1>"))
}
