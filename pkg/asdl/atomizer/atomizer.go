// Package atomizer implements the atomizer (C6): the pure PatternedGraph ->
// AtomizedProgramGraph transform that flattens every pattern expression into
// literal atoms, applies module-variable substitution to instance
// parameters, and runs the post-atomization integrity verifier. See spec
// §3.6 and §4.6.
package atomizer

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/pattern"
)

// AtomOriginInfo is an AtomizedPatternOrigin: the provenance of one literal
// atom, carried forward so downstream diagnostics (and NetlistIR) retain
// reproducible positions.
type AtomOriginInfo struct {
	ExpressionID graph.StableID
	SegmentIndex int
	AtomIndex    int
	BaseName     string
	PatternParts []pattern.SuffixValue
}

// AtomizedEndpoint is one literal endpoint binding within a net.
type AtomizedEndpoint struct {
	Instance string
	Pin      string
}

// AtomizedInstance is one literal instance realized from an instance-name
// pattern atom.
type AtomizedInstance struct {
	Name        string
	RefSymbol   ast.ModuleSymbol
	RefFileID   string
	RefIsDevice bool
	// Params holds the fully substituted, atom-selected literal parameter
	// values for this specific instance atom.
	Params      map[string]string
	ParamOrder  []string
	Origin      AtomOriginInfo
}

// AtomizedNet is one literal net realized from a net-name pattern atom.
type AtomizedNet struct {
	Name      string
	Endpoints []AtomizedEndpoint
	Origin    AtomOriginInfo
}

// AtomizedModule is the atomized realization of one ModuleGraph.
type AtomizedModule struct {
	Symbol        ast.ModuleSymbol
	FileID        string
	Ports         []string
	Nets          map[string]*AtomizedNet
	NetOrder      []string
	Instances     map[string]*AtomizedInstance
	InstanceOrder []string
}

// AtomizedProgramGraph retains the upstream PatternedGraph (and therefore
// its registries) so NetlistIR lowering can reconstruct provenance, per
// spec §3.6.
type AtomizedProgramGraph struct {
	Upstream    *graph.ProgramGraph
	Modules     map[graph.StableID]*AtomizedModule
	ModuleOrder []graph.StableID
}

var varToken = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Atomize transforms a PatternedGraph into an AtomizedProgramGraph (§4.6).
func Atomize(pg *graph.ProgramGraph) (*AtomizedProgramGraph, diag.Bag) {
	var bag diag.Bag

	out := &AtomizedProgramGraph{Upstream: pg, Modules: make(map[graph.StableID]*AtomizedModule)}

	for _, modID := range pg.ModuleOrder {
		mg := pg.Modules[modID]
		am, modBag := atomizeModule(pg, mg)
		bag.Extend(modBag)

		out.Modules[modID] = am
		out.ModuleOrder = append(out.ModuleOrder, modID)
	}

	if !bag.HasErrors() {
		bag.Extend(Verify(out))
	}

	return out, bag
}

func atomizeModule(pg *graph.ProgramGraph, mg *graph.ModuleGraph) (*AtomizedModule, diag.Bag) {
	var bag diag.Bag

	am := &AtomizedModule{
		Symbol:    mg.Symbol,
		FileID:    mg.FileID,
		Nets:      make(map[string]*AtomizedNet),
		Instances: make(map[string]*AtomizedInstance),
	}

	// Step 1: atomize instances first, so endpoint resolution (step 2) can
	// check against a complete set of instance atoms.
	for _, instID := range mg.Instances {
		ib := pg.Instances[instID]
		_, instBag := atomizeInstance(pg, mg, ib, am)
		bag.Extend(instBag)
	}

	// Step 2: atomize nets and their endpoint bindings.
	for _, netID := range mg.Nets {
		nb := pg.Nets[netID]
		atomizeNet(pg, nb, am, &bag)
	}

	// Step 3: port order is the literal realization of mg.Ports, which are
	// net ids possibly carrying their own pattern expansion (buses).
	seenPort := make(map[string]bool)
	for _, portNetID := range mg.Ports {
		nb := pg.Nets[portNetID]
		origin := pg.Registries.Origins[portNetID]
		expr := pg.Registries.Exprs[origin.ExprID]
		owner := netOwnerName(nb, pg)

		atoms, _ := pattern.ExpandAtoms(expr, owner)
		for _, a := range atoms {
			if !seenPort[a.Literal] {
				am.Ports = append(am.Ports, a.Literal)
				seenPort[a.Literal] = true
			}
		}
	}

	return am, bag
}

func netOwnerName(nb *graph.NetBundle, pg *graph.ProgramGraph) string {
	origin := pg.Registries.Origins[nb.ID]
	expr := pg.Registries.Exprs[origin.ExprID]
	if expr == nil {
		return ""
	}
	return expr.Raw
}

func atomizeInstance(pg *graph.ProgramGraph, mg *graph.ModuleGraph, ib *graph.InstanceBundle, am *AtomizedModule) ([]string, diag.Bag) {
	var localBag diag.Bag

	origin := pg.Registries.Origins[ib.ID]
	nameExpr := pg.Registries.Exprs[origin.ExprID]
	span := pg.Registries.Spans.Get(ib.ID)

	atoms, expBag := pattern.ExpandAtoms(nameExpr, nameExpr.Raw)
	localBag.Extend(expBag)

	if localBag.HasErrors() {
		return nil, localBag
	}

	n := len(atoms)
	names := make([]string, 0, n)

	// Pre-compute, per parameter, the substituted+expanded literal values
	// aligned to instance atom index (module-variable substitution happens
	// before pattern expansion of the parameter expression, §4.6.3/§9).
	paramValues := make(map[string][]string)

	for _, p := range ib.Params {
		substituted, err := substituteVariables(p.RawText, mg.Parameters)
		if err != nil {
			code := "IR-012"
			if errors.Is(err, errRecursion) {
				code = "IR-013"
			}
			localBag.Emit(diag.Errorf(code, span, "instance parameter %q: %s", p.Name, err))
			continue
		}

		valExpr, valBag := pattern.Parse(substituted, span)
		localBag.Extend(valBag)

		valAtoms, valExpBag := pattern.ExpandAtoms(valExpr, p.Name)
		localBag.Extend(valExpBag)

		values := make([]string, len(valAtoms))
		for i, va := range valAtoms {
			values[i] = va.Literal
		}

		switch {
		case len(values) == n:
			paramValues[p.Name] = values
		case len(values) == 1:
			broadcast := make([]string, n)
			for i := range broadcast {
				broadcast[i] = values[0]
			}
			paramValues[p.Name] = broadcast
		default:
			localBag.Emit(diag.Errorf("IR-005", span,
				"parameter %q expands to %d values but instance %q expands to %d atoms",
				p.Name, len(values), nameExpr.Raw, n))
		}
	}

	if localBag.HasErrors() {
		return nil, localBag
	}

	for i, a := range atoms {
		if _, exists := am.Instances[a.Literal]; exists {
			localBag.Emit(diag.Errorf("IR-016", span, "duplicate instance name %q after atomization; first occurrence kept", a.Literal))
			continue
		}

		params := make(map[string]string, len(ib.Params))
		order := make([]string, 0, len(ib.Params))

		for _, p := range ib.Params {
			if vs, ok := paramValues[p.Name]; ok {
				params[p.Name] = vs[i]
				order = append(order, p.Name)
			}
		}

		ai := &AtomizedInstance{
			Name:        a.Literal,
			RefSymbol:   ib.RefSymbol,
			RefFileID:   ib.RefFileID,
			RefIsDevice: ib.RefIsDevice,
			Params:      params,
			ParamOrder:  order,
			Origin: AtomOriginInfo{
				ExpressionID: origin.ExprID,
				SegmentIndex: a.SegmentIndex,
				AtomIndex:    a.AtomIndex,
				BaseName:     a.BaseName,
				PatternParts: a.SuffixParts,
			},
		}

		am.Instances[a.Literal] = ai
		am.InstanceOrder = append(am.InstanceOrder, a.Literal)
		names = append(names, a.Literal)
	}

	return names, localBag
}

// substituteVariables replaces every `{var}` token in text using the
// module's parameters table. Detects undefined variables (IR-012) and
// self-referential recursion through a variable name (IR-013).
var errRecursion = errors.New("recursive substitution")

func substituteVariables(text string, params *ast.OrderedMap[string]) (string, error) {
	if params == nil {
		params = ast.NewOrderedMap[string]()
	}
	return substituteVariablesRec(text, params, map[string]bool{})
}

func substituteVariablesRec(text string, params *ast.OrderedMap[string], active map[string]bool) (string, error) {
	var outErr error

	result := varToken.ReplaceAllStringFunc(text, func(tok string) string {
		if outErr != nil {
			return tok
		}

		name := tok[1 : len(tok)-1]

		if active[name] {
			outErr = fmt.Errorf("%w through variable %q", errRecursion, name)
			return tok
		}

		val, ok := params.Get(name)
		if !ok {
			outErr = fmt.Errorf("undefined module variable %q", name)
			return tok
		}

		active[name] = true
		expanded, err := substituteVariablesRec(val, params, active)
		delete(active, name)

		if err != nil {
			outErr = err
			return tok
		}

		return expanded
	})

	if outErr != nil {
		return "", outErr
	}

	return result, nil
}

func atomizeNet(pg *graph.ProgramGraph, nb *graph.NetBundle, am *AtomizedModule, bag *diag.Bag) {
	origin := pg.Registries.Origins[nb.ID]
	nameExpr := pg.Registries.Exprs[origin.ExprID]
	span := pg.Registries.Spans.Get(nb.ID)

	netAtoms, expBag := pattern.ExpandAtoms(nameExpr, nameExpr.Raw)
	bag.Extend(expBag)

	if expBag.HasErrors() {
		return
	}

	N := len(netAtoms)

	atomizedNets := make([]*AtomizedNet, N)

	for i, a := range netAtoms {
		if existing, exists := am.Nets[a.Literal]; exists {
			bag.Emit(diag.Errorf("IR-016", span, "duplicate net name %q after atomization; first occurrence kept", a.Literal))
			atomizedNets[i] = existing
			continue
		}

		an := &AtomizedNet{
			Name: a.Literal,
			Origin: AtomOriginInfo{
				ExpressionID: origin.ExprID,
				SegmentIndex: a.SegmentIndex,
				AtomIndex:    a.AtomIndex,
				BaseName:     a.BaseName,
				PatternParts: a.SuffixParts,
			},
		}

		am.Nets[a.Literal] = an
		am.NetOrder = append(am.NetOrder, a.Literal)
		atomizedNets[i] = an
	}

	for _, epID := range nb.Endpoints {
		eb := pg.Endpoints[epID]
		epExpr := pg.Registries.Exprs[eb.PortExprID]

		epAtoms, epBag := pattern.AtomizeEndpoint(epExpr, epExpr.Raw)
		bag.Extend(epBag)

		if epBag.HasErrors() {
			continue
		}

		K := len(epAtoms)

		bind := func(netIdx int, ep pattern.EndpointAtom) {
			if _, ok := am.Instances[ep.Instance]; !ok {
				bag.Emit(diag.Errorf("IR-004", span, "endpoint %q.%q references unknown instance %q", ep.Instance, ep.Pin, ep.Instance))
				return
			}

			target := atomizedNets[netIdx]
			if target == nil {
				return
			}

			target.Endpoints = append(target.Endpoints, AtomizedEndpoint{Instance: ep.Instance, Pin: ep.Pin})
		}

		switch {
		case K == N:
			for i, ep := range epAtoms {
				bind(i, ep)
			}
		case K == 1:
			for i := 0; i < N; i++ {
				bind(i, epAtoms[0])
			}
		default:
			if !bindTaggedAxisBroadcast(netAtoms, epAtoms, bind) {
				netAxes := pattern.Axes(nameExpr, nameExpr.Raw)
				epAxes := pattern.Axes(epExpr, epExpr.Raw)
				bag.Emit(diag.Errorf("IR-006", span,
					"net %q (axes %v, %d atoms) and endpoint %q (axes %v, %d atoms) cannot be bound: lengths neither match nor broadcast",
					nameExpr.Raw, netAxes, N, epExpr.Raw, epAxes, K))
			}
		}
	}
}

// bindTaggedAxisBroadcast implements the partial-broadcast case of spec
// §4.2: when neither K==N nor K==1 applies, the endpoint's axis tags must
// be a subsequence of the net's, and the endpoint broadcasts across every
// net atom whose values agree on the axes the endpoint does carry (any
// axis only the net has is broadcast across individually). Returns false
// (binding nothing) when the endpoint's axes aren't a subsequence of the
// net's, or when some endpoint atom matches no net atom, leaving the
// caller to raise IR-006.
func bindTaggedAxisBroadcast(netAtoms []pattern.AtomOrigin, epAtoms []pattern.EndpointAtom, bind func(netIdx int, ep pattern.EndpointAtom)) bool {
	if len(epAtoms) == 0 || !isAxisSubsequence(epAtoms[0].Axes, firstAxes(netAtoms)) {
		return false
	}

	bound := false

	for _, ep := range epAtoms {
		matchedAny := false

		for i, na := range netAtoms {
			if axisValuesMatch(na, ep) {
				bind(i, ep)
				matchedAny = true
				bound = true
			}
		}

		if !matchedAny {
			return false
		}
	}

	return bound
}

func firstAxes(atoms []pattern.AtomOrigin) []string {
	if len(atoms) == 0 {
		return nil
	}
	return atoms[0].Axes
}

// isAxisSubsequence reports whether every axis id in sub appears, in
// order, within full (not necessarily contiguously).
func isAxisSubsequence(sub, full []string) bool {
	i := 0
	for _, axis := range full {
		if i == len(sub) {
			break
		}
		if axis == sub[i] {
			i++
		}
	}
	return i == len(sub)
}

// axisValuesMatch reports whether the net atom and endpoint atom agree on
// every axis the endpoint carries.
func axisValuesMatch(net pattern.AtomOrigin, ep pattern.EndpointAtom) bool {
	for j, axis := range ep.Axes {
		idx := indexOfAxis(net.Axes, axis)
		if idx < 0 {
			return false
		}
		if !net.SuffixParts[idx].Equal(ep.Values[j]) {
			return false
		}
	}
	return true
}

func indexOfAxis(axes []string, axis string) int {
	for i, a := range axes {
		if a == axis {
			return i
		}
	}
	return -1
}

