// Package netlist implements NetlistIR lowering and reachable-only emission
// (C8): projecting an AtomizedProgramGraph, with view bindings optionally
// applied, into the emission-oriented dataclass graph backend templates
// render from. See spec §3.7 and §4.9.
package netlist

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/asdl-lang/asdlc/pkg/asdl/atomizer"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/hierarchy"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// Backend is one device's rendering contract for one backend name.
type Backend struct {
	Name     string
	Template string
}

// Device is a realized primitive device definition, reconstructed from the
// upstream registries for every distinct device reachable in the design.
type Device struct {
	Name       string
	Ports      []string
	Parameters map[string]string
	Backends   map[string]string
}

// Instance is one realized instance within a Module: either a device call
// or a module (subckt) call, identified uniformly by Ref (the emitted
// target name).
type Instance struct {
	Name       string
	Ref        string
	IsDevice   bool
	Conns      map[string]string // pin -> net, within the owning module
	Parameters map[string]string
	Origin     *atomizer.AtomOriginInfo
}

// Module is a realized, reachable module projected into NetlistIR.
type Module struct {
	Name       string
	Ports      []string
	Nets       []string
	Instances  []Instance
	Parameters map[string]string
	Origin     *atomizer.AtomOriginInfo
}

// Design is the root NetlistIR dataclass graph.
type Design struct {
	Modules []Module
	Devices []Device
	Top     string
	// NameByModuleID maps each reachable module's upstream StableID to its
	// emitted name, exposed so collaborators that also need to relate
	// hierarchy-walk entries to emitted names (the query facade) don't have
	// to re-derive it with a second traversal over Design.
	NameByModuleID map[graph.StableID]string
}

var nonIdentChar = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Lower projects the reachable subset of apg, rooted at topID, into a
// Design. bindings optionally carries view-binding resolutions keyed by
// full instance path (spec §4.7's sidecar), overriding the instance's
// authored module reference for that one instance.
func Lower(apg *atomizer.AtomizedProgramGraph, topID graph.StableID, bindings map[string]string) (*Design, diag.Bag) {
	var bag diag.Bag

	l := &lowerer{apg: apg, bindings: bindings, nameOf: make(map[graph.StableID]string), devices: make(map[string]Device), targetOf: make(map[instanceKey]graph.StableID)}

	l.assignNames(topID)

	design := &Design{Top: l.nameOf[topID], NameByModuleID: l.nameOf}

	for _, modID := range l.order {
		am := apg.Modules[modID]

		mod, modBag := l.projectModule(am, modID)
		bag.Extend(modBag)

		design.Modules = append(design.Modules, mod)
	}

	names := make([]string, 0, len(l.devices))
	for name := range l.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		design.Devices = append(design.Devices, l.devices[name])
	}

	return design, bag
}

// instanceKey identifies one instance within one realized module, used to
// remember which target each instance resolved to (after any view-binding
// override) at the point the shared hierarchy walk discovered it.
type instanceKey struct {
	ModuleID graph.StableID
	Instance string
}

type lowerer struct {
	apg      *atomizer.AtomizedProgramGraph
	bindings map[string]string

	nameOf   map[graph.StableID]string
	order    []graph.StableID
	used     map[string]int
	targetOf map[instanceKey]graph.StableID

	devices map[string]Device
}

// assignNames drives the single shared hierarchy.TraverseHierarchy walk
// (spec §9), honoring any view-binding override, and from it allocates a
// collision-free emitted name for every reachable module the first time the
// walk reaches it. Each module-valued instance's resolved target is
// recorded in targetOf, keyed by the module it appears in, so projectModule
// can later look up the same (override-aware) target without threading
// instance paths through it.
func (l *lowerer) assignNames(topID graph.StableID) {
	am := l.apg.Modules[topID]
	if am == nil {
		return
	}

	l.nameOf[topID] = l.allocateName(am.Symbol.Cell, am.Symbol.View)
	l.order = append(l.order, topID)

	entries, _ := hierarchy.TraverseHierarchy(l.apg, topID, true, l.bindings)

	stack := []graph.StableID{topID}

	for _, e := range entries {
		if len(stack) > e.Depth+1 {
			stack = stack[:e.Depth+1]
		}
		parent := stack[e.Depth]

		switch e.Kind {
		case hierarchy.ModuleNode:
			l.targetOf[instanceKey{parent, e.InstanceLeaf}] = e.ModuleID

			if _, seen := l.nameOf[e.ModuleID]; !seen {
				if tam := l.apg.Modules[e.ModuleID]; tam != nil {
					l.nameOf[e.ModuleID] = l.allocateName(tam.Symbol.Cell, tam.Symbol.View)
					l.order = append(l.order, e.ModuleID)
				}
			}

			stack = append(stack, e.ModuleID)
		case hierarchy.DeviceNode:
			l.registerDeviceByID(e.DeviceID)
		}
	}
}

func (l *lowerer) allocateName(cell, view string) string {
	base := cell
	if view != "" && view != "default" {
		base = cell + "_" + sanitize(view)
	}

	if l.used == nil {
		l.used = make(map[string]int)
	}

	n := l.used[base]
	l.used[base] = n + 1

	if n == 0 {
		return base
	}

	return fmt.Sprintf("%s__%d", base, n+1)
}

func sanitize(s string) string {
	return nonIdentChar.ReplaceAllString(s, "_")
}

func (l *lowerer) registerDeviceByID(devID graph.StableID) {
	def, ok := l.apg.Upstream.Devices[devID]
	if !ok {
		return
	}

	symbol := def.Symbol
	if _, ok := l.devices[symbol]; ok {
		return
	}

	params := make(map[string]string)
	if def.Parameters != nil {
		for _, k := range def.Parameters.Keys() {
			v, _ := def.Parameters.Get(k)
			params[k] = v
		}
	}

	l.devices[symbol] = Device{
		Name:       symbol,
		Ports:      def.Ports,
		Parameters: params,
		Backends:   def.Backends,
	}
}

func (l *lowerer) projectModule(am *atomizer.AtomizedModule, modID graph.StableID) (Module, diag.Bag) {
	var bag diag.Bag

	mod := Module{
		Name:       l.nameOf[modID],
		Ports:      append([]string(nil), am.Ports...),
		Nets:       append([]string(nil), am.NetOrder...),
		Parameters: map[string]string{},
	}

	connsByInstance := make(map[string]map[string]string, len(am.InstanceOrder))
	for _, netName := range am.NetOrder {
		net := am.Nets[netName]
		for _, ep := range net.Endpoints {
			if connsByInstance[ep.Instance] == nil {
				connsByInstance[ep.Instance] = make(map[string]string)
			}
			connsByInstance[ep.Instance][ep.Pin] = netName
		}
	}

	for _, instName := range am.InstanceOrder {
		inst := am.Instances[instName]
		origin := inst.Origin

		ni := Instance{
			Name:       instName,
			IsDevice:   inst.RefIsDevice,
			Conns:      connsByInstance[instName],
			Parameters: inst.Params,
			Origin:     &origin,
		}

		if inst.RefIsDevice {
			ni.Ref = inst.RefSymbol.Cell
			if _, ok := l.devices[ni.Ref]; !ok {
				bag.Emit(diag.Errorf("EMIT-002", sourcemap.Span{}, "instance %s: missing backend template registry entry for device %q", instName, ni.Ref))
			}
		} else {
			targetID, ok := l.targetOf[instanceKey{modID, instName}]
			if !ok {
				bag.Emit(diag.Errorf("EMIT-004", sourcemap.Span{}, "instance %s: unresolved module reference %q", instName, inst.RefSymbol))
				continue
			}
			ni.Ref = l.nameOf[targetID]
		}

		mod.Instances = append(mod.Instances, ni)
	}

	return mod, bag
}
