package atomizer

import (
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// Verify runs the stateless post-atomization integrity checks, gated by the
// caller on zero upstream errors (spec §4.6.4). It re-derives facts already
// implied by construction, as a defense against future atomization bugs
// rather than a first line of defense.
func Verify(apg *AtomizedProgramGraph) diag.Bag {
	var bag diag.Bag

	for _, modID := range apg.ModuleOrder {
		am := apg.Modules[modID]

		seenNet := make(map[string]bool, len(am.NetOrder))
		for _, name := range am.NetOrder {
			if seenNet[name] {
				bag.Emit(diag.Errorf("IR-050", sourcemap.Span{}, "module %s: net %q is not unique after atomization", am.Symbol, name))
			}
			seenNet[name] = true
		}

		seenInst := make(map[string]bool, len(am.InstanceOrder))
		for _, name := range am.InstanceOrder {
			if seenInst[name] {
				bag.Emit(diag.Errorf("IR-051", sourcemap.Span{}, "module %s: instance %q is not unique after atomization", am.Symbol, name))
			}
			seenInst[name] = true
		}

		for _, netName := range am.NetOrder {
			net := am.Nets[netName]
			for _, ep := range net.Endpoints {
				if _, ok := am.Instances[ep.Instance]; !ok {
					bag.Emit(diag.Errorf("IR-052", sourcemap.Span{}, "module %s: net %q references unresolved instance %q", am.Symbol, netName, ep.Instance))
				}
			}
		}

		for _, instName := range am.InstanceOrder {
			inst := am.Instances[instName]
			if inst.RefFileID == "" {
				bag.Emit(diag.Errorf("IR-053", sourcemap.Span{}, "module %s: instance %q has no resolved reference", am.Symbol, instName))
			}
		}

		portsByInstance := make(map[string]map[string]bool, len(am.InstanceOrder))
		for _, instName := range am.InstanceOrder {
			ports, ok := targetPorts(apg, am.Instances[instName])
			if !ok {
				continue
			}
			set := make(map[string]bool, len(ports))
			for _, p := range ports {
				set[p] = true
			}
			portsByInstance[instName] = set
		}

		for _, netName := range am.NetOrder {
			net := am.Nets[netName]
			for _, ep := range net.Endpoints {
				ports, ok := portsByInstance[ep.Instance]
				if !ok {
					continue
				}
				if !ports[ep.Pin] {
					bag.Emit(diag.Errorf("IR-054", sourcemap.Span{}, "module %s: net %q endpoint %s.%s references pin %q not declared as a port by instance %q's target", am.Symbol, netName, ep.Instance, ep.Pin, ep.Pin, ep.Instance))
				}
			}
		}
	}

	return bag
}

// targetPorts resolves the declared port list of inst's referenced
// module/device, so Verify can confirm every endpoint's pin is one of
// them (spec §3.6, §8's "every conn.port ... exists in the referenced
// module/device's port list" invariant). Returns ok=false when the
// reference itself didn't resolve (already reported as IR-052/IR-053).
func targetPorts(apg *AtomizedProgramGraph, inst *AtomizedInstance) ([]string, bool) {
	targetID, ok := apg.Upstream.SymbolIndex[inst.RefFileID][inst.RefSymbol.String()]
	if !ok {
		return nil, false
	}

	if inst.RefIsDevice {
		def, ok := apg.Upstream.Devices[targetID]
		if !ok {
			return nil, false
		}
		return def.Ports, true
	}

	mod, ok := apg.Modules[targetID]
	if !ok {
		return nil, false
	}

	return mod.Ports, true
}
