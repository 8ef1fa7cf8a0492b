package graph

import (
	"strings"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/importer"
	"github.com/asdl-lang/asdlc/pkg/asdl/paramtext"
	"github.com/asdl-lang/asdlc/pkg/asdl/pattern"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// Build lowers every document reachable in db into a single ProgramGraph
// (spec §4.5). One id Allocator serves every file, taken in db.FileIDs()
// order, so no id is handed out twice and ids are stable across runs.
func Build(db *importer.ProgramDB) (*ProgramGraph, diag.Bag) {
	var bag diag.Bag

	g := NewProgramGraph()

	// Pass 1: allocate module/device ids and lower device definitions, so
	// instance-ref resolution in pass 2 can see every symbol regardless of
	// declaration order across files.
	allocs := make(map[string]*Allocator)
	alloc := NewAllocator()

	for _, fileID := range db.FileIDs() {
		doc, _ := db.Doc(fileID)
		allocs[fileID] = alloc

		for _, symText := range doc.Modules.Keys() {
			decl, _ := doc.Modules.Get(symText)
			id := alloc.Next(KindModule)

			g.Modules[id] = &ModuleGraph{
				ID:         id,
				Symbol:     decl.Symbol,
				FileID:     fileID,
				Parameters: decl.Parameters,
				Variables:  decl.Variables,
			}
			g.ModuleOrder = append(g.ModuleOrder, id)
			g.indexSymbol(fileID, symText, id)
			g.Registries.Spans.Put(id, decl.Span)
		}

		for _, symText := range doc.Devices.Keys() {
			decl, _ := doc.Devices.Get(symText)
			id := alloc.Next(KindDevice)

			backends := make(map[string]string)
			if decl.Backends != nil {
				for _, bname := range decl.Backends.Keys() {
					tmpl, _ := decl.Backends.Get(bname)
					backends[bname] = tmpl
				}
			}

			g.Devices[id] = &DeviceDef{
				ID:         id,
				Symbol:     decl.Symbol,
				FileID:     fileID,
				Ports:      decl.Ports,
				Parameters: decl.Parameters,
				Backends:   backends,
			}
			g.DeviceOrder = append(g.DeviceOrder, id)
			g.indexSymbol(fileID, symText, id)
			g.Registries.Spans.Put(id, decl.Span)
			g.Registries.BackendTemplates[decl.Symbol] = backends
		}
	}

	// Pass 2: lower module bodies (nets, instances), now that every symbol
	// in the program is indexed.
	for _, fileID := range db.FileIDs() {
		doc, _ := db.Doc(fileID)
		alloc := allocs[fileID]

		usedNS := make(map[string]bool)

		for _, symText := range doc.Modules.Keys() {
			decl, _ := doc.Modules.Get(symText)
			modID := g.SymbolIndex[fileID][symText]
			mg := g.Modules[modID]

			b := &moduleBuilder{
				g:      g,
				db:     db,
				alloc:  alloc,
				fileID: fileID,
				mod:    mg,
				named:  make(map[string]*pattern.PatternExpr),
				usedNS: usedNS,
			}

			b.lower(decl, &bag)
		}

		for _, ns := range importer.UnreferencedNamespaces(doc.Imports, usedNS) {
			bag.Emit(diag.Warningf("LINT-001", sourcemap.Span{File: fileID}, "imported namespace %q is never referenced by any instance in this file", ns))
		}
	}

	return g, bag
}

type moduleBuilder struct {
	g      *ProgramGraph
	db     *importer.ProgramDB
	alloc  *Allocator
	fileID string
	mod    *ModuleGraph
	named  map[string]*pattern.PatternExpr
	// netIDByName allows inline pin bindings and instance_defaults to find
	// or create nets by literal/patterned name within this module.
	netIDByName map[string]StableID
	// endpointTexts tracks, per net id, the raw endpoint expression texts
	// already attached to it, so a later inline pin binding that repeats
	// one can be reported as an overlap instead of silently duplicated.
	endpointTexts map[StableID]map[string]bool
	// portPromoted dedupes port promotion so a net is never appended to
	// mod.Ports twice regardless of how many callers reference it.
	portPromoted map[StableID]bool
	// usedNS records, for the owning file, every import namespace an
	// instance reference has named, shared across every module builder for
	// that file so LINT-001 can be raised once per file after all of its
	// modules have lowered.
	usedNS map[string]bool
}

func (b *moduleBuilder) lower(decl ast.ModuleDecl, bag *diag.Bag) {
	b.netIDByName = make(map[string]StableID)
	b.endpointTexts = make(map[StableID]map[string]bool)

	// Named patterns register first so <@name> substitution later succeeds.
	if decl.Patterns != nil {
		for _, name := range decl.Patterns.Keys() {
			text, _ := decl.Patterns.Get(name)
			expr, exprBag := pattern.Parse(text, decl.Span)
			bag.Extend(exprBag)
			b.named[name] = expr
		}
	}

	for _, key := range decl.Nets.Keys() {
		net, _ := decl.Nets.Get(key)
		b.lowerNet(key, net, bag)
	}

	for _, key := range decl.Instances.Keys() {
		inst, _ := decl.Instances.Get(key)
		b.lowerInstance(key, inst, decl, bag)
	}

	if decl.InstanceDefaults != nil {
		for _, key := range decl.InstanceDefaults.Keys() {
			entry, _ := decl.InstanceDefaults.Get(key)
			if strings.HasPrefix(key, "$") {
				b.promoteNetToPort(key[1:], entry.Span, bag)
			}
		}
	}
}

func (b *moduleBuilder) lowerNet(key string, net ast.NetDecl, bag *diag.Bag) {
	storageName := key
	isPort := strings.HasPrefix(key, "$")
	if isPort {
		storageName = key[1:]
	}

	if strings.Contains(storageName, ";") {
		bag.Emit(diag.Errorf("IR-003", net.Span, "spliced net name %q is not permitted", key))
		return
	}

	nameExpr, exprBag := pattern.Parse(storageName, net.Span)
	bag.Extend(exprBag)

	netID := b.alloc.Next(KindNet)
	exprID := b.alloc.Next(KindExpr)

	b.g.Registries.Exprs[exprID] = nameExpr
	b.g.Registries.ExprKinds[exprID] = "net"
	b.g.Registries.Origins[netID] = OriginRef{ExprID: exprID}
	b.g.Registries.Spans.Put(netID, net.Span)
	b.g.Registries.SchematicHints[netID] = net.Endpoints

	nb := &NetBundle{ID: netID, NameExprID: exprID}
	b.g.Nets[netID] = nb
	b.mod.Nets = append(b.mod.Nets, netID)
	b.netIDByName[storageName] = netID

	for _, group := range net.Endpoints {
		for _, epText := range group {
			b.appendEndpoint(netID, epText, net.Span, bag)
		}
	}

	if isPort {
		b.mod.Ports = append(b.mod.Ports, netID)
	}
}

// appendEndpoint parses epText as a pattern expression and attaches it as a
// new endpoint on netID, unless that exact raw text is already attached to
// the net (in which case it is an overlap, reported at the call site's
// choosing — declared endpoint lists never collide with themselves by
// construction, so only inline pin-binding callers check the return value).
func (b *moduleBuilder) appendEndpoint(netID StableID, epText string, span sourcemap.Span, bag *diag.Bag) bool {
	if b.endpointTexts[netID] == nil {
		b.endpointTexts[netID] = make(map[string]bool)
	}
	if b.endpointTexts[netID][epText] {
		return false
	}
	b.endpointTexts[netID][epText] = true

	epExpr, epBag := pattern.Parse(epText, span)
	bag.Extend(epBag)

	epExprID := b.alloc.Next(KindExpr)
	b.g.Registries.Exprs[epExprID] = epExpr
	b.g.Registries.ExprKinds[epExprID] = "endpoint"

	epID := b.alloc.Next(KindEndpoint)
	b.g.Registries.Origins[epID] = OriginRef{ExprID: epExprID}
	b.g.Registries.Spans.Put(epID, span)

	ep := &EndpointBundle{ID: epID, NetID: netID, PortExprID: epExprID}
	b.g.Endpoints[epID] = ep

	nb := b.g.Nets[netID]
	nb.Endpoints = append(nb.Endpoints, epID)

	return true
}

// ensureNet returns the id of the net named name (stripped of any `$`
// prefix), creating an empty one (with no declared endpoints of its own
// yet) on first reference. Used for nets introduced only via inline pin
// bindings or `instance_defaults`, never declared under `nets:` directly.
func (b *moduleBuilder) ensureNet(name string, span sourcemap.Span, bag *diag.Bag) StableID {
	if id, ok := b.netIDByName[name]; ok {
		return id
	}

	nameExpr, exprBag := pattern.Parse(name, span)
	bag.Extend(exprBag)

	netID := b.alloc.Next(KindNet)
	exprID := b.alloc.Next(KindExpr)

	b.g.Registries.Exprs[exprID] = nameExpr
	b.g.Registries.ExprKinds[exprID] = "net"
	b.g.Registries.Origins[netID] = OriginRef{ExprID: exprID}
	b.g.Registries.Spans.Put(netID, span)

	b.g.Nets[netID] = &NetBundle{ID: netID, NameExprID: exprID}
	b.mod.Nets = append(b.mod.Nets, netID)
	b.netIDByName[name] = netID

	return netID
}

// promoteNetToPort appends the net named name to the module's port list,
// creating it first via ensureNet if this is its first reference anywhere
// in the module. Never re-promotes a net that is already a port: used both
// for `$` instance_defaults entries and for first-seen inline-created `$`
// nets from pin bindings (spec §4.5 point 3).
func (b *moduleBuilder) promoteNetToPort(name string, span sourcemap.Span, bag *diag.Bag) {
	if b.portPromoted == nil {
		b.portPromoted = make(map[StableID]bool)
		for _, id := range b.mod.Ports {
			b.portPromoted[id] = true
		}
	}

	netID := b.ensureNet(name, span, bag)
	if b.portPromoted[netID] {
		return
	}

	b.portPromoted[netID] = true
	b.mod.Ports = append(b.mod.Ports, netID)
}

func (b *moduleBuilder) lowerInstance(key string, inst ast.InstanceDecl, modDecl ast.ModuleDecl, bag *diag.Bag) {
	refText, paramsText := inst.RefText, inst.ParamsText

	// The instance's own name is the (possibly patterned) map key, e.g.
	// "MN_<P|N>"; RefText names the module/device symbol being instanced
	// and is not itself patterned.
	nameExpr, exprBag := pattern.Parse(key, inst.Span)
	bag.Extend(exprBag)

	if len(nameExpr.Segments) == 0 {
		bag.Emit(diag.Errorf("IR-001", inst.Span, "malformed instance expression %q", key))
		return
	}

	instID := b.alloc.Next(KindInstance)
	exprID := b.alloc.Next(KindExpr)
	b.g.Registries.Exprs[exprID] = nameExpr
	b.g.Registries.ExprKinds[exprID] = "instance"
	b.g.Registries.Origins[instID] = OriginRef{ExprID: exprID}
	b.g.Registries.Spans.Put(instID, inst.Span)

	// Resolve the ref symbol: names a module/device symbol, qualified
	// (ns.cell[@view]) or unqualified (cell[@view]).
	refSym, refFileID, refIsDevice, resolveErr := b.resolveRef(refText, inst.Span)
	if resolveErr != nil {
		bag.Emit(*resolveErr)
	}

	ib := &InstanceBundle{
		ID:          instID,
		NameExprID:  exprID,
		RefSymbol:   refSym,
		RefFileID:   refFileID,
		RefIsDevice: refIsDevice,
	}

	// Merge instance_defaults with the instance's own params: defaults
	// apply first, instance-specific entries override (warning unless the
	// default entry's text carried a trailing `!`).
	merged := mergeParams(modDecl, key, paramsText, bag, inst.Span)

	for _, e := range merged {
		valExpr, valBag := pattern.Parse(e.Value, inst.Span)
		bag.Extend(valBag)

		pExprID := b.alloc.Next(KindExpr)
		b.g.Registries.Exprs[pExprID] = valExpr
		b.g.Registries.ExprKinds[pExprID] = "param"
		b.g.Registries.ParamOrigins[ParamOriginKey{InstanceID: instID, ParamName: e.Key}] = OriginRef{ExprID: pExprID}

		ib.Params = append(ib.Params, ParamBinding{Name: e.Key, ExprID: pExprID, RawText: e.Value})
	}

	b.g.Instances[instID] = ib
	b.mod.Instances = append(b.mod.Instances, instID)

	b.foldPinBindings(key, inst, bag)
}

// foldPinBindings handles the structured instance form's inline pin-to-net
// bindings: each one is folded into the named net's endpoint list as
// `instanceKey.pin`, creating the net (and, for a `$`-prefixed net name,
// promoting it to a port on first creation only) if it hasn't been declared
// already. A binding that repeats an endpoint already attached to the net
// is an overlap (§4.5 point 3).
func (b *moduleBuilder) foldPinBindings(instKey string, inst ast.InstanceDecl, bag *diag.Bag) {
	if inst.PinBindings == nil {
		return
	}

	for _, pin := range inst.PinBindings.Keys() {
		netText, _ := inst.PinBindings.Get(pin)

		isPort := strings.HasPrefix(netText, "$")
		netName := strings.TrimPrefix(netText, "$")

		if strings.Contains(netName, ";") {
			bag.Emit(diag.Errorf("IR-003", inst.Span, "spliced net name %q is not permitted in a pin binding", netText))
			continue
		}

		_, existed := b.netIDByName[netName]
		netID := b.ensureNet(netName, inst.Span, bag)
		if isPort && !existed {
			b.promoteNetToPort(netName, inst.Span, bag)
		}

		epText := instKey + "." + pin
		if !b.appendEndpoint(netID, epText, inst.Span, bag) {
			bag.Emit(diag.Errorf("IR-017", inst.Span,
				"inline pin binding %q overlaps an existing endpoint already attached to net %q", epText, netName))
		}
	}
}

func mergeParams(modDecl ast.ModuleDecl, instKey, ownText string, bag *diag.Bag, span sourcemap.Span) []paramtext.Entry {
	own, err := paramtext.Parse(ownText)
	if err != nil {
		bag.Emit(diag.Errorf("IR-014", span, "malformed instance parameters for %q: %s", instKey, err))
	}

	if modDecl.InstanceDefaults == nil {
		return own
	}

	ownKeys := make(map[string]bool, len(own))
	for _, e := range own {
		ownKeys[e.Key] = true
	}

	var merged []paramtext.Entry

	for _, defKey := range modDecl.InstanceDefaults.Keys() {
		if strings.HasPrefix(defKey, "$") {
			continue // port promotion handled separately
		}

		def, _ := modDecl.InstanceDefaults.Get(defKey)

		if ownKeys[defKey] {
			if !def.Suppress {
				bag.Emit(diag.Warningf("LINT-002", span, "instance %q overrides default parameter %q", instKey, defKey))
			}
			continue
		}

		merged = append(merged, paramtext.Entry{Key: defKey, Value: def.ValueText})
	}

	merged = append(merged, own...)

	return merged
}

func (b *moduleBuilder) resolveRef(symbolText string, span sourcemap.Span) (ast.ModuleSymbol, string, bool, *diag.Diagnostic) {
	fileID := b.fileID

	if ns, rest, ok := splitNamespace(symbolText); ok {
		if b.usedNS != nil {
			b.usedNS[ns] = true
		}

		target, found := b.db.LookupQualified(b.fileID, ns)
		if !found {
			d := diag.Errorf("IR-010", span, "unresolved qualified instance reference %q: unknown namespace %q", symbolText, ns)
			return ast.ModuleSymbol{}, "", false, &d
		}

		sym, err := ast.ParseModuleSymbol(rest)
		if err != nil {
			d := diag.Errorf("IR-010", span, "invalid module symbol %q in qualified reference", rest)
			return ast.ModuleSymbol{}, "", false, &d
		}

		if _, ok := b.g.SymbolIndex[target][rest]; !ok {
			d := diag.Errorf("IR-010", span, "unresolved qualified instance reference %q", symbolText)
			return ast.ModuleSymbol{}, "", false, &d
		}

		return sym, target, isDeviceSymbol(b.g, target, rest), nil
	}

	sym, err := ast.ParseModuleSymbol(symbolText)
	if err != nil {
		d := diag.Errorf("IR-011", span, "invalid module symbol %q", symbolText)
		return ast.ModuleSymbol{}, "", false, &d
	}

	if _, ok := b.g.SymbolIndex[fileID][symbolText]; ok {
		return sym, fileID, isDeviceSymbol(b.g, fileID, symbolText), nil
	}

	d := diag.Errorf("IR-011", span, "unresolved instance reference %q in %s", symbolText, fileID)
	return ast.ModuleSymbol{}, "", false, &d
}

func isDeviceSymbol(g *ProgramGraph, fileID, symbolText string) bool {
	id, ok := g.SymbolIndex[fileID][symbolText]
	if !ok {
		return false
	}
	_, isDevice := g.Devices[id]
	return isDevice
}

func splitNamespace(s string) (ns, rest string, ok bool) {
	for i, r := range s {
		if r == '.' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
