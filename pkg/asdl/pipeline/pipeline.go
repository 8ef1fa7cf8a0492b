// Package pipeline implements end-to-end orchestration (C12): entry file in,
// rendered backend text out, driving C3→C4→C5→C6→(C7)→C8→C9 in order and
// gating each stage on the absence of error-severity diagnostics from
// every prior stage. See spec §4.12, §7.
package pipeline

import (
	"os"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/atomizer"
	"github.com/asdl-lang/asdlc/pkg/asdl/backend"
	"github.com/asdl-lang/asdlc/pkg/asdl/backendcfg"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/hierarchy"
	"github.com/asdl-lang/asdlc/pkg/asdl/importer"
	"github.com/asdl-lang/asdlc/pkg/asdl/netlist"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
	"github.com/asdl-lang/asdlc/pkg/asdl/viewbind"
	"github.com/asdl-lang/asdlc/pkg/asdl/yamlast"
	log "github.com/sirupsen/logrus"
)

// Options configures one end-to-end pipeline run.
type Options struct {
	EntryPath   string
	LibRoots    []string
	ExplicitTop string

	ViewConfigPath string
	ViewProfile    string

	BackendName       string
	BackendConfigPath string
	TopAsSubckt       bool

	// DumpPatterned and DumpAtomized, when non-nil, receive a deterministic
	// textual dump of the PatternedGraph / AtomizedGraph respectively,
	// emitted unconditionally once that stage completes (even when the
	// stage itself has no error diagnostics to gate on yet further).
	DumpPatterned func(string)
	DumpAtomized  func(string)
}

// Result is everything a driver (CLI or query facade) needs after a run.
type Result struct {
	Diagnostics diag.Bag

	Upstream *atomizer.AtomizedProgramGraph
	TopID    graph.StableID
	EntryFileID string

	Bindings []viewbind.ResolvedViewBindingEntry
	Design   *netlist.Design
	Rendered string
}

// Run executes the full pipeline. It never panics on malformed user input;
// every failure mode surfaces as a diagnostic in the returned Result.
func Run(opts Options) Result {
	var bag diag.Bag
	var result Result

	cfg := importer.NewConfigFromEnv(opts.LibRoots)
	resolver := importer.NewResolver(yamlast.NewParser(), cfg)

	db, entryFileID, resolveBag := resolver.Resolve(opts.EntryPath)
	bag.Extend(resolveBag)
	result.EntryFileID = entryFileID

	if bag.HasErrors() {
		result.Diagnostics = bag
		return result
	}

	for _, fileID := range db.FileIDs() {
		doc, _ := db.Doc(fileID)
		bag.Extend(ast.Validate(doc))
	}

	if bag.HasErrors() {
		result.Diagnostics = bag
		return result
	}

	pg, buildBag := graph.Build(db)
	bag.Extend(buildBag)

	if opts.DumpPatterned != nil {
		opts.DumpPatterned(dumpPatternedGraph(pg))
	}

	if bag.HasErrors() {
		result.Diagnostics = bag
		return result
	}

	apg, atomizeBag := atomizer.Atomize(pg)
	bag.Extend(atomizeBag)
	result.Upstream = apg

	if opts.DumpAtomized != nil {
		opts.DumpAtomized(dumpAtomizedGraph(apg))
	}

	if bag.HasErrors() {
		result.Diagnostics = bag
		return result
	}

	policy := hierarchy.Strict
	if opts.ExplicitTop == "" {
		policy = hierarchy.Permissive
	}

	topID, notes, topBag := hierarchy.ResolveTopModule(apg, entryFileID, opts.ExplicitTop, policy)
	bag.Extend(topBag)
	result.TopID = topID

	for _, note := range notes {
		log.Debug(note)
	}

	if bag.HasErrors() {
		result.Diagnostics = bag
		return result
	}

	bindings := map[string]string{}
	if opts.ViewConfigPath != "" {
		contents, err := os.ReadFile(opts.ViewConfigPath)
		if err != nil {
			bag.Emit(diag.Errorf("VIEW-007", sourcemap.Span{File: opts.ViewConfigPath}, "cannot read view config: %s", err))
		} else {
			viewCfg, loadBag := viewbind.LoadConfig(opts.ViewConfigPath, contents)
			bag.Extend(loadBag)

			if !bag.HasErrors() {
				rows, bindBag := viewbind.Bind(apg, topID, viewCfg, opts.ViewProfile)
				bag.Extend(bindBag)
				result.Bindings = rows

				for _, row := range rows {
					bindings[instancePath(row.Path, row.Instance)] = row.Resolved
				}
			}
		}
	}

	if bag.HasErrors() {
		result.Diagnostics = bag
		return result
	}

	design, lowerBag := netlist.Lower(apg, topID, bindings)
	bag.Extend(lowerBag)
	result.Design = design

	if bag.HasErrors() {
		result.Diagnostics = bag
		return result
	}

	if opts.BackendConfigPath != "" {
		contents, err := os.ReadFile(opts.BackendConfigPath)
		if err != nil {
			bag.Emit(diag.Errorf("EMIT-007", sourcemap.Span{File: opts.BackendConfigPath}, "cannot read backend config: %s", err))
			result.Diagnostics = bag
			return result
		}

		bcResult, bcBag := backendcfg.Load(opts.BackendName, opts.BackendConfigPath, contents)
		bag.Extend(bcBag)

		if bag.HasErrors() {
			result.Diagnostics = bag
			return result
		}

		for i, dev := range design.Devices {
			if dev.Backends == nil {
				design.Devices[i].Backends = make(map[string]string)
			}
			merged := map[string]map[string]string{dev.Name: design.Devices[i].Backends}
			backendcfg.ApplyFallbacks(merged, bcResult.FallbackDevices, opts.BackendName)
		}

		text, renderBag := backend.Render(design, bcResult.Config, opts.TopAsSubckt)
		bag.Extend(renderBag)
		result.Rendered = text
	}

	result.Diagnostics = bag
	return result
}

func instancePath(path, instance string) string {
	if path == "" {
		return instance
	}
	return path + "/" + instance
}

func dumpPatternedGraph(pg *graph.ProgramGraph) string {
	var out []byte
	for _, modID := range pg.ModuleOrder {
		mg := pg.Modules[modID]
		out = append(out, "module "+string(mg.ID)+" "+mg.Symbol.String()+"\n"...)
		for _, netID := range mg.Nets {
			out = append(out, "  net "+string(netID)+"\n"...)
		}
		for _, instID := range mg.Instances {
			out = append(out, "  instance "+string(instID)+"\n"...)
		}
	}
	return string(out)
}

func dumpAtomizedGraph(apg *atomizer.AtomizedProgramGraph) string {
	var out []byte
	for _, modID := range apg.ModuleOrder {
		am := apg.Modules[modID]
		out = append(out, "module "+am.Symbol.String()+"\n"...)
		for _, name := range am.NetOrder {
			out = append(out, "  net "+name+"\n"...)
		}
		for _, name := range am.InstanceOrder {
			out = append(out, "  instance "+name+" -> "+am.Instances[name].RefSymbol.String()+"\n"...)
		}
	}
	return string(out)
}
