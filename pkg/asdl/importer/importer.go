// Package importer implements the import resolver (C4): path resolution
// across relative/absolute/logical imports, the ProgramDB of parsed
// documents keyed by canonical file id, and per-file NameEnv namespace
// tables. See spec §3.4 and §4.4.
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// Parser is the external collaborator contract this resolver depends on:
// something that turns ASDL source bytes into a Document plus PARSE-NNN
// diagnostics. The real implementation lives in pkg/asdl/yamlast; tests in
// this package supply a fake.
type Parser interface {
	ParseFile(fileID string, contents []byte) (*ast.Document, diag.Bag)
}

// ProgramDB maps file_id to the parsed Document for that file, globally
// deduplicated: a file reachable under multiple namespaces is parsed and
// stored exactly once.
type ProgramDB struct {
	docs    map[string]*ast.Document
	order   []string
	NameEnv map[string]map[string]string // file_id -> namespace -> file_id
}

// Doc returns the Document for a file id, if present.
func (db *ProgramDB) Doc(fileID string) (*ast.Document, bool) {
	d, ok := db.docs[fileID]
	return d, ok
}

// NewProgramDB constructs an empty ProgramDB. Exposed so callers that
// already hold parsed Documents in memory (tests, or collaborators that
// bypass filesystem resolution entirely) can populate one directly via Add
// instead of going through Resolve.
func NewProgramDB() *ProgramDB {
	return &ProgramDB{docs: make(map[string]*ast.Document), NameEnv: make(map[string]map[string]string)}
}

// Add registers a document under a file id, in insertion order.
func (db *ProgramDB) Add(fileID string, doc *ast.Document) {
	if _, ok := db.docs[fileID]; !ok {
		db.order = append(db.order, fileID)
	}
	db.docs[fileID] = doc
	if _, ok := db.NameEnv[fileID]; !ok {
		db.NameEnv[fileID] = make(map[string]string)
	}
}

// FileIDs returns every file id in discovery order.
func (db *ProgramDB) FileIDs() []string {
	return db.order
}

// Config carries the environment the resolver needs, captured once at
// pipeline entry per the concurrency/resource model (§5): it never reads
// os.Getenv again after construction.
type Config struct {
	// LibRoots are CLI-supplied logical search roots, checked in order.
	LibRoots []string
	// AsdlLibPath is the raw ASDL_LIB_PATH value (colon-separated), checked
	// after LibRoots.
	AsdlLibPath string
}

// NewConfigFromEnv snapshots the resolver's environment-derived
// configuration exactly once; callers must not call this more than once per
// pipeline run (§5).
func NewConfigFromEnv(libRoots []string) Config {
	return Config{LibRoots: libRoots, AsdlLibPath: os.Getenv("ASDL_LIB_PATH")}
}

func (c Config) libPathEntries() []string {
	var out []string

	out = append(out, c.LibRoots...)

	if c.AsdlLibPath != "" {
		for _, e := range strings.Split(c.AsdlLibPath, ":") {
			out = append(out, expandPath(e))
		}
	}

	return out
}

func expandPath(p string) string {
	if p == "" {
		return p
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}

	p = os.Expand(p, os.Getenv)

	return filepath.Clean(p)
}

// CanonicalFileID normalizes a filesystem path into a file_id: absolute,
// `.`/`..` collapsed, symlinks NOT resolved (spec §3.4).
func CanonicalFileID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// resolution describes where an import path pointed, for error reporting.
type resolution struct {
	kind  string // "relative" | "absolute" | "logical"
	paths []string
}

// resolveImportPath implements the three-tier lookup of §4.4.
func resolveImportPath(importingFileDir, importPath string, cfg Config) resolution {
	switch {
	case strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../"):
		return resolution{kind: "relative", paths: []string{filepath.Join(importingFileDir, importPath)}}
	case filepath.IsAbs(importPath):
		return resolution{kind: "absolute", paths: []string{importPath}}
	default:
		var matches []string
		rel := logicalToRelPath(importPath)
		for _, root := range cfg.libPathEntries() {
			candidate := filepath.Join(root, rel)
			if fileExists(candidate) {
				matches = append(matches, candidate)
			}
		}
		return resolution{kind: "logical", paths: matches}
	}
}

// logicalToRelPath turns a dotted logical module path ("lib.x") into a
// relative filesystem path ("lib/x.asdl").
func logicalToRelPath(logical string) string {
	parts := strings.Split(logical, ".")
	return filepath.Join(parts...) + ".asdl"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Resolver walks the import graph of an entry file, building a ProgramDB
// and per-file NameEnv eagerly, invoking Parser for every reached file.
type Resolver struct {
	parser Parser
	cfg    Config
}

// NewResolver constructs a Resolver over the given external parser and
// environment-derived configuration.
func NewResolver(parser Parser, cfg Config) *Resolver {
	return &Resolver{parser: parser, cfg: cfg}
}

// Resolve walks imports transitively from entryPath, returning a populated
// ProgramDB and the entry file's id.
func (r *Resolver) Resolve(entryPath string) (*ProgramDB, string, diag.Bag) {
	var bag diag.Bag

	db := &ProgramDB{docs: make(map[string]*ast.Document), NameEnv: make(map[string]map[string]string)}

	entryID, err := CanonicalFileID(entryPath)
	if err != nil {
		bag.Emit(diag.Errorf("AST-010", sourcemap.Span{}, "cannot resolve entry file %q: %s", entryPath, err))
		return db, "", bag
	}

	visiting := map[string]bool{}
	chain := []string{}

	r.walk(db, entryID, visiting, chain, &bag)

	return db, entryID, bag
}

func (r *Resolver) walk(db *ProgramDB, fileID string, visiting map[string]bool, chain []string, bag *diag.Bag) {
	if visiting[fileID] {
		chain = append(chain, fileID)
		bag.Emit(diag.Errorf("AST-013", sourcemap.Span{}, "import cycle detected: %s", formatChain(chain)))
		return
	}

	if _, ok := db.docs[fileID]; ok {
		// already parsed under another namespace: legal, dedup.
		return
	}

	contents, err := os.ReadFile(fileID)
	if err != nil {
		bag.Emit(diag.Errorf("AST-010", sourcemap.Span{}, "cannot read imported file %q: %s", fileID, err))
		return
	}

	doc, parseBag := r.parser.ParseFile(fileID, contents)
	bag.Extend(parseBag)

	if doc == nil {
		return
	}

	db.docs[fileID] = doc
	db.order = append(db.order, fileID)
	db.NameEnv[fileID] = make(map[string]string)

	visiting[fileID] = true
	chain = append(chain, fileID)

	dir := filepath.Dir(fileID)

	for _, ns := range doc.Imports.Keys() {
		importPath, _ := doc.Imports.Get(ns)

		res := resolveImportPath(dir, importPath, r.cfg)

		switch {
		case len(res.paths) == 0:
			bag.Emit(diag.Errorf("AST-010", sourcemap.Span{}, "cannot resolve import %q in %s", importPath, fileID))
			continue
		case len(res.paths) > 1:
			bag.Emit(diag.Errorf("AST-015", sourcemap.Span{}, "ambiguous import %q resolves to multiple files: %s",
				importPath, strings.Join(res.paths, ", ")))
			continue
		}

		target, err := CanonicalFileID(res.paths[0])
		if err != nil {
			bag.Emit(diag.Errorf("AST-011", sourcemap.Span{}, "malformed import path %q: %s", importPath, err))
			continue
		}

		db.NameEnv[fileID][ns] = target

		r.walk(db, target, visiting, chain, bag)
	}

	delete(visiting, fileID)
}

func formatChain(chain []string) string {
	names := make([]string, len(chain))
	for i, c := range chain {
		names[i] = filepath.Base(c)
	}
	return strings.Join(names, " → ")
}

// LookupQualified resolves `ns.symbol` through a file's NameEnv, returning
// the target file id.
func (db *ProgramDB) LookupQualified(fileID, namespace string) (string, bool) {
	env, ok := db.NameEnv[fileID]
	if !ok {
		return "", false
	}
	target, ok := env[namespace]
	return target, ok
}

// UnreferencedNamespaces returns, for a given file, the imported namespaces
// that used does not mark as referenced — candidates for the LINT-001 warning emitted
// by the PatternedGraph builder once it knows what was actually used.
func UnreferencedNamespaces(imports *ast.OrderedMap[string], used map[string]bool) []string {
	var out []string
	for _, ns := range imports.Keys() {
		if !used[ns] {
			out = append(out, ns)
		}
	}
	return out
}

// String implements fmt.Stringer for diagnostics that reference a
// resolution kind, mainly for debugging/logging.
func (r resolution) String() string {
	return fmt.Sprintf("%s:%v", r.kind, r.paths)
}
