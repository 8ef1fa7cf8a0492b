package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/stretchr/testify/assert"
)

// fakeParser reads each "import:<namespace>:<path>" line of the file
// contents as an import directive and always declares one module, "top",
// purely to exercise the resolver without depending on the real YAML
// surface parser.
type fakeParser struct{}

func (fakeParser) ParseFile(fileID string, contents []byte) (*ast.Document, diag.Bag) {
	var bag diag.Bag

	doc := ast.NewDocument(fileID)
	doc.Modules.Set("top", ast.ModuleDecl{Symbol: ast.ModuleSymbol{Cell: "top"}})

	lines := splitLines(string(contents))
	for _, line := range lines {
		if len(line) > 7 && line[:7] == "import:" {
			rest := line[7:]
			for i, r := range rest {
				if r == ':' {
					doc.Imports.Set(rest[:i], rest[i+1:])
					break
				}
			}
		}
	}

	return doc, bag
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestResolveSimpleImport(t *testing.T) {
	dir := t.TempDir()

	libPath := filepath.Join(dir, "lib", "x.asdl")
	assert.NoError(t, os.MkdirAll(filepath.Dir(libPath), 0o755))
	assert.NoError(t, os.WriteFile(libPath, []byte("module\n"), 0o644))

	entryPath := filepath.Join(dir, "entry.asdl")
	assert.NoError(t, os.WriteFile(entryPath, []byte("import:lib:./lib/x.asdl\n"), 0o644))

	r := NewResolver(fakeParser{}, Config{})
	db, entryID, bag := r.Resolve(entryPath)

	assert.False(t, bag.HasErrors())
	assert.Len(t, db.FileIDs(), 2)

	target, ok := db.LookupQualified(entryID, "lib")
	assert.True(t, ok)

	libID, _ := CanonicalFileID(libPath)
	assert.Equal(t, libID, target)
}

func TestResolveAmbiguousLogicalImport(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	for _, root := range []string{dirA, dirB} {
		p := filepath.Join(root, "lib", "x.asdl")
		assert.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		assert.NoError(t, os.WriteFile(p, []byte("module\n"), 0o644))
	}

	entryDir := t.TempDir()
	entryPath := filepath.Join(entryDir, "entry.asdl")
	assert.NoError(t, os.WriteFile(entryPath, []byte("import:lib:lib.x\n"), 0o644))

	r := NewResolver(fakeParser{}, Config{LibRoots: []string{dirA, dirB}})
	_, _, bag := r.Resolve(entryPath)

	assert.True(t, bag.HasErrors())
	assert.Equal(t, "AST-015", bag.Errors()[0].Code)
}

func TestResolveCycle(t *testing.T) {
	dir := t.TempDir()

	aPath := filepath.Join(dir, "a.asdl")
	bPath := filepath.Join(dir, "b.asdl")

	assert.NoError(t, os.WriteFile(aPath, []byte("import:b:./b.asdl\n"), 0o644))
	assert.NoError(t, os.WriteFile(bPath, []byte("import:a:./a.asdl\n"), 0o644))

	r := NewResolver(fakeParser{}, Config{})
	_, _, bag := r.Resolve(aPath)

	assert.True(t, bag.HasErrors())
	assert.Equal(t, "AST-013", bag.Errors()[0].Code)
}
