package depgraph

import (
	"testing"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/importer"
	"github.com/stretchr/testify/assert"
)

func TestBuildSortsEdgesDeterministically(t *testing.T) {
	db := importer.NewProgramDB()
	db.Add("/top.asdl", ast.NewDocument("/top.asdl"))
	db.Add("/lib/a.asdl", ast.NewDocument("/lib/a.asdl"))

	db.NameEnv["/top.asdl"]["b"] = "/lib/b.asdl"
	db.NameEnv["/top.asdl"]["a"] = "/lib/a.asdl"

	g := Build(db)

	assert.Equal(t, []string{"/top.asdl", "/lib/a.asdl"}, g.Files)
	assert.Equal(t, []Edge{
		{From: "/top.asdl", Namespace: "a", To: "/lib/a.asdl"},
		{From: "/top.asdl", Namespace: "b", To: "/lib/b.asdl"},
	}, g.Edges)
}
