package asdlrc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResolvesRelativePaths(t *testing.T) {
	const yamlSrc = `
schema_version: 1
lib_roots: ["lib", "${ASDLRC_DIR}/vendor"]
backend_config: "backends/ngspice.yaml"
env:
  ASDL_BACKEND_CONFIG: "backends/ngspice.yaml"
`
	rc, bag := Load("/proj/.asdlrc", []byte(yamlSrc))
	require.False(t, bag.HasErrors(), "unexpected errors: %v", bag.Errors())

	assert.Equal(t, []string{filepath.Clean("/proj/lib"), filepath.Clean("/proj/vendor")}, rc.LibRoots)
	assert.Equal(t, filepath.Clean("/proj/backends/ngspice.yaml"), rc.BackendConfig)
}

func TestLoadRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, bag := Load("/proj/.asdlrc", []byte("schema_version: 2\n"))
	require.True(t, bag.HasErrors())
	assert.Equal(t, "AST-021", bag.Errors()[0].Code)
}

func TestApplyEnvNeverOverwritesExistingKey(t *testing.T) {
	t.Setenv("ASDL_EXISTING", "original")
	os.Unsetenv("ASDL_NEW_KEY")

	rc := RC{Env: map[string]string{"ASDL_EXISTING": "override", "ASDL_NEW_KEY": "new"}}
	rc.ApplyEnv()

	assert.Equal(t, "original", os.Getenv("ASDL_EXISTING"))
	assert.Equal(t, "new", os.Getenv("ASDL_NEW_KEY"))
}
