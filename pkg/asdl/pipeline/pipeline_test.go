package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diffPairEntry = `
devices:
  nfet:
    ports: [D, G, S]
    backends:
      ngspice: "M{name} {ports} nfet L={L} W={W}"

modules:
  used:
    nets:
      $D: [["MN.D"]]
      $G: [["MN.G"]]
      $S: [["MN.S"]]
    instances:
      MN: "nfet(L=1u W=1u)"

  top:
    nets:
      $VDD: []
    instances:
      X0: "used"

top: top
`

const ngspiceBackendConfig = `
extension: .cir
comment_prefix: "*"
system_devices:
  __netlist_header__: "* netlist\n"
  __netlist_footer__: "* end\n"
  __subckt_header__: ".subckt {name} {ports}\n"
  __subckt_header_params__: ".subckt {name} {ports} {params}\n"
  __subckt_call__: "X{name} {ports} {ref}\n"
  __subckt_call_params__: "X{name} {ports} {ref} {params}\n"
`

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestRunEndToEndProducesRenderedNetlist(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "top.asdl", diffPairEntry)
	backendCfgPath := writeFile(t, dir, "ngspice.yaml", ngspiceBackendConfig)

	result := Run(Options{
		EntryPath:         entry,
		ExplicitTop:       "top",
		BackendName:       "ngspice",
		BackendConfigPath: backendCfgPath,
	})

	require.False(t, result.Diagnostics.HasErrors(), "unexpected errors: %v", result.Diagnostics.Errors())
	require.NotNil(t, result.Design)
	assert.Contains(t, result.Rendered, ".subckt used")
	assert.Contains(t, result.Rendered, "MMN D G S nfet L=1u W=1u")
	assert.Contains(t, result.Rendered, "XX0 used")
}

func TestRunStopsAtImportResolutionOnMissingEntry(t *testing.T) {
	result := Run(Options{EntryPath: "/does/not/exist.asdl"})

	require.True(t, result.Diagnostics.HasErrors())
	assert.Nil(t, result.Design)
	assert.Empty(t, result.Rendered)
}

func TestRunWithoutBackendConfigStopsAfterLowering(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "top.asdl", diffPairEntry)

	result := Run(Options{EntryPath: entry, ExplicitTop: "top"})

	require.False(t, result.Diagnostics.HasErrors(), "unexpected errors: %v", result.Diagnostics.Errors())
	require.NotNil(t, result.Design)
	assert.Empty(t, result.Rendered, "no backend config supplied, so no rendering should happen")
}

func TestRunDumpHooksReceiveDeterministicText(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "top.asdl", diffPairEntry)

	var patterned, atomized string
	result := Run(Options{
		EntryPath:     entry,
		ExplicitTop:   "top",
		DumpPatterned: func(s string) { patterned = s },
		DumpAtomized:  func(s string) { atomized = s },
	})

	require.False(t, result.Diagnostics.HasErrors(), "unexpected errors: %v", result.Diagnostics.Errors())
	assert.Contains(t, patterned, "module")
	assert.Contains(t, atomized, "instance")
}
