package viewbind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleViewConfig = `
profiles:
  sim:
    view_order: [behave, default]
    rules:
      - match: {path: row0}
        bind: shift_row@sim
`

func TestLoadConfigParsesProfilesAndRules(t *testing.T) {
	cfg, bag := LoadConfig("/views.yaml", []byte(sampleViewConfig))
	require.False(t, bag.HasErrors(), "unexpected errors: %v", bag.Errors())

	profile, ok := cfg.Profiles["sim"]
	require.True(t, ok)
	assert.Equal(t, []string{"behave", "default"}, profile.ViewOrder)
	require.Len(t, profile.Rules, 1)
	assert.Equal(t, "row0", profile.Rules[0].Match.Path)
	assert.Equal(t, "shift_row@sim", profile.Rules[0].Bind)
}

func TestLoadConfigMalformedYAMLReportsView006(t *testing.T) {
	_, bag := LoadConfig("/bad.yaml", []byte("profiles: [unterminated"))
	require.True(t, bag.HasErrors())
	assert.Equal(t, "VIEW-006", bag.Errors()[0].Code)
}
