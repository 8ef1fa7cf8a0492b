package viewbind

import (
	"sort"

	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
	"gopkg.in/yaml.v3"
)

type rawMatch struct {
	Path     string `yaml:"path"`
	Instance string `yaml:"instance"`
	Module   string `yaml:"module"`
}

type rawRule struct {
	ID    string   `yaml:"id"`
	Match rawMatch `yaml:"match"`
	Bind  string   `yaml:"bind"`
}

type rawProfile struct {
	ViewOrder []string  `yaml:"view_order"`
	Rules     []rawRule `yaml:"rules"`
}

type rawConfig struct {
	Profiles map[string]rawProfile `yaml:"profiles"`
}

// LoadConfig parses a ViewConfig YAML document (spec §3.8). Profile name
// order isn't preserved by plain-map YAML unmarshalling, so ProfileOrder is
// populated alphabetically; this only affects profile-listing output, never
// Bind itself, which is selected by name.
func LoadConfig(path string, contents []byte) (Config, diag.Bag) {
	var bag diag.Bag

	var raw rawConfig
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		bag.Emit(diag.Errorf("VIEW-006", sourcemap.Span{File: path}, "malformed view config: %s", err))
		return Config{}, bag
	}

	cfg := Config{Profiles: make(map[string]Profile, len(raw.Profiles))}

	for name, rp := range raw.Profiles {
		profile := Profile{ViewOrder: rp.ViewOrder}
		for _, rr := range rp.Rules {
			profile.Rules = append(profile.Rules, Rule{
				ID:    rr.ID,
				Match: Match{Path: rr.Match.Path, Instance: rr.Match.Instance, Module: rr.Match.Module},
				Bind:  rr.Bind,
			})
		}
		cfg.Profiles[name] = profile
		cfg.ProfileOrder = append(cfg.ProfileOrder, name)
	}

	sort.Strings(cfg.ProfileOrder)

	return cfg, bag
}
