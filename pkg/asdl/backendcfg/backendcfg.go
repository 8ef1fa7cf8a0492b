// Package backendcfg loads a backend's YAML configuration file into a
// backend.Config, validating the required system_devices template set. See
// spec §6.1.
package backendcfg

import (
	"github.com/asdl-lang/asdlc/pkg/asdl/backend"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
	"gopkg.in/yaml.v3"
)

// requiredSystemDevices is the fixed system_devices template set every
// backend config must declare (spec §4.10, §6.1).
var requiredSystemDevices = []string{
	"__netlist_header__",
	"__netlist_footer__",
	"__subckt_header__",
	"__subckt_header_params__",
	"__subckt_call__",
	"__subckt_call_params__",
}

type rawDeviceBackend struct {
	Template string `yaml:"template"`
}

type rawConfig struct {
	Extension     string                                 `yaml:"extension"`
	CommentPrefix string                                  `yaml:"comment_prefix"`
	SystemDevices map[string]string                       `yaml:"system_devices"`
	Devices       map[string]map[string]rawDeviceBackend `yaml:"devices"`
}

// Result is a loaded backend config: the rendering contract plus any
// fallback per-device templates this config supplies for devices whose own
// ASDL declaration carries no `backends:` entry for this backend name.
type Result struct {
	Name             string
	Config           backend.Config
	FallbackDevices  map[string]map[string]string // device symbol -> backend name -> template
}

// Load parses and validates a backend config file's contents. name is the
// backend identifier this config is registered under (e.g. "ngspice"),
// matched against netlist.Device.Backends / ast.DeviceDecl.Backends keys.
func Load(name, path string, contents []byte) (Result, diag.Bag) {
	var bag diag.Bag

	var raw rawConfig
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		bag.Emit(diag.Errorf("EMIT-005", sourcemap.Span{File: path}, "malformed backend config: %s", err))
		return Result{}, bag
	}

	for _, key := range requiredSystemDevices {
		if _, ok := raw.SystemDevices[key]; !ok {
			bag.Emit(diag.Errorf("EMIT-006", sourcemap.Span{File: path}, "backend config %q missing required system device template %q", name, key))
		}
	}

	if bag.HasErrors() {
		return Result{}, bag
	}

	cfg := backend.Config{
		Name:          name,
		Extension:     raw.Extension,
		CommentPrefix: raw.CommentPrefix,
		System: backend.SystemTemplates{
			NetlistHeader:      raw.SystemDevices["__netlist_header__"],
			NetlistFooter:      raw.SystemDevices["__netlist_footer__"],
			SubcktHeader:       raw.SystemDevices["__subckt_header__"],
			SubcktHeaderParams: raw.SystemDevices["__subckt_header_params__"],
			SubcktCall:         raw.SystemDevices["__subckt_call__"],
			SubcktCallParams:   raw.SystemDevices["__subckt_call_params__"],
		},
	}

	fallback := make(map[string]map[string]string, len(raw.Devices))
	for symbol, perBackend := range raw.Devices {
		entry, ok := perBackend[name]
		if !ok || entry.Template == "" {
			continue
		}
		if fallback[symbol] == nil {
			fallback[symbol] = make(map[string]string)
		}
		fallback[symbol][name] = entry.Template
	}

	return Result{Name: name, Config: cfg, FallbackDevices: fallback}, bag
}

// ApplyFallbacks merges this config's per-device fallback templates into
// devices, for any device that declares no template of its own for this
// backend name.
func ApplyFallbacks(devices map[string]map[string]string, fallback map[string]map[string]string, backendName string) {
	for symbol, perBackend := range fallback {
		tmpl := perBackend[backendName]
		if tmpl == "" {
			continue
		}
		if devices[symbol] == nil {
			devices[symbol] = make(map[string]string)
		}
		if _, ok := devices[symbol][backendName]; !ok {
			devices[symbol][backendName] = tmpl
		}
	}
}
