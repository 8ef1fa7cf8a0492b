// Package backend implements the backend template engine (C9): a
// hand-rolled single-brace placeholder renderer, independent of Go's
// text/template package because the `{name}`/`{ports}`/`{params}`/`{key}`
// placeholder grammar this language defines is not Go template syntax. On
// call lines `{name}` is the instance name; module call lines also expose
// `{ref}`, the emitted name of the referenced module. See spec §4.10.
package backend

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/netlist"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// SystemTemplates is the required template set every backend config must
// declare (spec's `system_devices`).
type SystemTemplates struct {
	NetlistHeader      string
	NetlistFooter      string
	SubcktHeader       string
	SubcktHeaderParams string
	SubcktCall         string
	SubcktCallParams   string
}

func (s SystemTemplates) subcktHeaderFor(hasParams bool) string {
	if hasParams {
		return s.SubcktHeaderParams
	}
	return s.SubcktHeader
}

func (s SystemTemplates) subcktCallFor(hasParams bool) string {
	if hasParams {
		return s.SubcktCallParams
	}
	return s.SubcktCall
}

// Config is one backend's full rendering contract, as loaded from YAML by
// the external backendcfg collaborator. Per-device instance templates live
// on netlist.Device.Backends (populated from the device's own `backends:`
// declaration), keyed by this Name, not here.
type Config struct {
	Name string
	// Extension is the verbatim output filename suffix (e.g. ".cir").
	Extension string
	// CommentPrefix prefixes generated comment lines (unused by Render
	// itself; exposed for callers that emit provenance comments).
	CommentPrefix string
	System        SystemTemplates
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render assembles an entire backend text file for design, wrapping every
// non-top module (and the top when topAsSubckt is set) in a subckt
// block, emitting device/module call lines inside each.
func Render(design *netlist.Design, cfg Config, topAsSubckt bool) (string, diag.Bag) {
	var bag diag.Bag
	var out strings.Builder

	header, hbag := substitute(cfg.System.NetlistHeader, map[string]string{"name": design.Top})
	bag.Extend(hbag)
	writeNonEmpty(&out, header)

	modulesByName := make(map[string]netlist.Module, len(design.Modules))
	for _, m := range design.Modules {
		modulesByName[m.Name] = m
	}

	devicesByName := make(map[string]netlist.Device, len(design.Devices))
	for _, d := range design.Devices {
		devicesByName[d.Name] = d
	}

	for _, mod := range design.Modules {
		isTop := mod.Name == design.Top
		wrap := !isTop || topAsSubckt

		if wrap {
			hdrTmpl := cfg.System.subcktHeaderFor(len(mod.Parameters) > 0)
			hdr, hb := substitute(hdrTmpl, moduleFields(mod.Name, mod.Ports, mod.Parameters))
			bag.Extend(hb)
			writeNonEmpty(&out, hdr)
		}

		for _, inst := range mod.Instances {
			line, lb := renderInstanceCall(cfg, inst, modulesByName, devicesByName)
			bag.Extend(lb)
			writeNonEmpty(&out, line)
		}
	}

	footer, fbag := substitute(cfg.System.NetlistFooter, map[string]string{"name": design.Top})
	bag.Extend(fbag)
	writeNonEmpty(&out, footer)

	return out.String(), bag
}

func renderInstanceCall(cfg Config, inst netlist.Instance, modulesByName map[string]netlist.Module, devicesByName map[string]netlist.Device) (string, diag.Bag) {
	var bag diag.Bag

	if inst.IsDevice {
		dev, ok := devicesByName[inst.Ref]
		if !ok {
			bag.Emit(diag.Errorf("EMIT-002", sourcemap.Span{}, "no device registered for %q", inst.Ref))
			return "", bag
		}

		tmpl, ok := dev.Backends[cfg.Name]
		if !ok {
			bag.Emit(diag.Errorf("EMIT-002", sourcemap.Span{}, "device %q declares no template for backend %q", inst.Ref, cfg.Name))
			return "", bag
		}

		fields := instanceFields(inst.Name, orderedPorts(dev.Ports, inst.Conns), inst.Parameters)
		return substitute(tmpl, fields)
	}

	target, ok := modulesByName[inst.Ref]
	if !ok {
		bag.Emit(diag.Errorf("EMIT-004", sourcemap.Span{}, "instance %q references unprojected module %q", inst.Name, inst.Ref))
		return "", bag
	}

	tmpl := cfg.System.subcktCallFor(len(inst.Parameters) > 0)
	fields := instanceFields(inst.Name, orderedPorts(target.Ports, inst.Conns), inst.Parameters)
	fields["ref"] = inst.Ref
	return substitute(tmpl, fields)
}

func orderedPorts(targetPorts []string, conns map[string]string) []string {
	ports := make([]string, len(targetPorts))
	for i, p := range targetPorts {
		ports[i] = conns[p]
	}
	return ports
}

func moduleFields(name string, ports []string, params map[string]string) map[string]string {
	return instanceFields(name, ports, params)
}

func instanceFields(name string, ports []string, params map[string]string) map[string]string {
	fields := map[string]string{"name": name}

	if len(ports) > 0 {
		fields["ports"] = strings.Join(ports, " ")
	} else {
		fields["ports"] = ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, params[k]))
		fields[k] = params[k]
	}
	fields["params"] = strings.Join(parts, " ")

	return fields
}

func substitute(template string, fields map[string]string) (string, diag.Bag) {
	var bag diag.Bag

	result := placeholderRe.ReplaceAllStringFunc(template, func(tok string) string {
		key := tok[1 : len(tok)-1]

		val, ok := fields[key]
		if !ok {
			bag.Emit(diag.Errorf("EMIT-003", sourcemap.Span{}, "unknown placeholder {%s}", key))
			return tok
		}

		return val
	})

	if bag.HasErrors() {
		return "", bag
	}

	return collapseWhitespace(result), bag
}

var runOfSpaces = regexp.MustCompile(`[ \t]+`)

// collapseWhitespace ensures an empty {ports} or {params} substitution
// doesn't leave stray blanks: runs of horizontal whitespace collapse to one
// space, and each line is trimmed.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(runOfSpaces.ReplaceAllString(line, " "))
	}
	return strings.Join(lines, "\n")
}

func writeNonEmpty(out *strings.Builder, s string) {
	if s == "" {
		return
	}
	out.WriteString(s)
	out.WriteString("\n")
}
