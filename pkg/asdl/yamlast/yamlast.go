// Package yamlast is the external surface parser: it turns the YAML text of
// one ASDL source file into an ast.Document, implementing
// importer.Parser. It walks yaml.v3's yaml.Node tree directly rather than
// unmarshalling into Go maps, since plain map unmarshalling loses the
// authoring order that feeds port order, net order, and diagnostic order
// throughout the rest of the compiler. See spec §3.2, §4.3, §6.3.
package yamlast

import (
	"fmt"
	"strings"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
	"gopkg.in/yaml.v3"
)

// Parser implements importer.Parser over YAML-authored ASDL documents.
type Parser struct{}

// NewParser constructs a Parser. It carries no state.
func NewParser() Parser {
	return Parser{}
}

// ParseFile parses one file's contents into an ast.Document, reporting
// PARSE-NNN diagnostics for malformed YAML or an unexpected document shape.
// A nil *ast.Document is returned only when the document is shaped so far
// from expectation that downstream stages cannot proceed at all (e.g. the
// YAML itself doesn't parse); otherwise a partially populated document is
// returned alongside the diagnostics so unrelated errors can still surface.
func (Parser) ParseFile(fileID string, contents []byte) (*ast.Document, diag.Bag) {
	var bag diag.Bag

	var root yaml.Node
	if err := yaml.Unmarshal(contents, &root); err != nil {
		bag.Emit(diag.Errorf("PARSE-001", sourcemap.Span{File: fileID}, "malformed YAML: %s", err))
		return nil, bag
	}

	doc := ast.NewDocument(fileID)

	if len(root.Content) == 0 {
		bag.Emit(diag.Errorf("PARSE-002", sourcemap.Span{File: fileID}, "empty document"))
		return doc, bag
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-003", spanOf(fileID, top), "document root must be a mapping"))
		return doc, bag
	}

	for _, p := range pairs(top) {
		k, v := p.Key, p.Value
		switch k.Value {
		case "imports":
			bag.Extend(parseImports(fileID, v, doc))
		case "modules":
			bag.Extend(parseModules(fileID, v, doc))
		case "devices":
			bag.Extend(parseDevices(fileID, v, doc))
		case "top":
			if v.Kind != yaml.ScalarNode {
				bag.Emit(diag.Errorf("PARSE-004", spanOf(fileID, v), "'top' must be a scalar module symbol"))
				continue
			}
			doc.Top = v.Value
		default:
			bag.Emit(diag.Warningf("PARSE-005", spanOf(fileID, k), "unknown top-level key %q", k.Value))
		}
	}

	return doc, bag
}

// pair is one (key, value) entry of a MappingNode, in authored order.
type pair struct {
	Key, Value *yaml.Node
}

// pairs returns a MappingNode's (key, value) pairs in authored order.
func pairs(m *yaml.Node) []pair {
	out := make([]pair, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		out = append(out, pair{m.Content[i], m.Content[i+1]})
	}
	return out
}

func spanOf(fileID string, n *yaml.Node) sourcemap.Span {
	if n == nil {
		return sourcemap.Span{File: fileID}
	}
	return sourcemap.NewSpan(fileID, n.Line, n.Column)
}

func parseImports(fileID string, v *yaml.Node, doc *ast.Document) diag.Bag {
	var bag diag.Bag

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-006", spanOf(fileID, v), "'imports' must be a mapping of namespace to path"))
		return bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		if val.Kind != yaml.ScalarNode {
			bag.Emit(diag.Errorf("PARSE-007", spanOf(fileID, val), "import %q: path must be a scalar string", k.Value))
			continue
		}
		doc.Imports.Set(k.Value, val.Value)
	}

	return bag
}

func parseModules(fileID string, v *yaml.Node, doc *ast.Document) diag.Bag {
	var bag diag.Bag

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-008", spanOf(fileID, v), "'modules' must be a mapping"))
		return bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		sym, err := ast.ParseModuleSymbol(k.Value)
		if err != nil {
			bag.Emit(diag.Errorf("PARSE-009", spanOf(fileID, k), "invalid module symbol %q: %s", k.Value, err))
			continue
		}

		decl, declBag := parseModuleDecl(fileID, sym, val)
		bag.Extend(declBag)
		doc.Modules.Set(k.Value, decl)
	}

	return bag
}

func parseModuleDecl(fileID string, sym ast.ModuleSymbol, v *yaml.Node) (ast.ModuleDecl, diag.Bag) {
	var bag diag.Bag

	decl := ast.ModuleDecl{
		Symbol:     sym,
		Parameters: ast.NewOrderedMap[string](),
		Variables:  ast.NewOrderedMap[string](),
		Nets:       ast.NewOrderedMap[ast.NetDecl](),
		Instances:  ast.NewOrderedMap[ast.InstanceDecl](),
		Patterns:   ast.NewOrderedMap[string](),
		Span:       spanOf(fileID, v),
	}

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-010", spanOf(fileID, v), "module %q must be a mapping", sym))
		return decl, bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		switch k.Value {
		case "ports":
			ports, b := scalarList(fileID, val)
			bag.Extend(b)
			decl.Ports = ports
		case "parameters":
			m, b := stringMap(fileID, val)
			bag.Extend(b)
			decl.Parameters = m
		case "variables":
			m, b := stringMap(fileID, val)
			bag.Extend(b)
			decl.Variables = m
		case "nets":
			nets, b := parseNets(fileID, val)
			bag.Extend(b)
			decl.Nets = nets
		case "instances":
			insts, b := parseInstances(fileID, val)
			bag.Extend(b)
			decl.Instances = insts
		case "patterns":
			m, b := stringMap(fileID, val)
			bag.Extend(b)
			decl.Patterns = m
		case "instance_defaults":
			m, b := parseInstanceDefaults(fileID, val)
			bag.Extend(b)
			decl.InstanceDefaults = m
		case "docstring":
			if val.Kind == yaml.ScalarNode {
				decl.Docstring = val.Value
			}
		default:
			bag.Emit(diag.Warningf("PARSE-005", spanOf(fileID, k), "module %q: unknown key %q", sym, k.Value))
		}
	}

	return decl, bag
}

func scalarList(fileID string, v *yaml.Node) ([]string, diag.Bag) {
	var bag diag.Bag
	var out []string

	if v.Kind != yaml.SequenceNode {
		bag.Emit(diag.Errorf("PARSE-011", spanOf(fileID, v), "expected a YAML list"))
		return out, bag
	}

	for _, item := range v.Content {
		if item.Kind != yaml.ScalarNode {
			bag.Emit(diag.Errorf("PARSE-012", spanOf(fileID, item), "expected a scalar list entry"))
			continue
		}
		out = append(out, item.Value)
	}

	return out, bag
}

func stringMap(fileID string, v *yaml.Node) (*ast.OrderedMap[string], diag.Bag) {
	var bag diag.Bag
	m := ast.NewOrderedMap[string]()

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-013", spanOf(fileID, v), "expected a YAML mapping"))
		return m, bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		if val.Kind != yaml.ScalarNode {
			bag.Emit(diag.Errorf("PARSE-014", spanOf(fileID, val), "%q: expected a scalar value", k.Value))
			continue
		}
		m.Set(k.Value, val.Value)
	}

	return m, bag
}

func parseNets(fileID string, v *yaml.Node) (*ast.OrderedMap[ast.NetDecl], diag.Bag) {
	var bag diag.Bag
	m := ast.NewOrderedMap[ast.NetDecl]()

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-015", spanOf(fileID, v), "'nets' must be a mapping"))
		return m, bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		net := ast.NetDecl{NameText: k.Value, Span: spanOf(fileID, val)}

		switch val.Kind {
		case yaml.SequenceNode:
			for _, group := range val.Content {
				switch group.Kind {
				case yaml.SequenceNode:
					endpoints, b := scalarList(fileID, group)
					bag.Extend(b)
					net.Endpoints = append(net.Endpoints, endpoints)
				case yaml.ScalarNode:
					bag.Emit(diag.Errorf("AST-006", spanOf(fileID, group),
						"net %q: string-form endpoints are rejected, endpoint lists must be YAML lists of instance.pin strings", k.Value))
				default:
					bag.Emit(diag.Errorf("PARSE-016", spanOf(fileID, group), "net %q: malformed endpoint group", k.Value))
				}
			}
		default:
			bag.Emit(diag.Errorf("PARSE-016", spanOf(fileID, val), "net %q: value must be a list of endpoint groups", k.Value))
		}

		m.Set(k.Value, net)
	}

	return m, bag
}

func parseInstances(fileID string, v *yaml.Node) (*ast.OrderedMap[ast.InstanceDecl], diag.Bag) {
	var bag diag.Bag
	m := ast.NewOrderedMap[ast.InstanceDecl]()

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-017", spanOf(fileID, v), "'instances' must be a mapping"))
		return m, bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		inst, b := parseInstanceDecl(fileID, val)
		bag.Extend(b)
		m.Set(k.Value, inst)
	}

	return m, bag
}

func parseInstanceDecl(fileID string, v *yaml.Node) (ast.InstanceDecl, diag.Bag) {
	var bag diag.Bag

	switch v.Kind {
	case yaml.ScalarNode:
		ref, params := splitInlineInstance(v.Value)
		return ast.InstanceDecl{Kind: ast.InlineInstance, RefText: ref, ParamsText: params, Span: spanOf(fileID, v)}, bag

	case yaml.MappingNode:
		decl := ast.InstanceDecl{Kind: ast.StructuredInstance, Span: spanOf(fileID, v)}

		for _, p := range pairs(v) {
			k, val := p.Key, p.Value
			switch k.Value {
			case "ref":
				if val.Kind == yaml.ScalarNode {
					decl.RefText = val.Value
				} else {
					bag.Emit(diag.Errorf("PARSE-018", spanOf(fileID, val), "instance 'ref' must be a scalar"))
				}
			case "parameters":
				text, b := paramsText(fileID, val)
				bag.Extend(b)
				decl.ParamsText = text
			case "params":
				decl.ParamsAliasUsed = true
				text, b := paramsText(fileID, val)
				bag.Extend(b)
				decl.ParamsText = text
			default:
				// Any other key is read as an inline pin binding: pin name
				// -> net expression (spec §4.5 point 3).
				if val.Kind != yaml.ScalarNode {
					bag.Emit(diag.Errorf("PARSE-022", spanOf(fileID, val), "instance pin binding %q must be a scalar net expression", k.Value))
					continue
				}
				if decl.PinBindings == nil {
					decl.PinBindings = ast.NewOrderedMap[string]()
				}
				decl.PinBindings.Set(k.Value, val.Value)
			}
		}

		return decl, bag

	default:
		bag.Emit(diag.Errorf("PARSE-019", spanOf(fileID, v), "instance value must be a string or a mapping"))
		return ast.InstanceDecl{Span: spanOf(fileID, v)}, bag
	}
}

// splitInlineInstance splits the compact inline form `ref_expr(k=v k2=v2)`
// into its reference and parameter-text halves. A string without a
// trailing parenthesized group is a bare reference with no parameters.
func splitInlineInstance(s string) (ref, params string) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ")") {
		if i := strings.IndexByte(s, '('); i >= 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1 : len(s)-1])
		}
	}
	return s, ""
}

// paramsText renders a structured 'parameters'/'params' value into the raw
// "key=value key2=value2" text the C5 tokenizer expects: a scalar is passed
// through verbatim, a mapping is rendered key by key in authored order.
func paramsText(fileID string, v *yaml.Node) (string, diag.Bag) {
	var bag diag.Bag

	switch v.Kind {
	case yaml.ScalarNode:
		return v.Value, bag
	case yaml.MappingNode:
		var parts []string
		for _, p := range pairs(v) {
		k, val := p.Key, p.Value
			if val.Kind != yaml.ScalarNode {
				bag.Emit(diag.Errorf("PARSE-014", spanOf(fileID, val), "parameter %q: expected a scalar value", k.Value))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", k.Value, val.Value))
		}
		return strings.Join(parts, " "), bag
	default:
		bag.Emit(diag.Errorf("PARSE-013", spanOf(fileID, v), "parameters must be a scalar or a mapping"))
		return "", bag
	}
}

func parseInstanceDefaults(fileID string, v *yaml.Node) (*ast.OrderedMap[ast.InstanceDefaultEntry], diag.Bag) {
	var bag diag.Bag
	m := ast.NewOrderedMap[ast.InstanceDefaultEntry]()

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-013", spanOf(fileID, v), "'instance_defaults' must be a mapping"))
		return m, bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		if val.Kind != yaml.ScalarNode {
			bag.Emit(diag.Errorf("PARSE-014", spanOf(fileID, val), "instance default %q: expected a scalar value", k.Value))
			continue
		}

		text := val.Value
		suppress := strings.HasSuffix(text, "!")
		if suppress {
			text = strings.TrimSuffix(text, "!")
		}

		m.Set(k.Value, ast.InstanceDefaultEntry{ValueText: text, Suppress: suppress, Span: spanOf(fileID, val)})
	}

	return m, bag
}

func parseDevices(fileID string, v *yaml.Node, doc *ast.Document) diag.Bag {
	var bag diag.Bag

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-020", spanOf(fileID, v), "'devices' must be a mapping"))
		return bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		decl, declBag := parseDeviceDecl(fileID, k.Value, val)
		bag.Extend(declBag)
		doc.Devices.Set(k.Value, decl)
	}

	return bag
}

func parseDeviceDecl(fileID, symbol string, v *yaml.Node) (ast.DeviceDecl, diag.Bag) {
	var bag diag.Bag

	decl := ast.DeviceDecl{
		Symbol:     symbol,
		Parameters: ast.NewOrderedMap[string](),
		Backends:   ast.NewOrderedMap[string](),
		Span:       spanOf(fileID, v),
	}

	if v.Kind != yaml.MappingNode {
		bag.Emit(diag.Errorf("PARSE-021", spanOf(fileID, v), "device %q must be a mapping", symbol))
		return decl, bag
	}

	for _, p := range pairs(v) {
		k, val := p.Key, p.Value
		switch k.Value {
		case "ports":
			ports, b := scalarList(fileID, val)
			bag.Extend(b)
			decl.Ports = ports
		case "parameters":
			m, b := stringMap(fileID, val)
			bag.Extend(b)
			decl.Parameters = m
		case "backends":
			m, b := stringMap(fileID, val)
			bag.Extend(b)
			decl.Backends = m
		case "docstring":
			if val.Kind == yaml.ScalarNode {
				decl.Docstring = val.Value
			}
		default:
			bag.Emit(diag.Warningf("PARSE-005", spanOf(fileID, k), "device %q: unknown key %q", symbol, k.Value))
		}
	}

	return decl, bag
}
