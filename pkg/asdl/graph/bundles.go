package graph

import (
	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/pattern"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// ModuleGraph is a lowered module: bundles hold only ids and references,
// provenance lives in the owning ProgramGraph's registries.
type ModuleGraph struct {
	ID     StableID
	Symbol ast.ModuleSymbol
	FileID string
	// Ports is the ordered list of net ids forming port_order: declared
	// `$`-prefixed nets in source order, then `$` nets introduced by
	// instance_defaults or first-seen inline pin bindings.
	Ports      []StableID
	Parameters *ast.OrderedMap[string]
	Variables  *ast.OrderedMap[string]
	Nets       []StableID
	Instances  []StableID
}

// NetBundle is one lowered net declaration.
type NetBundle struct {
	ID         StableID
	NameExprID StableID
	Endpoints  []StableID
}

// EndpointBundle is one lowered endpoint reference attached to a net.
type EndpointBundle struct {
	ID         StableID
	NetID      StableID
	PortExprID StableID
}

// ParamBinding is one instance parameter's authored raw value text together
// with the expression id registered for its parsed value; the builder
// registers an expression for every parameter.
type ParamBinding struct {
	Name    string
	ExprID  StableID
	RawText string
}

// InstanceBundle is one lowered instance declaration.
type InstanceBundle struct {
	ID          StableID
	NameExprID  StableID
	RefSymbol   ast.ModuleSymbol
	RefFileID   string
	RefIsDevice bool
	Params      []ParamBinding
}

// DeviceDef is one lowered device declaration.
type DeviceDef struct {
	ID         StableID
	Symbol     string
	FileID     string
	Ports      []string
	Parameters *ast.OrderedMap[string]
	Backends   map[string]string
}

// OriginRef locates an entity's defining pattern expression.
type OriginRef struct {
	ExprID       StableID
	SegmentIndex int
	AtomIndex    int
}

// ParamOriginKey keys ParamPatternOriginIndex: (instance id, parameter
// name).
type ParamOriginKey struct {
	InstanceID StableID
	ParamName  string
}

// Registries holds every external registry keyed by StableId, kept apart
// from the bundles themselves per the registries-vs-inline-metadata design
// note: this keeps bundle equality structural and graph cloning cheap.
type Registries struct {
	// PatternExpressionRegistry: expr_id -> parsed PatternExpr (with span).
	Exprs map[StableID]*pattern.PatternExpr
	// PatternOriginIndex: entity_id -> (expr_id, segment_index, atom_index).
	Origins map[StableID]OriginRef
	// ParamPatternOriginIndex: (inst_id, param_name) -> (expr_id, atom_index).
	ParamOrigins map[ParamOriginKey]OriginRef
	// SourceSpanIndex: entity_id -> span.
	Spans *sourcemap.Registry[StableID]
	// BackendTemplateRegistry: device_symbol -> backend_name -> template.
	BackendTemplates map[string]map[string]string
	// PatternExprKindIndex: expr_id -> kind ("net" | "instance" | "endpoint" | "param").
	ExprKinds map[StableID]string
	// SchematicHints: net_id -> ordered group slices (preserves authored
	// list-of-lists exactly as written).
	SchematicHints map[StableID][][]string
}

// NewRegistries constructs an empty registry set.
func NewRegistries() *Registries {
	return &Registries{
		Exprs:            make(map[StableID]*pattern.PatternExpr),
		Origins:          make(map[StableID]OriginRef),
		ParamOrigins:     make(map[ParamOriginKey]OriginRef),
		Spans:            sourcemap.NewRegistry[StableID](),
		BackendTemplates: make(map[string]map[string]string),
		ExprKinds:        make(map[StableID]string),
		SchematicHints:   make(map[StableID][][]string),
	}
}

// ProgramGraph is the deterministic collection of module/device bundles
// plus the registries above (spec §3.5).
type ProgramGraph struct {
	Modules     map[StableID]*ModuleGraph
	ModuleOrder []StableID
	Devices     map[StableID]*DeviceDef
	DeviceOrder []StableID
	Nets        map[StableID]*NetBundle
	Endpoints   map[StableID]*EndpointBundle
	Instances   map[StableID]*InstanceBundle
	Registries  *Registries

	// SymbolIndex maps (file_id, symbol text) to a module or device id, used
	// by instance-ref resolution and by view binding's baseline lookup.
	SymbolIndex map[string]map[string]StableID
}

// NewProgramGraph constructs an empty ProgramGraph.
func NewProgramGraph() *ProgramGraph {
	return &ProgramGraph{
		Modules:     make(map[StableID]*ModuleGraph),
		Devices:     make(map[StableID]*DeviceDef),
		Nets:        make(map[StableID]*NetBundle),
		Endpoints:   make(map[StableID]*EndpointBundle),
		Instances:   make(map[StableID]*InstanceBundle),
		Registries:  NewRegistries(),
		SymbolIndex: make(map[string]map[string]StableID),
	}
}

func (g *ProgramGraph) indexSymbol(fileID, symbolText string, id StableID) {
	m, ok := g.SymbolIndex[fileID]
	if !ok {
		m = make(map[string]StableID)
		g.SymbolIndex[fileID] = m
	}
	m[symbolText] = id
}
