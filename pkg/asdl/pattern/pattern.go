// Package pattern implements the pattern expression algebra (C2): parsing
// authored pattern strings into a typed PatternExpr, expanding them into
// literal atoms, atomizing endpoint expressions, and extracting axis
// metadata for broadcast binding. See spec §3.3 and §4.2.
package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// PartKind discriminates the variants of a pattern Part. Modelled as a
// tagged variant rather than an exception hierarchy, per the dynamic-typing
// design note: the surface AST is nominally dynamic, but every node here is
// a concrete Go type carrying exactly the fields its kind needs.
type PartKind int

const (
	// Literal is a verbatim run of text, no group.
	Literal PartKind = iota
	// RangeGroup is a numeric range `<a:b>` or `<a:b:step>`.
	RangeGroup
	// EnumGroup is an alternation `<x|y|z>`.
	EnumGroup
	// NamedRefGroup is a named-pattern macro reference `<@name>`.
	NamedRefGroup
)

// Part is one element of a Segment: either a literal run or a group.
type Part struct {
	Kind PartKind
	// Literal holds the verbatim text when Kind == Literal.
	Literal string
	// Tag holds the optional axis tag of a group, written `<tag=...>`.
	// Empty when the group is untagged.
	Tag string
	// RangeFrom/RangeTo/RangeStep describe a RangeGroup (step defaults to 1
	// when the pattern omits it).
	RangeFrom, RangeTo, RangeStep int
	// EnumValues lists the alternatives of an EnumGroup, in authored order.
	EnumValues []string
	// Name is the macro name referenced by a NamedRefGroup.
	Name string
}

// IsGroup reports whether this part contributes to the cartesian product of
// its segment (anything but a literal run).
func (p Part) IsGroup() bool {
	return p.Kind != Literal
}

// count returns how many values this part's group contributes; 1 for a
// literal run (it is not a cartesian factor).
func (p Part) count() int {
	switch p.Kind {
	case RangeGroup:
		if p.RangeStep == 0 {
			return 0
		}
		n := (p.RangeTo-p.RangeFrom)/p.RangeStep + 1
		if n < 0 {
			return 0
		}
		return n
	case EnumGroup:
		return len(p.EnumValues)
	default:
		return 1
	}
}

// axisID returns the axis identity of a group part: its explicit tag, or
// (when untagged) the owning pattern's name, supplied by the caller of
// Axes(). See spec §3.3: "Axis ID is the tag when present, else the owning
// pattern name."
func (p Part) axisID(owner string) string {
	if p.Tag != "" {
		return p.Tag
	}
	return owner
}

// Segment is one `;`-delimited piece of a pattern expression. `;` is pure
// concatenation with no alignment semantics between segments — the only
// thing that matters across segments is total expansion length.
type Segment struct {
	Parts []Part
}

// groups returns this segment's group parts, in declaration order.
func (s Segment) groups() []Part {
	var out []Part
	for _, p := range s.Parts {
		if p.IsGroup() {
			out = append(out, p)
		}
	}
	return out
}

// productSize returns the cartesian product size of this segment's groups
// (1 when it has none — a literal-only segment still contributes one atom).
func (s Segment) productSize() int {
	size := 1
	for _, g := range s.groups() {
		size *= g.count()
	}
	return size
}

// PatternExpr is the parsed, typed representation of an authored pattern
// expression string.
type PatternExpr struct {
	Raw      string
	Span     sourcemap.Span
	Segments []Segment
}

// MaxExpansionAtoms is the hard size limit on a single pattern expression's
// expansion (spec §3.3): exceeding it is always IR-007.
const MaxExpansionAtoms = 10000

// SuffixValue is one typed element of an Atom's suffix_parts list: either
// the string chosen from an enum group, or the integer chosen from a range
// group.
type SuffixValue struct {
	IsString bool
	Str      string
	Int      int
}

func (v SuffixValue) render() string {
	if v.IsString {
		return v.Str
	}
	return strconv.Itoa(v.Int)
}

// Equal reports whether two suffix values were chosen from the same group
// kind and landed on the same literal, used by tagged-axis broadcast
// binding to match atoms across a net and an endpoint on shared axes.
func (v SuffixValue) Equal(o SuffixValue) bool {
	if v.IsString != o.IsString {
		return false
	}
	if v.IsString {
		return v.Str == o.Str
	}
	return v.Int == o.Int
}

// AtomOrigin is one literal atom produced by expanding a pattern
// expression, together with its provenance within that expression.
type AtomOrigin struct {
	SegmentIndex int
	AtomIndex    int
	BaseName     string
	SuffixParts  []SuffixValue
	// Axes holds the axis id of each suffix part, in the same order, for
	// broadcast binding (spec §4.2).
	Axes []string
	// Literal is the fully rendered atom text: base name followed by every
	// suffix value, in declaration order.
	Literal string
}

// Parse parses an authored pattern expression string into a PatternExpr.
// Rejects unbalanced brackets, empty groups, invalid literals (identifier
// characters `<`,`>`,`[`,`]`,`;` outside of their structural role), and
// malformed group bodies.
func Parse(text string, span sourcemap.Span) (*PatternExpr, diag.Bag) {
	var bag diag.Bag

	expr := &PatternExpr{Raw: text, Span: span}

	for segIdx, segText := range splitTopLevel(text, ';') {
		seg, segBag := parseSegment(segText, span)
		bag.Extend(segBag)

		if bag.HasErrors() && segIdx == 0 {
			// keep parsing remaining segments so the caller sees every
			// error in one pass; only bail entirely on catastrophic
			// bracket mismatch, handled inside parseSegment.
		}

		expr.Segments = append(expr.Segments, seg)
	}

	if len(expr.Segments) == 0 {
		bag.Emit(diag.Errorf("ASDL-PAT-001", span, "empty pattern expression"))
	}

	return expr, bag
}

// splitTopLevel splits s on sep, ignoring occurrences of sep inside `<...>`
// groups.
func splitTopLevel(s string, sep rune) []string {
	var out []string
	var cur strings.Builder
	depth := 0

	for _, r := range s {
		switch {
		case r == '<':
			depth++
			cur.WriteRune(r)
		case r == '>':
			if depth > 0 {
				depth--
			}
			cur.WriteRune(r)
		case r == sep && depth == 0:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	out = append(out, cur.String())

	return out
}

func parseSegment(text string, span sourcemap.Span) (Segment, diag.Bag) {
	var (
		bag   diag.Bag
		seg    Segment
		lit    strings.Builder
	)

	flushLiteral := func() {
		if lit.Len() > 0 {
			seg.Parts = append(seg.Parts, Part{Kind: Literal, Literal: lit.String()})
			lit.Reset()
		}
	}

	runes := []rune(text)
	i := 0

	for i < len(runes) {
		r := runes[i]
		switch r {
		case '<':
			end := matchingBracket(runes, i)
			if end < 0 {
				bag.Emit(diag.Errorf("ASDL-PAT-002", span, "unbalanced bracket in pattern expression %q", text))
				i = len(runes)
				continue
			}

			body := string(runes[i+1 : end])
			flushLiteral()

			part, partBag := parseGroupBody(body, span)
			bag.Extend(partBag)
			seg.Parts = append(seg.Parts, part)

			i = end + 1
		case '>', '[', ']':
			bag.Emit(diag.Errorf("ASDL-PAT-003", span, "illegal character %q outside a pattern group", string(r)))
			i++
		default:
			lit.WriteRune(r)
			i++
		}
	}

	flushLiteral()

	return seg, bag
}

func matchingBracket(runes []rune, open int) int {
	depth := 0
	for i := open; i < len(runes); i++ {
		switch runes[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseGroupBody(body string, span sourcemap.Span) (Part, diag.Bag) {
	var bag diag.Bag

	if body == "" {
		bag.Emit(diag.Errorf("ASDL-PAT-004", span, "empty pattern group"))
		return Part{Kind: Literal}, bag
	}

	if strings.HasPrefix(body, "@") {
		return Part{Kind: NamedRefGroup, Name: body[1:]}, bag
	}

	tag := ""
	rest := body

	if eq := strings.Index(body, "="); eq >= 0 && isIdentifier(body[:eq]) {
		tag = body[:eq]
		rest = body[eq+1:]
	}

	if strings.Contains(rest, "|") {
		values := strings.Split(rest, "|")
		for _, v := range values {
			if v == "" {
				bag.Emit(diag.Errorf("ASDL-PAT-005", span, "empty alternative in enum group %q", body))
			}
		}
		return Part{Kind: EnumGroup, Tag: tag, EnumValues: values}, bag
	}

	if strings.Contains(rest, ":") {
		pieces := strings.Split(rest, ":")
		if len(pieces) != 2 && len(pieces) != 3 {
			bag.Emit(diag.Errorf("ASDL-PAT-006", span, "malformed range group %q", body))
			return Part{Kind: Literal}, bag
		}

		from, err1 := strconv.Atoi(pieces[0])
		to, err2 := strconv.Atoi(pieces[1])
		step := 1

		if len(pieces) == 3 {
			s, err3 := strconv.Atoi(pieces[2])
			if err3 != nil {
				bag.Emit(diag.Errorf("ASDL-PAT-007", span, "non-numeric range step in %q", body))
			}
			step = s
		}

		if err1 != nil || err2 != nil {
			bag.Emit(diag.Errorf("ASDL-PAT-007", span, "non-numeric range bound in %q", body))
			return Part{Kind: Literal}, bag
		}

		if step == 0 {
			bag.Emit(diag.Errorf("ASDL-PAT-008", span, "range step cannot be zero in %q", body))
			step = 1
		} else if (to-from)*step < 0 {
			bag.Emit(diag.Errorf("ASDL-PAT-008", span, "range %q does not advance toward its bound", body))
		}

		return Part{Kind: RangeGroup, Tag: tag, RangeFrom: from, RangeTo: to, RangeStep: step}, bag
	}

	bag.Emit(diag.Errorf("ASDL-PAT-009", span, "unrecognised pattern group %q", body))
	return Part{Kind: Literal, Literal: body}, bag
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

// ExpandAtoms expands a parsed pattern expression into its literal atoms, in
// the deterministic order mandated by §4.6: outer segment index, then the
// per-segment cartesian product in declaration order. Emits IR-007 when the
// total expansion would exceed MaxExpansionAtoms.
func ExpandAtoms(expr *PatternExpr, owner string) ([]AtomOrigin, diag.Bag) {
	var bag diag.Bag

	total := 0
	for _, seg := range expr.Segments {
		total += seg.productSize()
	}

	if total > MaxExpansionAtoms {
		bag.Emit(diag.Errorf("IR-007", expr.Span,
			"pattern expression %q expands to %d atoms, exceeding the %d atom limit",
			expr.Raw, total, MaxExpansionAtoms))
		return nil, bag
	}

	var atoms []AtomOrigin

	for segIdx, seg := range expr.Segments {
		groups := seg.groups()
		combos := cartesian(groups)

		baseName := literalPrefix(seg)

		for atomIdx, combo := range combos {
			suffixes := make([]SuffixValue, len(combo))
			axes := make([]string, len(combo))
			var rendered strings.Builder

			// Render by walking Parts in order, substituting each group's
			// chosen value and keeping literal runs verbatim.
			groupCursor := 0
			for _, part := range seg.Parts {
				if !part.IsGroup() {
					rendered.WriteString(part.Literal)
					continue
				}

				v := combo[groupCursor]
				suffixes[groupCursor] = v
				axes[groupCursor] = part.axisID(owner)
				rendered.WriteString(v.render())
				groupCursor++
			}

			atoms = append(atoms, AtomOrigin{
				SegmentIndex: segIdx,
				AtomIndex:    atomIdx,
				BaseName:     baseName,
				SuffixParts:  suffixes,
				Axes:         axes,
				Literal:      rendered.String(),
			})
		}
	}

	return atoms, bag
}

// literalPrefix renders the literal-only skeleton of a segment (groups
// stripped), used as an atom's base_name.
func literalPrefix(seg Segment) string {
	var b strings.Builder
	for _, p := range seg.Parts {
		if !p.IsGroup() {
			b.WriteString(p.Literal)
		}
	}
	return b.String()
}

// cartesian enumerates the cartesian product of a segment's groups, in
// declaration order, each combination a slice of SuffixValue aligned with
// groups.
func cartesian(groups []Part) [][]SuffixValue {
	if len(groups) == 0 {
		return [][]SuffixValue{{}}
	}

	rest := cartesian(groups[1:])
	values := groupValues(groups[0])

	out := make([][]SuffixValue, 0, len(values)*len(rest))
	for _, v := range values {
		for _, r := range rest {
			combo := make([]SuffixValue, 0, len(r)+1)
			combo = append(combo, v)
			combo = append(combo, r...)
			out = append(out, combo)
		}
	}

	return out
}

func groupValues(p Part) []SuffixValue {
	switch p.Kind {
	case RangeGroup:
		var out []SuffixValue
		if p.RangeStep > 0 {
			for v := p.RangeFrom; v <= p.RangeTo; v += p.RangeStep {
				out = append(out, SuffixValue{Int: v})
			}
		} else if p.RangeStep < 0 {
			for v := p.RangeFrom; v >= p.RangeTo; v += p.RangeStep {
				out = append(out, SuffixValue{Int: v})
			}
		}
		return out
	case EnumGroup:
		out := make([]SuffixValue, len(p.EnumValues))
		for i, s := range p.EnumValues {
			out[i] = SuffixValue{IsString: true, Str: s}
		}
		return out
	default:
		return []SuffixValue{{}}
	}
}

// ExpandNamed performs one-level `<@name>` substitution: every NamedRefGroup
// part is replaced in place by the parts of the referenced pattern. Named
// references inside the referenced pattern are left unresolved (no
// recursion). ExpandAtoms reports no diagnostic for one that survives; it
// expands such a group to a single zero value.
func ExpandNamed(expr *PatternExpr, named map[string]*PatternExpr) (*PatternExpr, diag.Bag) {
	var bag diag.Bag

	out := &PatternExpr{Raw: expr.Raw, Span: expr.Span}

	for _, seg := range expr.Segments {
		var newParts []Part

		for _, part := range seg.Parts {
			if part.Kind != NamedRefGroup {
				newParts = append(newParts, part)
				continue
			}

			target, ok := named[part.Name]
			if !ok {
				bag.Emit(diag.Errorf("IR-009", expr.Span, "undefined named pattern %q", part.Name))
				continue
			}

			for _, tseg := range target.Segments {
				newParts = append(newParts, tseg.Parts...)
			}
		}

		out.Segments = append(out.Segments, Segment{Parts: newParts})
	}

	return out, bag
}

// Axes returns the ordered list of axis ids across every group in this
// pattern expression, using owner as the axis id for untagged groups. Used
// by atomization's broadcast-binding rules (spec §4.2).
func Axes(expr *PatternExpr, owner string) []string {
	var out []string
	for _, seg := range expr.Segments {
		for _, g := range seg.groups() {
			out = append(out, g.axisID(owner))
		}
	}
	return out
}

// EndpointAtom is one (instance-atom, pin-atom) pair produced by
// AtomizeEndpoint.
type EndpointAtom struct {
	Instance string
	Pin      string
	// Axes and Values carry the full expanded atom's axis ids and chosen
	// suffix values (aligned, one entry per pattern group), before the
	// literal was split on '.': used for tagged-axis partial-broadcast
	// binding (spec §4.2).
	Axes   []string
	Values []SuffixValue
}

// AtomizeEndpoint expands an endpoint expression as a whole (e.g.
// "MN_IN_<N>.D") and then splits each resulting literal atom on the last
// '.' into (instance atom, pin atom), per spec §4.2: "Expansion is over the
// whole expression before splitting on '.'".
func AtomizeEndpoint(expr *PatternExpr, owner string) ([]EndpointAtom, diag.Bag) {
	atoms, bag := ExpandAtoms(expr, owner)
	if bag.HasErrors() {
		return nil, bag
	}

	out := make([]EndpointAtom, 0, len(atoms))

	for _, a := range atoms {
		idx := strings.LastIndex(a.Literal, ".")
		if idx < 0 {
			bag.Emit(diag.Errorf("IR-002", expr.Span, "endpoint expression %q is missing a '.pin' suffix", a.Literal))
			continue
		}

		out = append(out, EndpointAtom{
			Instance: a.Literal[:idx],
			Pin:      a.Literal[idx+1:],
			Axes:     a.Axes,
			Values:   a.SuffixParts,
		})
	}

	return out, bag
}

// ValidateLiteral checks a literal identifier against the identifier grammar
// shared across module symbols, namespaces, net/instance names: no `<`, `>`,
// `[`, `]`, `;`.
func ValidateLiteral(s string) error {
	for _, r := range s {
		switch r {
		case '<', '>', '[', ']', ';':
			return fmt.Errorf("illegal character %q in identifier %q", string(r), s)
		}
	}
	return nil
}
