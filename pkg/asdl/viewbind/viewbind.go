// Package viewbind implements view binding (C7): resolving, per instance in
// the hierarchy, which view of its referenced module is realized, combining
// a baseline view_order preference with ordered rule overrides. See spec
// §3.8 and §4.7.
package viewbind

import (
	"fmt"
	"strings"

	"github.com/asdl-lang/asdlc/pkg/asdl/ast"
	"github.com/asdl-lang/asdlc/pkg/asdl/atomizer"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/graph"
	"github.com/asdl-lang/asdlc/pkg/asdl/hierarchy"
	"github.com/asdl-lang/asdlc/pkg/asdl/sourcemap"
)

// Match narrows which instance-index entries a rule applies to. An empty
// field is "don't care" except Path, whose absence restricts the rule to
// root-scope instances only (spec §3.8).
type Match struct {
	Path     string
	Instance string
	Module   string
}

// Rule is one ordered override entry of a view profile.
type Rule struct {
	ID    string
	Match Match
	Bind  string // module-symbol text, e.g. "shift_row@sim"
}

// Profile is one named view-binding configuration.
type Profile struct {
	ViewOrder []string
	Rules     []Rule
}

// Config is a ViewConfig: every authored profile, by name.
type Config struct {
	Profiles     map[string]Profile
	ProfileOrder []string
}

// ResolvedViewBindingEntry is one sidecar row, emitted in instance-index
// order.
type ResolvedViewBindingEntry struct {
	Path     string
	Instance string
	Resolved string
	RuleID   string // "" means the baseline view_order resolved it, no rule matched
}

// SidecarEntry is one row of the `--binding-sidecar` JSON file.
type SidecarEntry struct {
	Path     string  `json:"path"`
	Instance string  `json:"instance"`
	Resolved string  `json:"resolved"`
	RuleID   *string `json:"rule_id"`
}

// Sidecar is the `--binding-sidecar` JSON shape (spec §4.7, §6.1, §6.4):
// schema_version, the profile name that produced it, and the resolved rows.
type Sidecar struct {
	SchemaVersion int            `json:"schema_version"`
	Profile       string         `json:"profile"`
	Entries       []SidecarEntry `json:"entries"`
}

// BuildSidecar reduces Bind's rows into the sidecar JSON shape, marshaling
// an empty RuleID (no rule matched; the baseline view_order resolved it) as
// JSON null rather than an empty string.
func BuildSidecar(profile string, rows []ResolvedViewBindingEntry) Sidecar {
	sc := Sidecar{SchemaVersion: 1, Profile: profile, Entries: make([]SidecarEntry, 0, len(rows))}

	for _, r := range rows {
		entry := SidecarEntry{Path: r.Path, Instance: r.Instance, Resolved: r.Resolved}
		if r.RuleID != "" {
			ruleID := r.RuleID
			entry.RuleID = &ruleID
		}
		sc.Entries = append(sc.Entries, entry)
	}

	return sc
}

// Bind resolves every instance in the hierarchy rooted at topID against the
// named profile, producing the ordered sidecar rows.
func Bind(apg *atomizer.AtomizedProgramGraph, topID graph.StableID, cfg Config, profileName string) ([]ResolvedViewBindingEntry, diag.Bag) {
	var bag diag.Bag

	profile, ok := cfg.Profiles[profileName]
	if !ok {
		bag.Emit(diag.Errorf("VIEW-001", sourcemap.Span{}, "unknown view profile %q", profileName))
		return nil, bag
	}

	index, _ := hierarchy.TraverseHierarchy(apg, topID, false, nil)

	var rows []ResolvedViewBindingEntry

	for _, e := range index {
		sym, err := ast.ParseModuleSymbol(e.RefSymbolText)
		if err != nil {
			bag.Emit(diag.Errorf("VIEW-002", sourcemap.Span{}, "instance %s: malformed module symbol %q", e.FullPath, e.RefSymbolText))
			continue
		}

		baseline, baseErr := resolveBaseline(apg, e.RefFileID, sym.Cell, profile.ViewOrder)
		if baseErr != "" {
			bag.Emit(diag.Errorf("VIEW-003", sourcemap.Span{}, "instance %s: %s", e.FullPath, baseErr))
			continue
		}

		resolved := baseline
		ruleID := ""

		for idx, rule := range profile.Rules {
			if !matches(e, rule.Match) {
				continue
			}

			if rule.Match.Path != "" && !pathExists(index, rule.Match.Path) {
				bag.Emit(diag.Errorf("VIEW-004", sourcemap.Span{}, "rule %s: match.path %q does not name an existing instance-index path", effectiveRuleID(rule, idx), rule.Match.Path))
				continue
			}

			if !symbolExists(apg, e.RefFileID, rule.Bind) {
				bag.Emit(diag.Errorf("VIEW-005", sourcemap.Span{}, "rule %s: bind target %q does not resolve in namespace of %s", effectiveRuleID(rule, idx), rule.Bind, e.FullPath))
				continue
			}

			resolved = rule.Bind
			ruleID = effectiveRuleID(rule, idx)
		}

		rows = append(rows, ResolvedViewBindingEntry{
			Path:     parentPath(e.FullPath),
			Instance: e.InstanceLeaf,
			Resolved: resolved,
			RuleID:   ruleID,
		})
	}

	return rows, bag
}

func effectiveRuleID(r Rule, idx int) string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("rule%d", idx)
}

// resolveBaseline iterates view_order, accepting the first view-id for
// which "cell@view-id" resolves, or bare "cell" when view-id is "default"
// and no explicit "cell@default" symbol was declared.
func resolveBaseline(apg *atomizer.AtomizedProgramGraph, fileID, cell string, viewOrder []string) (string, string) {
	for _, viewID := range viewOrder {
		candidate := cell + "@" + viewID
		if symbolExists(apg, fileID, candidate) {
			return candidate, ""
		}
		if viewID == "default" && symbolExists(apg, fileID, cell) {
			return cell, ""
		}
	}
	return "", fmt.Sprintf("no view in view_order resolves a module symbol for cell %q", cell)
}

func symbolExists(apg *atomizer.AtomizedProgramGraph, fileID, symbolText string) bool {
	id, ok := apg.Upstream.SymbolIndex[fileID][symbolText]
	if !ok {
		return false
	}
	_, isModule := apg.Modules[id]
	return isModule
}

func matches(e hierarchy.Entry, m Match) bool {
	if m.Instance != "" && m.Instance != e.InstanceLeaf {
		return false
	}

	if m.Module != "" && m.Module != e.RefSymbolText {
		return false
	}

	if m.Path == "" {
		return !strings.Contains(e.FullPath, "/")
	}

	return e.FullPath == m.Path || strings.HasPrefix(e.FullPath, m.Path+"/")
}

func pathExists(index []hierarchy.Entry, path string) bool {
	for _, e := range index {
		if e.FullPath == path {
			return true
		}
	}
	return false
}

func parentPath(fullPath string) string {
	idx := strings.LastIndex(fullPath, "/")
	if idx < 0 {
		return ""
	}
	return fullPath[:idx]
}
