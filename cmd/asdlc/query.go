package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asdl-lang/asdlc/internal/cmdutil"
	"github.com/asdl-lang/asdlc/pkg/asdl/hierarchy"
	"github.com/asdl-lang/asdlc/pkg/asdl/pipeline"
	"github.com/asdl-lang/asdlc/pkg/asdl/query"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Inspect a resolved design without emitting a backend netlist.",
}

var queryTreeCmd = &cobra.Command{
	Use:   "tree entry.asdl",
	Short: "Dump the full instance hierarchy as the query.tree envelope.",
	Args:  cobra.ExactArgs(1),
	Run:   runQueryTreeCmd,
}

var queryBindingsCmd = &cobra.Command{
	Use:   "bindings entry.asdl",
	Short: "Dump resolved view bindings as the query.bindings envelope.",
	Args:  cobra.ExactArgs(1),
	Run:   runQueryBindingsCmd,
}

func buildQueryOptions(cmd *cobra.Command, entry string) pipeline.Options {
	opts := pipeline.Options{
		EntryPath:      entry,
		ExplicitTop:    cmdutil.GetString(cmd, "top"),
		ViewConfigPath: cmdutil.GetString(cmd, "view-config"),
		ViewProfile:    cmdutil.GetString(cmd, "view-profile"),
		LibRoots:       cmdutil.GetStringArray(cmd, "lib-root"),
	}
	applyAsdlrc(cmd, &opts)
	return opts
}

func runQueryTreeCmd(cmd *cobra.Command, args []string) {
	opts := buildQueryOptions(cmd, args[0])

	result := pipeline.Run(opts)
	reportDiagnostics(result.Diagnostics)

	if result.Diagnostics.HasErrors() || result.Upstream == nil {
		os.Exit(1)
	}

	bindings := make(map[string]string, len(result.Bindings))
	for _, row := range result.Bindings {
		key := row.Instance
		if row.Path != "" {
			key = row.Path + "/" + row.Instance
		}
		bindings[key] = row.Resolved
	}

	env, bag := query.Tree(result.Upstream, result.TopID, bindings, result.Design)
	reportDiagnostics(bag)
	printEnvelope(env)
}

func runQueryBindingsCmd(cmd *cobra.Command, args []string) {
	opts := buildQueryOptions(cmd, args[0])

	result := pipeline.Run(opts)
	reportDiagnostics(result.Diagnostics)

	if result.Diagnostics.HasErrors() || result.Upstream == nil {
		os.Exit(1)
	}

	entries, _ := hierarchy.TraverseHierarchy(result.Upstream, result.TopID, false, nil)

	env, bag := query.Bindings(result.Bindings, entries)
	reportDiagnostics(bag)
	printEnvelope(env)
}

func printEnvelope(env query.Envelope) {
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "asdlc: cannot marshal query result: %s\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(queryTreeCmd)
	queryCmd.AddCommand(queryBindingsCmd)

	for _, c := range []*cobra.Command{queryTreeCmd, queryBindingsCmd} {
		c.Flags().String("top", "", "explicit top module symbol")
		c.Flags().String("view-config", "", "path to a view-binding profile YAML file")
		c.Flags().String("view-profile", "", "view-binding profile name to apply")
		c.Flags().StringArray("lib-root", nil, "logical library search root (repeatable)")
	}
}
