package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asdl-lang/asdlc/internal/cmdutil"
	"github.com/asdl-lang/asdlc/pkg/asdl/depgraph"
	"github.com/asdl-lang/asdlc/pkg/asdl/importer"
	"github.com/asdl-lang/asdlc/pkg/asdl/yamlast"
)

var depgraphCmd = &cobra.Command{
	Use:   "depgraph entry.asdl",
	Short: "Dump the file-level import dependency graph as JSON.",
	Args:  cobra.ExactArgs(1),
	Run:   runDepgraphCmd,
}

func runDepgraphCmd(cmd *cobra.Command, args []string) {
	libRoots := cmdutil.GetStringArray(cmd, "lib-root")

	cfg := importer.NewConfigFromEnv(libRoots)
	resolver := importer.NewResolver(yamlast.NewParser(), cfg)

	db, _, bag := resolver.Resolve(args[0])
	reportDiagnostics(bag)

	if bag.HasErrors() {
		os.Exit(1)
	}

	g := depgraph.Build(db)

	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "asdlc: cannot marshal dependency graph: %s\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func init() {
	rootCmd.AddCommand(depgraphCmd)
	depgraphCmd.Flags().StringArray("lib-root", nil, "logical library search root (repeatable)")
}
