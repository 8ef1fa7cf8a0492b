package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/asdl-lang/asdlc/internal/cmdutil"
	"github.com/asdl-lang/asdlc/pkg/asdl/asdlrc"
	"github.com/asdl-lang/asdlc/pkg/asdl/diag"
	"github.com/asdl-lang/asdlc/pkg/asdl/pipeline"
	"github.com/asdl-lang/asdlc/pkg/asdl/viewbind"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] entry.asdl",
	Short: "Compile an ASDL entry file into a backend netlist.",
	Long:  "Compile an ASDL entry file through every stage up to and including backend emission.",
	Args:  cobra.ExactArgs(1),
	Run:   runCompileCmd,
}

func runCompileCmd(cmd *cobra.Command, args []string) {
	opts := pipeline.Options{
		EntryPath:         args[0],
		ExplicitTop:       cmdutil.GetString(cmd, "top"),
		ViewConfigPath:    cmdutil.GetString(cmd, "view-config"),
		ViewProfile:       cmdutil.GetString(cmd, "view-profile"),
		BackendName:       cmdutil.GetString(cmd, "backend"),
		BackendConfigPath: cmdutil.GetString(cmd, "backend-config"),
		TopAsSubckt:       cmdutil.GetFlag(cmd, "top-as-subckt"),
		LibRoots:          cmdutil.GetStringArray(cmd, "lib-root"),
	}

	applyAsdlrc(cmd, &opts)

	if cmdutil.GetFlag(cmd, "dump-patterned") {
		opts.DumpPatterned = func(s string) { fmt.Fprintln(os.Stderr, "--- patterned graph ---\n"+s) }
	}
	if cmdutil.GetFlag(cmd, "dump-atomized") {
		opts.DumpAtomized = func(s string) { fmt.Fprintln(os.Stderr, "--- atomized graph ---\n"+s) }
	}

	result := pipeline.Run(opts)

	reportDiagnostics(result.Diagnostics)

	if result.Diagnostics.HasErrors() {
		os.Exit(1)
	}

	if sidecarPath := cmdutil.GetString(cmd, "binding-sidecar"); sidecarPath != "" {
		if err := writeBindingSidecar(sidecarPath, opts.ViewProfile, result.Bindings); err != nil {
			fmt.Fprintf(os.Stderr, "asdlc: cannot write %s: %s\n", sidecarPath, err)
			os.Exit(1)
		}
	}

	if result.Rendered != "" {
		out := cmdutil.GetString(cmd, "output")
		if out == "" || out == "-" {
			fmt.Print(result.Rendered)
			return
		}
		if err := os.WriteFile(out, []byte(result.Rendered), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "asdlc: cannot write %s: %s\n", out, err)
			os.Exit(1)
		}
	}
}

// applyAsdlrc loads an .asdlrc file (explicit --asdlrc, or ./.asdlrc if
// present), merging its lib roots ahead of any CLI-supplied ones and its
// env map into the process environment before the pipeline reads it.
func applyAsdlrc(cmd *cobra.Command, opts *pipeline.Options) {
	path := cmdutil.GetString(cmd, "asdlrc")
	if path == "" {
		if _, err := os.Stat(".asdlrc"); err != nil {
			return
		}
		path = ".asdlrc"
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		log.Debugf("asdlc: cannot read %s: %s", path, err)
		return
	}

	rc, bag := asdlrc.Load(path, contents)
	reportDiagnostics(bag)
	if bag.HasErrors() {
		os.Exit(1)
	}

	opts.LibRoots = append(rc.LibRoots, opts.LibRoots...)
	rc.ApplyEnv()

	if existing := os.Getenv("ASDL_LIB_PATH"); existing != "" {
		os.Setenv("ASDL_LIB_PATH", rc.LibRootsString()+":"+existing)
	} else if rc.LibRootsString() != "" {
		os.Setenv("ASDL_LIB_PATH", rc.LibRootsString())
	}

	if opts.BackendConfigPath == "" {
		opts.BackendConfigPath = rc.BackendConfig
	}
}

// writeBindingSidecar serializes the resolved view-binding rows into the
// `--binding-sidecar` JSON shape and writes it to path (spec §4.7, §6.1,
// §6.4). Writing an empty rows list (no --view-config/--view-profile
// requested) still produces a valid, empty-entries sidecar.
func writeBindingSidecar(path, profile string, rows []viewbind.ResolvedViewBindingEntry) error {
	sidecar := viewbind.BuildSidecar(profile, rows)

	out, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(out, '\n'), 0o644)
}

func reportDiagnostics(bag diag.Bag) {
	for _, d := range bag.Sorted() {
		fmt.Fprintln(os.Stderr, d.Error())
	}
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().String("top", "", "explicit top module symbol (required when the entry file declares more than one module)")
	compileCmd.Flags().Bool("top-as-subckt", false, "wrap the top module itself in a subckt block instead of emitting it flat")
	compileCmd.Flags().String("backend", "", "backend name to render for (must match a backends: key in device declarations)")
	compileCmd.Flags().String("backend-config", "", "path to the backend's YAML configuration file")
	compileCmd.Flags().String("view-config", "", "path to a view-binding profile YAML file")
	compileCmd.Flags().String("view-profile", "", "view-binding profile name to apply")
	compileCmd.Flags().String("binding-sidecar", "", "path to write the resolved view-binding sidecar JSON")
	compileCmd.Flags().StringArray("lib-root", nil, "logical library search root (repeatable)")
	compileCmd.Flags().String("output", "-", "output file path, or - for stdout")
	compileCmd.Flags().Bool("dump-patterned", false, "dump the PatternedGraph's deterministic textual form to stderr")
	compileCmd.Flags().Bool("dump-atomized", false, "dump the AtomizedGraph's deterministic textual form to stderr")
}
