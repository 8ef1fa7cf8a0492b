// Command asdlc is the ASDL compiler CLI: a thin cobra shell over
// pkg/asdl/pipeline, pkg/asdl/query, and pkg/asdl/depgraph. It contains no
// compilation logic of its own.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/asdl-lang/asdlc/internal/cmdutil"
)

// Version is filled when building with make, but *not* when installing via
// "go install".
var Version string

var rootCmd = &cobra.Command{
	Use:   "asdlc",
	Short: "A compiler for the Analog Schematic Description Language.",
	Long:  "A compiler (and query toolbox) for ASDL analog schematic descriptions.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmdutil.GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if cmdutil.GetFlag(cmd, "version") {
			fmt.Print("asdlc ")
			if Version != "" {
				fmt.Printf("%s", Version)
			} else if info, ok := debug.ReadBuildInfo(); ok {
				fmt.Printf("%s", info.Main.Version)
			} else {
				fmt.Printf("(unknown version)")
			}
			fmt.Println()
			return
		}
		cmd.Help() //nolint:errcheck
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().String("asdlrc", "", "path to an .asdlrc file (defaults to ./.asdlrc if present)")
	rootCmd.Flags().Bool("version", false, "print version information")
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	Execute()
}
