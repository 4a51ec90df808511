// Pacer estimates half-marathon finish times from free-text runner
// descriptions.
//
// Usage:
//
//	# Estimate from a description
//	pacer estimate "mezczyzna, 30 lat, 5 km w 24:30"
//
//	# Same, reading stdin and printing JSON
//	echo "female, 41, 5k 27:10" | pacer estimate --json -
//
//	# Serve the HTTP API
//	SERVER_PORT=9090 pacer serve
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	jsonOutput bool
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "pacer",
		Short: "Half-marathon time estimates from free text",
		Long: `pacer reads a short description of a runner (gender, age and a recent
5 km time, in Polish or English) and estimates a half-marathon finish time.

Fields are pulled out with pattern rules first; a language model fills in
whatever the rules miss. The estimate comes from a regression model when one
is installed and from a closed-form heuristic otherwise.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(versionString())

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/pacer/config.yaml)")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newEstimateCmd(flags),
		newExtractCmd(flags),
		newPredictCmd(flags),
		newModelCmd(flags),
		newCacheCmd(flags),
		newServeCmd(flags),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("pacer by Fyrsmith Labs\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n",
		version, gitCommit, buildDate)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprint(w, versionString())
}
