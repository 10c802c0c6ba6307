// cictl is the operator CLI for the CI build-result service.
//
// Usage:
//
//	cictl poll --participation=<id> | --plan=<plan-key>
//	cictl status <plan-key>
//	cictl logs <plan-key>
//	cictl trigger <plan-key>
//	cictl plan create --project=<key> --plan=<key> --name=<name> --repo=<url> [--participation=<id>]
//	cictl plan clone <source-plan-key> <target-plan-key> [--participation=<id>]
//	cictl plan enable|delete <plan-key>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "cictl",
	Short: "Operate CI build plans and reconcile build results",
	Long:  "cictl talks to the CI server and the result database directly.\nIt reads the same ARTEMIS_* environment as the API service.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

var rootFlags struct {
	verbose bool
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
