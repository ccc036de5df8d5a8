// Package cli implements the portcost command-line client.  Commands talk
// to a running API server; they never assemble the engine in-process.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds global CLI flags shared by all subcommands.
type RootOptions struct {
	ServerAddr string
	Timeout    time.Duration
}

// NewRootCommand creates the root cobra command with global flags and all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "portcost",
		Short:   "Port-call disbursement cost estimation client",
		Long:    "portcost estimates port-call disbursement costs by querying the\nestimation API: it retrieves historically similar disbursement accounts\nand synthesizes a calibrated cost breakdown with a confidence signal.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ServerAddr, "server", "http://localhost:8080", "API server base URL")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 60*time.Second, "request timeout")

	cmd.AddCommand(newEstimateCmd(opts))

	return cmd
}
