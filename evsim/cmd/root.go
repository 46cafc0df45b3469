// Package cmd provides the command-line interface for evsim.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "evsim",
		Short: "evsim runs discrete-event traffic scenarios.",
		Long: `evsim runs discrete-event traffic scenarios described in a ` +
			`YAML file. Flows send packets between nodes over fixed-delay ` +
			`links while the simulator advances virtual time.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())

	return root
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
