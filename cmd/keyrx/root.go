package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "keyrx",
		Short:         "Deterministic keyboard remapping",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCommand())
	root.AddCommand(newSimulateCommand())
	root.AddCommand(newServeCommand())
	return root
}
