package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scrapetoapi %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:      %s\n", runtime.Version())
		},
	}
}
