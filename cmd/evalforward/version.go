package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// заполняются через -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "evalforward %s - Commit: %s - Go version: %s\n",
				version, commit, runtime.Version())
		},
	}
}
