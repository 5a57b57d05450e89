package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevelFlag string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "psubd",
		Short: "psubd is a length-framed pub/sub broker and client",
	}
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "trace, debug, info, warn, or error")

	root.AddCommand(newServerCmd())
	root.AddCommand(newClientCmd())
	return root
}
