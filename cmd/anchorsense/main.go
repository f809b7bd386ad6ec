package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "anchorsense",
		Short: "Classify review sentiment against embedded anchor phrases",
		Long: `anchorsense embeds review text and compares it with positive, negative
and neutral anchor phrases at several similarity scales. Configuration is
read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	root.AddCommand(newClassifyCmd(), newServeCmd())
	return root
}
