package main

import (
	"github.com/spf13/cobra"

	"github.com/contentdex/contentdex/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "contentdex",
		Short:         "Content search index sync and query service",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCancelCmd())
	return root
}
