package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sitebook",
		Short: "Construction site record book with a conversational assistant",
		Long: `sitebook keeps projects, action items and notes, and lets a language model
update them from a conversation through a small JSON command protocol.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(), newTurnCmd(), newMigrateCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
