// Package main provides the entry point for termdeck.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string
	root := &cobra.Command{
		Use:           "termdeck",
		Short:         "Terminal workspace for an orchestrator agent and its sessions",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd.Context(), dataDir)
		},
	}
	root.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "configuration and catalog directory")

	root.AddCommand(newSessionsCmd(&dataDir))
	root.AddCommand(newVersionCmd())
	return root
}
