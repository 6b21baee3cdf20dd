package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdullathedruid/termdeck/internal/catalog"
	"github.com/abdullathedruid/termdeck/internal/config"
)

func newSessionsCmd(dataDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage the session catalog",
	}
	cmd.AddCommand(newSessionsListCmd(dataDir))
	cmd.AddCommand(newSessionsAddCmd(dataDir))
	cmd.AddCommand(newSessionsRemoveCmd(dataDir))
	return cmd
}

func openCatalog(ctx context.Context, dataDir string) (*catalog.Store, error) {
	cfg, err := loadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	return catalog.Open(ctx, cfg.CatalogFile())
}

func newSessionsListCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog(cmd.Context(), *dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCOLOR\tREADY\tCWD")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", e.Name, e.Color, e.Ready, e.Cwd)
			}
			return w.Flush()
		},
	}
}

func newSessionsAddCmd(dataDir *string) *cobra.Command {
	var color, cwd string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or update a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if color != "" && !config.ValidateColor(color) {
				return fmt.Errorf("unknown color %q", color)
			}
			store, err := openCatalog(cmd.Context(), *dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			entry := catalog.Entry{Name: args[0], Color: color, Cwd: cwd}
			if err := store.Upsert(cmd.Context(), entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "focus ring color")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory for the session's terminals")
	return cmd
}

func newSessionsRemoveCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a session from the catalog",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog(cmd.Context(), *dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}
