package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"syncai-fusion/internal/remote"
)

func newWorkspaceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage remote workspaces",
	}
	cmd.AddCommand(newWorkspaceEnsureCmd(opts), newWorkspaceListCmd(opts))
	return cmd
}

func newWorkspaceEnsureCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure CODE TITLE",
		Short: "Create the workspace for a room if it does not exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			client, err := remote.NewClient(cfg.RemoteClientConfig(), logger)
			if err != nil {
				return err
			}
			defer client.Close()

			slug, err := client.EnsureWorkspace(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), slug)
			return nil
		},
	}
}

func newWorkspaceListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remote workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			client, err := remote.NewClient(cfg.RemoteClientConfig(), logger)
			if err != nil {
				return err
			}
			defer client.Close()

			workspaces, err := client.ListWorkspaces(cmd.Context())
			if err != nil {
				return err
			}
			if len(workspaces) == 0 {
				fmt.Println("No workspaces found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tNAME")
			for _, ws := range workspaces {
				fmt.Fprintf(w, "%d\t%s\t%s\n", ws.ID, ws.Slug, ws.Name)
			}
			return w.Flush()
		},
	}
}
