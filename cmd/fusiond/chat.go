package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncai-fusion/internal/remote"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "chat TEXT",
		Short: "Stream a raw answer from the remote workspace",
		Args:  cobra.ExactArgs(1),
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

			results, err := client.StreamChat(cmd.Context(), &remote.ChatRequest{
				Message:   args[0],
				Workspace: target,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for res := range results {
				if res.Err != nil {
					fmt.Fprintln(out)
					return res.Err
				}
				fmt.Fprint(out, res.Chunk.Delta)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "remote workspace (default: configured workspace)")
	return cmd
}
