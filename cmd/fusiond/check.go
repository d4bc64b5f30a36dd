package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"syncai-fusion/internal/local"
	"syncai-fusion/internal/remote"
)

var errCheckFailed = errors.New("check failed")

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate config and check both backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			failed := false

			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "config:  FAIL  %v\n", err)
				return errCheckFailed
			}
			fmt.Fprintln(out, "config:  ok")

			remoteClient, err := remote.NewClient(cfg.RemoteClientConfig(), logger)
			if err != nil {
				return err
			}
			defer remoteClient.Close()

			if remoteClient.TestConnection(ctx) {
				fmt.Fprintf(out, "remote:  ok    %s\n", remoteClient.BaseURL())
			} else {
				fmt.Fprintf(out, "remote:  FAIL  %s unreachable or key rejected\n", remoteClient.BaseURL())
				failed = true
			}

			localClient, err := local.NewClient(cfg.LocalClientConfig(), logger)
			if err != nil {
				return err
			}
			defer localClient.Close()

			switch err := localClient.EnsureLoaded(ctx, cfg.Local.DefaultModel); {
			case errors.Is(err, local.ErrModelNotFound):
				fmt.Fprintf(out, "local:   FAIL  model file missing: %v\n", err)
				failed = true
			case err != nil:
				fmt.Fprintf(out, "local:   FAIL  %v\n", err)
				failed = true
			default:
				info := localClient.Info()
				fmt.Fprintf(out, "local:   ok    %s loaded %s\n", info.Model, humanize.Time(info.LoadedAt))
			}

			if failed {
				return errCheckFailed
			}
			return nil
		},
	}
}
