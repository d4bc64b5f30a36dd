package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"syncai-fusion/internal/fusion"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		target    string
		task      string
		showStats bool
	)

	cmd := &cobra.Command{
		Use:   "ask TEXT",
		Short: "Answer one question through the fusion engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			answer := a.engine.Process(ctx, fusion.Request{
				Text:     args[0],
				Target:   target,
				TaskType: fusion.ParseTaskType(task),
			})
			fmt.Fprintln(cmd.OutOrStdout(), answer)

			if showStats {
				printStats(cmd, a.engine.Stats(ctx))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "remote workspace (default: configured workspace)")
	cmd.Flags().StringVar(&task, "task", string(fusion.TaskGeneral), "task type: chat, summary, topic_generation, single_topic, general")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print engine statistics after the answer")
	return cmd
}

func printStats(cmd *cobra.Command, s fusion.Stats) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "requests: %s (cache hits %s)\n", humanize.Comma(s.TotalRequests), humanize.Comma(s.CacheHits))
	fmt.Fprintf(w, "dual: %s  remote only: %s  local only: %s  fallback: %s\n",
		humanize.Comma(s.DualSuccess), humanize.Comma(s.RemoteOnly), humanize.Comma(s.LocalOnly), humanize.Comma(s.FallbackUsed))
	fmt.Fprintf(w, "avg remote %s  avg local %s  avg fusion %s\n", s.AvgRemoteTime, s.AvgLocalTime, s.AvgFusionTime)
	fmt.Fprintf(w, "cache: %s/%s entries\n", humanize.Comma(int64(s.CacheSize)), humanize.Comma(int64(s.CacheCapacity)))
}
