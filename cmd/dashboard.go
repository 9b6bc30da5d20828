package cmd

import (
	"github.com/spf13/cobra"

	"snailtrail.dev/st2/internal/config"
	"snailtrail.dev/st2/internal/dashboard"
)

var dashboardFlags struct {
	listen     string
	ringBuffer int
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Replay or tap a trace and serve the assembled PAG over a WebSocket dashboard",
	Long:  "dashboard forces the dashboard server on, buffering every assembled edge into a bounded per-epoch ring and serving `{type, epoch}` requests over WebSocket until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := newRunnerWithOverride(ctx, func(cfg *config.Config) {
			cfg.Dashboard.Enabled = true
			if cmd.Flags().Changed("listen") {
				cfg.Dashboard.Listen = dashboardFlags.listen
			}
			if cmd.Flags().Changed("ring-buffer") {
				cfg.Dashboard.RingBuffer = dashboardFlags.ringBuffer
			}
		})
		if err != nil {
			return err
		}

		ring := dashboard.NewRing(r.cfg.Dashboard.RingBuffer)
		r.observe(ring.Feed)

		srv := dashboard.NewServer(r.cfg.Dashboard.Listen, ring, nil)
		if err := srv.Start(ctx); err != nil {
			return err
		}

		if err := r.runUntilSignal(ctx); err != nil {
			return err
		}
		return srv.Stop(ctx)
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardFlags.listen, "listen", "", "address the dashboard WebSocket server binds (default 127.0.0.1:3012)")
	dashboardCmd.Flags().IntVar(&dashboardFlags.ringBuffer, "ring-buffer", 0, "number of epochs retained for replay on reconnect")
	rootCmd.AddCommand(dashboardCmd)
}
