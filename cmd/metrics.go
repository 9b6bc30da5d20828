package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"snailtrail.dev/st2/internal/metrics"
)

var metricsFlags struct {
	out string
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Run an analysis and report the aggregated per-(epoch,worker-pair,activity) CSV summary",
	Long:  "metrics replays or taps a trace, folds every assembled edge into the aggregated metrics table (epoch+1,from_worker,to_worker,activity_type,#activities,t(activities),#records), and writes it as CSV once the run completes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := newRunner(ctx)
		if err != nil {
			return err
		}

		w := metrics.NewCSVWriter()
		r.observe(w.Feed)

		if err := r.runUntilSignal(ctx); err != nil {
			return err
		}

		out := os.Stdout
		if metricsFlags.out != "" {
			f, err := os.Create(metricsFlags.out)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return w.WriteTo(out)
	},
}

func init() {
	metricsCmd.Flags().StringVar(&metricsFlags.out, "out", "", "write the CSV summary to this path instead of stdout")
	rootCmd.AddCommand(metricsCmd)
}
