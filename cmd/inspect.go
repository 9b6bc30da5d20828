package cmd

import (
	"github.com/spf13/cobra"

	"snailtrail.dev/st2/internal/config"
)

var inspectFlags struct {
	format string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Replay or tap a trace and print every assembled PAG edge as it is produced",
	Long:  "inspect forces the console sink on (ignoring sinks.console.enabled) and streams every assembled edge to stdout for interactive debugging, until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := newRunnerWithOverride(ctx, func(cfg *config.Config) {
			cfg.Sinks.Console.Enabled = true
			cfg.Sinks.Console.Format = inspectFlags.format
		})
		if err != nil {
			return err
		}
		return r.runUntilSignal(ctx)
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFlags.format, "format", "f", "text", "output rendering: text or json")
	rootCmd.AddCommand(inspectCmd)
}
