package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snailtrail.dev/st2/internal/config"
)

var invariantsFlags struct {
	peers       int
	progressMax int
	epochMax    int
	operatorMax int
	messageMax  int
}

var invariantsCmd = &cobra.Command{
	Use:   "invariants",
	Short: "Replay or tap a trace and report any of the five sanity-property violations",
	Long:  "invariants forces the invariants checker on regardless of invariants.enabled in config, logging a one-line diagnostic for each SomeProgress/MaxProgress/MaxEpoch/MaxOperator/MaxMessage violation as it is detected.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := newRunnerWithOverride(ctx, func(cfg *config.Config) {
			cfg.Invariants.Enabled = true
			if cmd.Flags().Changed("peers") {
				cfg.Invariants.Peers = invariantsFlags.peers
			}
			if cmd.Flags().Changed("progress-max") {
				cfg.Invariants.MaxProgress = msFlag(invariantsFlags.progressMax)
			}
			if cmd.Flags().Changed("epoch-max") {
				cfg.Invariants.MaxEpoch = msFlag(invariantsFlags.epochMax)
			}
			if cmd.Flags().Changed("operator-max") {
				cfg.Invariants.MaxOperator = msFlag(invariantsFlags.operatorMax)
			}
			if cmd.Flags().Changed("message-max") {
				cfg.Invariants.MaxMessage = msFlag(invariantsFlags.messageMax)
			}
		})
		if err != nil {
			return err
		}
		return r.runUntilSignal(ctx)
	},
}

func msFlag(ms int) string {
	return fmt.Sprintf("%dms", ms)
}

func init() {
	invariantsCmd.Flags().IntVar(&invariantsFlags.peers, "peers", 0, "number of source peers, enables the SomeProgress check when > 1")
	invariantsCmd.Flags().IntVar(&invariantsFlags.progressMax, "progress-max", 0, "max milliseconds a worker may go without sending a control message")
	invariantsCmd.Flags().IntVar(&invariantsFlags.epochMax, "epoch-max", 0, "max milliseconds a single epoch may span end to end")
	invariantsCmd.Flags().IntVar(&invariantsFlags.operatorMax, "operator-max", 0, "max milliseconds a single operator activation may take")
	invariantsCmd.Flags().IntVar(&invariantsFlags.messageMax, "message-max", 0, "max milliseconds a single message transfer may take")
	rootCmd.AddCommand(invariantsCmd)
}
