// Package cmd implements the st2 command line: a root command carrying the
// replay/trace-tap flags every subcommand shares, plus one subcommand per
// analysis surface (metrics, inspect, algo, invariants, dashboard). Adapted
// from the teacher's cmd/root.go - same cobra.Command/PersistentFlags/init
// registration idiom - with the daemon/RPC client plumbing dropped in favor
// of a direct in-process analysis run per invocation.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "st2",
	Short:   "SnailTrail analyzer for distributed stream-processing traces",
	Long:    "st2 reconstructs a Program Activity Graph from per-worker event traces emitted by an instrumented dataflow computation, either replayed from dump files or tapped live over TCP/Kafka.",
	Version: "0.1.0",
}

// cliFlags holds the persistent flags every subcommand reads to override
// the loaded config.Config before building a job.
var cliFlags struct {
	iface             string
	port              int
	fromFile          string
	sourcePeers       int
	snailtrailWorkers int
	configPath        string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cliFlags.iface, "interface", "", "network interface/address to bind for TCP trace taps (overrides source.tcp.interface)")
	rootCmd.PersistentFlags().IntVar(&cliFlags.port, "port", 0, "TCP port to listen on for trace taps (overrides source.tcp.port)")
	rootCmd.PersistentFlags().StringVar(&cliFlags.fromFile, "from-file", "", "directory of <worker>.dump files to replay (overrides source.file.dir, implies source.mode=file)")
	rootCmd.PersistentFlags().IntVar(&cliFlags.sourcePeers, "source-peers", 0, "number of source-side workers that produced trace data (overrides source.source_peers)")
	rootCmd.PersistentFlags().IntVar(&cliFlags.snailtrailWorkers, "snailtrail-workers", 0, "number of analysis workers this process runs (overrides source.snailtrail_workers)")
	rootCmd.PersistentFlags().StringVarP(&cliFlags.configPath, "config", "c", "", "path to a YAML config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func exitWithError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
