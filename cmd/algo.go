package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/khop"
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

var algoFlags struct {
	worker    uint64
	epoch     uint64
	timestamp time.Duration
	hops      int
}

var algoCmd = &cobra.Command{
	Use:   "algo",
	Short: "Replay or tap a trace and report a k-hop reachability summary from a starting point",
	Long:  "algo accumulates every assembled PAG edge, then walks up to --hops edges forward from the node identified by --worker/--epoch/--timestamp, refusing to cross Block-traversal edges, and prints every node reached.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := newRunner(ctx)
		if err != nil {
			return err
		}

		var mu sync.Mutex
		var edges []pag.Edge
		r.observe(func(t assembler.Tuple) {
			mu.Lock()
			edges = append(edges, t.Edge)
			mu.Unlock()
		})

		if err := r.runUntilSignal(ctx); err != nil {
			return err
		}

		start := pag.Node{
			WorkerID:  logformat.WorkerID(algoFlags.worker),
			Epoch:     algoFlags.epoch,
			Timestamp: algoFlags.timestamp,
		}
		g := khop.NewGraph(edges)
		reached := g.Reachable(start, algoFlags.hops)

		fmt.Printf("%d edges observed, %d nodes reachable within %d hops of worker %d epoch %d @%s:\n",
			len(edges), len(reached), algoFlags.hops, algoFlags.worker, algoFlags.epoch, algoFlags.timestamp)
		for _, n := range reached {
			fmt.Printf("  worker=%d epoch=%d t=%s seq=%d\n", n.WorkerID, n.Epoch, n.Timestamp, n.SeqNo)
		}
		return nil
	},
}

func init() {
	algoCmd.Flags().Uint64Var(&algoFlags.worker, "worker", 0, "starting node's worker id")
	algoCmd.Flags().Uint64Var(&algoFlags.epoch, "epoch", 0, "starting node's epoch")
	algoCmd.Flags().DurationVar(&algoFlags.timestamp, "timestamp", 0, "starting node's in-epoch timestamp (e.g. 1.5ms)")
	algoCmd.Flags().IntVar(&algoFlags.hops, "hops", 1, "maximum number of edges to walk forward")
	rootCmd.AddCommand(algoCmd)
}
