package cmd

import (
	"context"
	"fmt"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/config"
	"snailtrail.dev/st2/internal/job"
)

// runner bundles one analysis run's built dependencies, shared by every
// subcommand so each only wires the bits specific to its surface.
type runner struct {
	cfg *config.Config
	job *job.AnalysisJob

	stopMetrics func(context.Context) error
}

// newRunner loads config, builds sources/sinks/logger/invariants checker and
// the metrics server, and constructs (but does not start) the AnalysisJob.
func newRunner(ctx context.Context) (*runner, error) {
	return newRunnerWithOverride(ctx, nil)
}

// newRunnerWithOverride is newRunner, but applies override to the loaded
// config before any source/sink/checker is built from it - used by
// subcommands that force a particular sink or check on regardless of what
// the config file says (inspect, invariants, dashboard).
func newRunnerWithOverride(ctx context.Context, override func(*config.Config)) (*runner, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	sources, err := buildSources(cfg)
	if err != nil {
		return nil, err
	}
	sinks, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}
	checker, err := buildInvariantsChecker(cfg, log)
	if err != nil {
		return nil, err
	}

	stopMetrics, err := maybeStartMetricsServer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	j := job.New(*cfg, sources, sinks, checker, log)

	return &runner{cfg: cfg, job: j, stopMetrics: stopMetrics}, nil
}

// runUntilSignal starts the job, blocks until SIGINT/SIGTERM, ctx is done,
// or the job stops itself (spec §4.1: a --from-file run aborts on a source
// decode/IO error, and any file-backed run ends once its sources drain),
// then stops the job if it is still running and stops the metrics server.
func (r *runner) runUntilSignal(ctx context.Context) error {
	if err := r.job.Start(); err != nil {
		return err
	}
	waitForSignal(ctx, r.job.Done())

	// Done already fired because the job stopped itself (drained its
	// sources or aborted); Stop would just report "not running" for a
	// case that isn't an error. Only call Stop for the signal/ctx wakeups.
	if r.job.State() == job.StateRunning {
		if err := r.job.Stop(); err != nil {
			return err
		}
	}

	if reason := r.job.GetStatus().FailureReason; reason != "" {
		if err := r.stopMetrics(ctx); err != nil {
			return fmt.Errorf("analysis aborted: %s (metrics server stop also failed: %v)", reason, err)
		}
		return fmt.Errorf("analysis aborted: %s", reason)
	}

	return r.stopMetrics(ctx)
}

// observe registers f as the job's tuple observer before Start is called.
func (r *runner) observe(f func(assembler.Tuple)) {
	r.job.SetTupleObserver(f)
}
