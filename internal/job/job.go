// Package job implements the AnalysisJob lifecycle: the state machine that
// owns one job's sources, sinks, and pipeline.Group for the duration of a
// single analysis run. Adapted from the teacher's internal/task state
// machine (internal/task/task.go, manager.go) - the Created/Starting/
// Running/Stopping/Stopped/Failed states are kept verbatim; the "maximum 1
// task" limit is not enforced by this package (each cmd invocation builds
// exactly one AnalysisJob); the 7-phase assembly (validate/resolve/construct/init/wire/assemble/
// start) collapses to validate/build-sources/build-sinks/assemble/start,
// since there is no plugin registry to resolve against - sources and sinks
// are concrete types selected by config.Mode, not dynamically loaded.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/config"
	"snailtrail.dev/st2/internal/invariants"
	stlog "snailtrail.dev/st2/internal/log"
	"snailtrail.dev/st2/internal/metrics"
	"snailtrail.dev/st2/internal/pipeline"
	"snailtrail.dev/st2/internal/sink"
	"snailtrail.dev/st2/internal/source"
)

// State represents where an AnalysisJob is in its lifecycle.
type State string

const (
	StateCreated  State = "created"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// AnalysisJob owns one analysis run's sources, sinks and pipeline.Group.
type AnalysisJob struct {
	Config config.Config

	sources  [][]source.EventSource
	sinks    []sink.PagSink
	checker  *invariants.Checker
	observer func(assembler.Tuple)
	group    *pipeline.Group
	log      *logrus.Logger

	mu            sync.RWMutex
	state         State
	createdAt     time.Time
	startedAt     time.Time
	stoppedAt     time.Time
	failureReason string

	doneCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs an AnalysisJob from already-built sources and sinks. It
// does not start the job - call Start. A nil logger falls back to
// internal/log.Default.
func New(cfg config.Config, sources [][]source.EventSource, sinks []sink.PagSink, checker *invariants.Checker, log *logrus.Logger) *AnalysisJob {
	if log == nil {
		log = stlog.Default
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AnalysisJob{
		Config:    cfg,
		sources:   sources,
		sinks:     sinks,
		checker:   checker,
		log:       log,
		state:     StateCreated,
		createdAt: time.Now(),
		doneCh:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetTupleObserver registers a callback invoked for every assembled PAG
// tuple, alongside the configured sinks (used by the dashboard to feed its
// ring buffer). Must be called before Start.
func (j *AnalysisJob) SetTupleObserver(f func(assembler.Tuple)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.observer = f
}

// State returns the current job state.
func (j *AnalysisJob) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

func (j *AnalysisJob) setState(s State) {
	old := j.state
	j.state = s
	j.log.WithFields(logrus.Fields{"job_id": j.Config.JobID, "state": s}).Info("job state changed")

	if old != "" {
		metrics.JobStatus.WithLabelValues(j.Config.JobID, string(old)).Set(0)
	}
	var v float64
	switch s {
	case StateRunning:
		v = metrics.JobStatusRunning
	case StateFailed:
		v = metrics.JobStatusError
	default:
		v = metrics.JobStatusStopped
	}
	metrics.JobStatus.WithLabelValues(j.Config.JobID, string(s)).Set(v)
}

// Start assembles the pipeline group, starts every sink, and begins
// processing. It starts components in reverse dependency order - sinks
// before the pipeline - so the pipeline always has somewhere to write
// (spec's Start ordering mirrors Task.Start: Reporters before Pipelines).
func (j *AnalysisJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state != StateCreated {
		return fmt.Errorf("cannot start job in state %s", j.state)
	}
	j.setState(StateStarting)
	j.startedAt = time.Now()

	startedSinks := 0
	for i, s := range j.sinks {
		if err := s.Start(j.ctx); err != nil {
			for k := startedSinks - 1; k >= 0; k-- {
				rollbackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if stopErr := j.sinks[k].Stop(rollbackCtx); stopErr != nil {
					j.log.WithFields(logrus.Fields{"job_id": j.Config.JobID, "sink": k, "error": stopErr}).Error("rollback: failed to stop sink")
				}
				cancel()
			}
			j.setState(StateFailed)
			j.failureReason = fmt.Sprintf("sink[%d] start failed: %v", i, err)
			return fmt.Errorf("sink[%d] start failed: %w", i, err)
		}
		startedSinks++
	}

	j.group = pipeline.NewGroup(j.Config.JobID, j.sources, j.Config.Source.AdmissionWindow, j.Config.Exchange.ByChannel, j.Config.OutputBuffer, j.log)

	go j.runLoop()
	go j.watchSourceErrors()

	j.setState(StateRunning)
	j.log.WithFields(logrus.Fields{"job_id": j.Config.JobID, "workers": len(j.sources), "sinks": len(j.sinks)}).Info("job started")
	return nil
}

// runLoop drives the pipeline group and fans its output to every sink and
// to the invariants checker until the group's assembled stream closes, then
// flushes and stops every sink and settles the job's final state - whether
// that close was triggered by Stop, by the sources draining naturally, or
// by watchSourceErrors aborting a --from-file run (spec §4.1 Failure
// semantics).
func (j *AnalysisJob) runLoop() {
	defer close(j.doneCh)

	groupDone := make(chan struct{})
	go func() {
		j.group.Run(j.ctx)
		close(groupDone)
	}()

	var lastEpoch uint64
	var hasLastEpoch bool

	for t := range j.group.Assembled() {
		if j.checker != nil {
			if hasLastEpoch && t.Time.Epoch > lastEpoch {
				j.checker.FlushEpoch(lastEpoch)
			}
			lastEpoch, hasLastEpoch = t.Time.Epoch, true
			j.checker.Feed(t)
		}
		if j.observer != nil {
			j.observer(t)
		}
		for _, s := range j.sinks {
			if err := s.Write(j.ctx, t); err != nil {
				j.log.WithFields(logrus.Fields{"job_id": j.Config.JobID, "sink": s.Name(), "error": err}).Warn("sink write error")
				metrics.SinkErrorsTotal.WithLabelValues(j.Config.JobID, s.Name(), "write").Inc()
			}
		}
	}
	if j.checker != nil && hasLastEpoch {
		j.checker.FlushEpoch(lastEpoch)
	}
	<-groupDone

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i, s := range j.sinks {
		if err := s.Flush(flushCtx); err != nil {
			j.log.WithFields(logrus.Fields{"job_id": j.Config.JobID, "sink": i, "error": err}).Warn("sink flush error")
			metrics.SinkErrorsTotal.WithLabelValues(j.Config.JobID, s.Name(), "flush").Inc()
		}
		if err := s.Stop(flushCtx); err != nil {
			j.log.WithFields(logrus.Fields{"job_id": j.Config.JobID, "sink": i, "error": err}).Warn("sink stop error")
			metrics.SinkErrorsTotal.WithLabelValues(j.Config.JobID, s.Name(), "stop").Inc()
		}
	}

	j.mu.Lock()
	if j.failureReason != "" {
		j.setState(StateFailed)
	} else {
		j.setState(StateStopped)
	}
	j.stoppedAt = time.Now()
	j.mu.Unlock()

	j.log.WithFields(logrus.Fields{"job_id": j.Config.JobID}).Info("job stopped")
}

// Stop stops the job: cancel the pipeline group and wait for runLoop to
// drain, flush every sink, and settle the final state (spec's Stop ordering
// mirrors Task.Stop: Pipelines before Reporters.Flush).
func (j *AnalysisJob) Stop() error {
	j.mu.Lock()
	if j.state != StateRunning {
		j.mu.Unlock()
		return fmt.Errorf("cannot stop job in state %s", j.state)
	}
	j.setState(StateStopping)
	j.mu.Unlock()

	j.cancel()
	<-j.doneCh
	return nil
}

// Done returns a channel closed once runLoop has fully drained, flushed
// every sink and settled the job's final state - whether that was triggered
// by Stop, by the sources draining naturally, or by a source error
// aborting a --from-file run (spec §4.1 Failure semantics). A caller that
// only waits for an OS signal to call Stop would otherwise hang forever
// once the job has already stopped itself.
func (j *AnalysisJob) Done() <-chan struct{} {
	return j.doneCh
}

// watchSourceErrors logs every fatal per-source error the pipeline surfaces
// and, for a --from-file analysis, records the first one as the job's
// failure reason and cancels the job's context so runLoop winds down early
// (spec §4.1: "a file-level analysis aborts; an online analysis logs and
// proceeds"). It never blocks or calls Stop itself, so it keeps draining
// group.SourceErrors() for as long as the group is running no matter how
// many sources fail.
func (j *AnalysisJob) watchSourceErrors() {
	for se := range j.group.SourceErrors() {
		j.log.WithFields(logrus.Fields{"job_id": j.Config.JobID, "source": se.Source, "error": se.Err}).Error("source error")
		if j.Config.Source.Mode != "file" {
			continue
		}
		j.mu.Lock()
		if j.failureReason == "" {
			j.failureReason = fmt.Sprintf("source %s: %v", se.Source, se.Err)
		}
		j.mu.Unlock()
		j.cancel()
	}
}

// Status is a point-in-time snapshot of job status.
type Status struct {
	ID            string    `json:"id"`
	State         State     `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	StoppedAt     time.Time `json:"stopped_at,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Uptime        string    `json:"uptime,omitempty"`
	Workers       int       `json:"workers"`
}

// GetStatus returns the current job status.
func (j *AnalysisJob) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := Status{
		ID:            j.Config.JobID,
		State:         j.state,
		CreatedAt:     j.createdAt,
		StartedAt:     j.startedAt,
		StoppedAt:     j.stoppedAt,
		FailureReason: j.failureReason,
		Workers:       len(j.sources),
	}
	if j.state == StateRunning && !j.startedAt.IsZero() {
		s.Uptime = time.Since(j.startedAt).String()
	}
	return s
}
