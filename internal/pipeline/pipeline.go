// Package pipeline wires one analysis job's per-worker processing chain:
// replay -> peel -> build -> local-edge -> remote-edge exchange/join ->
// assemble (spec §2, §4). The shape - one goroutine per stage driven by
// context cancellation and shared WaitGroups, with Prometheus counters
// updated alongside - is adapted from the teacher's
// internal/pipeline/pipeline.go capture/decode/parse/process/report engine;
// here the stages are the PAG construction steps instead of packet
// decode/parse/process/report.
package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/builder"
	"snailtrail.dev/st2/internal/localedge"
	"snailtrail.dev/st2/internal/logformat"
	stlog "snailtrail.dev/st2/internal/log"
	"snailtrail.dev/st2/internal/metrics"
	"snailtrail.dev/st2/internal/pag"
	"snailtrail.dev/st2/internal/peel"
	"snailtrail.dev/st2/internal/remoteedge"
	"snailtrail.dev/st2/internal/replay"
	"snailtrail.dev/st2/internal/source"
	"snailtrail.dev/st2/internal/stError"
)

// evictInterval bounds how often the remote-edge join's state is retired
// against the group's global input frontier.
const evictInterval = 200 * time.Millisecond

// remoteInBuffer is the per-worker inbox for records the exchange policy
// routes across workers.
const remoteInBuffer = 4096

// Worker runs the full per-worker chain over its assigned sources.
type Worker struct {
	jobName string
	id      logformat.WorkerID
	log     *logrus.Logger

	replayer     *replay.Replayer
	peeler       *peel.Peeler
	localBuilder *localedge.Builder
	join         *remoteedge.Join
	asm          *assembler.Assembler

	remoteIn chan logformat.LogRecord
}

func newWorker(jobName string, id logformat.WorkerID, sources []source.EventSource, k uint64, asm *assembler.Assembler, log *logrus.Logger) *Worker {
	return &Worker{
		jobName:      jobName,
		id:           id,
		log:          log,
		replayer:     replay.New(sources, k),
		peeler:       peel.New(),
		localBuilder: localedge.New(),
		join:         remoteedge.New(),
		asm:          asm,
		remoteIn:     make(chan logformat.LogRecord, remoteInBuffer),
	}
}

func (w *Worker) workerLabel() string {
	return strconv.FormatUint(uint64(w.id), 10)
}

// errLoop drains the replayer's per-source errors, logs each one and
// forwards it to out (the group's merged source-error stream) so the job
// can decide whether a --from-file run should abort (spec §4.1 Failure
// semantics).
func (w *Worker) errLoop(out chan<- replay.SourceError) {
	for se := range w.replayer.Errs() {
		metrics.SourceErrorsTotal.WithLabelValues(w.jobName, w.workerLabel(), se.Source).Inc()
		w.log.WithFields(logrus.Fields{"job": w.jobName, "worker": w.id, "source": se.Source, "error": se.Err}).Error("source error")
		out <- se
	}
}

// mainLoop drains the replayer through peel/build/local-edge, routes
// cross-worker records to their owning worker's remoteIn, and exits once
// the replayer's output channel closes (input exhausted or ctx cancelled).
func (w *Worker) mainLoop(route func(logformat.LogRecord)) {
	for a := range w.replayer.Out() {
		metrics.RecordsAdmittedTotal.WithLabelValues(w.jobName, w.workerLabel()).Inc()

		admitted, forward := w.peeler.Feed(a)
		if !forward {
			continue
		}

		rec, ok := builder.Build(admitted, w.id)
		if !ok {
			continue
		}

		edge, has, err := w.localBuilder.Feed(rec)
		if err != nil {
			w.reportViolation("localedge", err)
		} else if has {
			w.asm.FeedLocal(edge)
			metrics.EdgesEmittedTotal.WithLabelValues(w.jobName, w.workerLabel(), "local").Inc()
			metrics.EdgeDurationSeconds.WithLabelValues(w.jobName, w.workerLabel(), edge.EdgeType.String()).Observe(edge.Duration().Seconds())
		}

		if rec.ActivityType == logformat.DataMessage || rec.ActivityType == logformat.ControlMessage {
			route(rec)
		}

		if f, ok := w.replayer.MinEpoch(); ok {
			metrics.InputFrontierEpoch.WithLabelValues(w.jobName, w.workerLabel()).Set(float64(f))
		}
	}
}

// joinLoop drains remoteIn, feeding each record into the local Join half
// and forwarding any resulting edges to the assembler.
func (w *Worker) joinLoop() {
	for rec := range w.remoteIn {
		var edges []pag.Edge
		var err error

		switch rec.EventType {
		case logformat.Sent:
			edges, err = w.join.FeedSend(rec)
		case logformat.Received:
			edges, err = w.join.FeedReceive(rec)
		}

		if err != nil {
			w.reportViolation("remoteedge", err)
			continue
		}
		for _, e := range edges {
			w.asm.FeedRemote(e)
			metrics.EdgesEmittedTotal.WithLabelValues(w.jobName, w.workerLabel(), "remote").Inc()
		}
	}
}

func (w *Worker) reportViolation(stage string, err error) {
	metrics.AssertionViolationsTotal.WithLabelValues(w.jobName, w.workerLabel(), stage).Inc()
	fields := logrus.Fields{"job": w.jobName, "worker": w.id, "stage": stage, "error": err}
	if stError.Is(err, stError.AssertionViolation) {
		w.log.WithFields(fields).Error("assertion violation")
		return
	}
	w.log.WithFields(fields).Error("pipeline stage error")
}

// Group owns every analysis worker of a job plus the shared exchange policy
// and assembler they feed into.
type Group struct {
	jobName  string
	workers  []*Worker
	exchange *remoteedge.ExchangePolicy
	asm      *assembler.Assembler
	srcErrs  chan replay.SourceError
}

// NewGroup builds a Group with one Worker per entry in perWorkerSources.
// byChannel selects the (correlator_id, channel_id) exchange key instead of
// correlator_id alone (spec §4.5). A nil log falls back to
// internal/log.Default.
func NewGroup(jobName string, perWorkerSources [][]source.EventSource, k uint64, byChannel bool, outputBuffer int, log *logrus.Logger) *Group {
	if log == nil {
		log = stlog.Default
	}
	n := len(perWorkerSources)
	asm := assembler.New(outputBuffer)
	g := &Group{
		jobName:  jobName,
		exchange: remoteedge.NewExchangePolicy(n, byChannel),
		asm:      asm,
		srcErrs:  make(chan replay.SourceError, n),
	}
	g.workers = make([]*Worker, n)
	for i, srcs := range perWorkerSources {
		g.workers[i] = newWorker(jobName, logformat.WorkerID(i), srcs, k, asm, log)
	}
	return g
}

// Assembled returns the merged PAG tuple stream shared by every worker.
func (g *Group) Assembled() <-chan assembler.Tuple {
	return g.asm.Out()
}

// SourceErrors returns the merged stream of fatal per-source errors across
// every worker's replayer (spec §4.1 Failure semantics). Closed once Run
// returns.
func (g *Group) SourceErrors() <-chan replay.SourceError {
	return g.srcErrs
}

func (g *Group) route(rec logformat.LogRecord) {
	owner := g.exchange.Owner(rec)
	g.workers[owner].remoteIn <- rec
}

// Run starts every worker's replayer, main loop, and join loop, then blocks
// until they all exit (input exhausted or ctx cancelled), at which point the
// assembler is closed.
func (g *Group) Run(ctx context.Context) {
	var replayWg, mainWg, joinWg, errWg sync.WaitGroup

	for _, w := range g.workers {
		replayWg.Add(1)
		go func(w *Worker) {
			defer replayWg.Done()
			w.replayer.Run(ctx)
		}(w)
	}

	for _, w := range g.workers {
		errWg.Add(1)
		go func(w *Worker) {
			defer errWg.Done()
			w.errLoop(g.srcErrs)
		}(w)
	}

	for _, w := range g.workers {
		joinWg.Add(1)
		go func(w *Worker) {
			defer joinWg.Done()
			w.joinLoop()
		}(w)
	}

	evictCtx, cancelEvict := context.WithCancel(ctx)
	go g.evictLoop(evictCtx)

	for _, w := range g.workers {
		mainWg.Add(1)
		go func(w *Worker) {
			defer mainWg.Done()
			w.mainLoop(g.route)
		}(w)
	}

	// Every worker's replayer must drain (and every mainLoop with it) before
	// any remoteIn channel closes, since routing happens from inside
	// mainLoop while the replayer is still live.
	replayWg.Wait()
	mainWg.Wait()
	cancelEvict()

	for _, w := range g.workers {
		close(w.remoteIn)
	}
	joinWg.Wait()

	// Every replayer's Errs() channel closes once its Run returns above, so
	// every errLoop goroutine exits on its own; wait for them before closing
	// the merged stream.
	errWg.Wait()
	close(g.srcErrs)

	g.asm.Close()
}

// evictLoop periodically retires remote-edge join state once the group's
// global input frontier has advanced past it (spec §4.5).
func (g *Group) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.evictOnce()
		}
	}
}

func (g *Group) evictOnce() {
	var global uint64
	first := true
	for _, w := range g.workers {
		f, ok := w.replayer.MinEpoch()
		if !ok {
			return // a worker has no outstanding capability yet; nothing is safe to evict
		}
		if first || f < global {
			global = f
			first = false
		}
	}
	if first || global == 0 {
		return
	}
	for _, w := range g.workers {
		w.join.Evict(global - 1)
	}
}
