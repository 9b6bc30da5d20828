// Package invariants checks the five sanity properties the original
// implementation reports via its invariants subcommand, grounded on
// original_source/st2/src/commands/invariants.rs. These run as pure
// consumer-contract folds over the assembled PAG tuple stream rather than
// as core pipeline operators (spec §1, §9).
package invariants

import (
	"time"

	"github.com/sirupsen/logrus"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

// Config selects which checks run and their thresholds. A zero value (or
// nil *time.Duration) disables the corresponding temporal check.
type Config struct {
	Peers int

	MaxProgress *time.Duration
	MaxEpoch    *time.Duration
	MaxOperator *time.Duration
	MaxMessage  *time.Duration
}

// Checker folds PAG tuples and logs diagnostics as violations are found.
type Checker struct {
	cfg Config
	log *logrus.Logger

	epochControlCounts map[epochWorkerKey]uint64

	lastProgress map[logformat.WorkerID]progressState

	epochBounds map[uint64]*epochBound

	pendingOperator map[logformat.WorkerID]pag.Edge
}

type epochWorkerKey struct {
	epoch  uint64
	worker logformat.WorkerID
}

type progressState struct {
	last       pag.Node
	multiplier uint64
}

type epochBound struct {
	smallest pag.Node
	largest  pag.Node
	hasSmall bool
}

// New returns a Checker for the given configuration.
func New(cfg Config, log *logrus.Logger) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	for _, d := range []**time.Duration{&cfg.MaxProgress, &cfg.MaxEpoch, &cfg.MaxOperator, &cfg.MaxMessage} {
		if *d != nil && **d == 0 {
			*d = nil
		}
	}
	return &Checker{
		cfg:                cfg,
		log:                log,
		epochControlCounts: make(map[epochWorkerKey]uint64),
		lastProgress:       make(map[logformat.WorkerID]progressState),
		epochBounds:        make(map[uint64]*epochBound),
		pendingOperator:    make(map[logformat.WorkerID]pag.Edge),
	}
}

// Feed processes one PAG tuple, applying every enabled check.
func (c *Checker) Feed(t assembler.Tuple) {
	e := t.Edge

	c.checkSomeProgress(e)
	c.checkMaxProgress(e)
	if c.cfg.MaxEpoch != nil {
		c.checkMaxEpoch(e, *c.cfg.MaxEpoch)
	}
	if c.cfg.MaxOperator != nil {
		c.checkMaxOperator(e, *c.cfg.MaxOperator)
	}
	if c.cfg.MaxMessage != nil {
		c.checkMaxMessage(e, *c.cfg.MaxMessage)
	}
}

// checkSomeProgress tallies control messages per (epoch, worker); call
// FlushEpoch once an epoch is known complete to report any worker that fell
// short of peers-1 (spec: SomeProgress).
func (c *Checker) checkSomeProgress(e pag.Edge) {
	if e.EdgeType != logformat.ControlMessage {
		return
	}
	k := epochWorkerKey{epoch: e.Source.Epoch, worker: e.Source.WorkerID}
	c.epochControlCounts[k]++
}

// FlushEpoch reports SomeProgress violations for a completed epoch and
// discards its counters.
func (c *Checker) FlushEpoch(epoch uint64) {
	if c.cfg.Peers <= 1 {
		return
	}
	for w := 0; w < c.cfg.Peers; w++ {
		worker := logformat.WorkerID(w)
		k := epochWorkerKey{epoch: epoch, worker: worker}
		count := c.epochControlCounts[k]
		if count < uint64(c.cfg.Peers-1) {
			c.log.Infof("Progress Issue: w%d@e%d Sent progress to %d of %d other peers",
				worker, epoch, count, c.cfg.Peers-1)
		}
		delete(c.epochControlCounts, k)
	}
}

func (c *Checker) checkMaxProgress(e pag.Edge) {
	if c.cfg.MaxProgress == nil {
		return
	}
	max := *c.cfg.MaxProgress
	worker := e.Source.WorkerID
	st, ok := c.lastProgress[worker]
	if !ok {
		c.lastProgress[worker] = progressState{last: e.Source, multiplier: 1}
		return
	}
	if e.Source.Timestamp > st.last.Timestamp && e.Source.Timestamp-st.last.Timestamp > max*time.Duration(st.multiplier) {
		c.log.Infof("Progress Issue: No progress message sent by w%d since %s. Maximum allowed is %s.",
			worker, e.Source.Timestamp-st.last.Timestamp, max)
		st.multiplier++
		c.lastProgress[worker] = st
	}
	if e.EdgeType == logformat.ControlMessage {
		c.lastProgress[worker] = progressState{last: e.Source, multiplier: 1}
	}
}

func (c *Checker) checkMaxEpoch(e pag.Edge, max time.Duration) {
	b, ok := c.epochBounds[e.Source.Epoch]
	if !ok {
		b = &epochBound{}
		c.epochBounds[e.Source.Epoch] = b
	}
	if !b.hasSmall || e.Source.Timestamp < b.smallest.Timestamp {
		b.smallest = e.Source
		b.hasSmall = true
	}
	if e.Destination.Timestamp > b.largest.Timestamp {
		b.largest = e.Destination
	}
	if b.largest.Timestamp-b.smallest.Timestamp > max {
		c.log.Infof("Temporal Issue: Epoch %d ran from %s to %s, taking %s. Maximum allowed is %s.",
			e.Source.Epoch, b.smallest.Timestamp, b.largest.Timestamp,
			b.largest.Timestamp-b.smallest.Timestamp, max)
		delete(c.epochBounds, e.Source.Epoch)
	}
}

func (c *Checker) checkMaxOperator(e pag.Edge, max time.Duration) {
	if e.EdgeType != logformat.Processing && e.EdgeType != logformat.Spinning {
		return
	}
	worker := e.Source.WorkerID
	first, pending := c.pendingOperator[worker]
	if !pending {
		if e.EdgeType == logformat.Spinning || e.HasLength {
			c.reportOperatorSpan(e, e, max)
		} else {
			c.pendingOperator[worker] = e
		}
		return
	}
	if e.HasLength {
		delete(c.pendingOperator, worker)
		c.reportOperatorSpan(first, e, max)
	}
}

func (c *Checker) reportOperatorSpan(first, last pag.Edge, max time.Duration) {
	span := last.Destination.Timestamp - first.Source.Timestamp
	if span <= max {
		return
	}
	c.log.Infof("Temporal Issue: Operator %d in w%d@e%d (%s, %d records processed) ran from %s to %s, taking %s. Maximum allowed is %s.",
		first.OperatorID, first.Source.WorkerID, first.Source.Epoch, first.EdgeType,
		last.Length, first.Source.Timestamp, last.Destination.Timestamp, span, max)
}

func (c *Checker) checkMaxMessage(e pag.Edge, max time.Duration) {
	if e.EdgeType != logformat.ControlMessage && e.EdgeType != logformat.DataMessage {
		return
	}
	if e.Destination.Timestamp <= e.Source.Timestamp {
		return
	}
	span := e.Destination.Timestamp - e.Source.Timestamp
	if span <= max {
		return
	}
	c.log.Infof("Temporal Issue: %s (payload: %v) in e%d, w%d to w%d ran from %s to %s, taking %s. Maximum allowed is %s.",
		e.EdgeType, e.Length, e.Source.Epoch, e.Source.WorkerID, e.Destination.WorkerID,
		e.Source.Timestamp, e.Destination.Timestamp, span, max)
}
