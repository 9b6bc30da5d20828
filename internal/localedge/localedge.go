// Package localedge pairs consecutive LogRecords on the same worker+epoch
// into PagEdges (spec §4.4), grounded on build_local_edge/make_local_edges in
// original_source/st2/src/pag.rs.
package localedge

import (
	"fmt"
	"time"

	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
	"snailtrail.dev/st2/internal/stError"
)

// threshold (theta) distinguishes a Busy transition from a Waiting one
// (spec §4.4 table).
const threshold = 15 * time.Microsecond

// Builder holds one slot per worker seen so far.
type Builder struct {
	lastByWorker map[logformat.WorkerID]logformat.LogRecord
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{lastByWorker: make(map[logformat.WorkerID]logformat.LogRecord)}
}

// Feed processes one incoming record for its worker's timeline, returning an
// edge if the predecessor was in the same epoch (spec §4.4 Protocol steps
// 1-4).
func (b *Builder) Feed(r logformat.LogRecord) (pag.Edge, bool, error) {
	p, has := b.lastByWorker[r.LocalWorker]
	if !has {
		b.lastByWorker[r.LocalWorker] = r
		return pag.Edge{}, false, nil
	}

	if p.Epoch > r.Epoch || (p.Epoch == r.Epoch && p.Timestamp > r.Timestamp) {
		return pag.Edge{}, false, stError.New(stError.AssertionViolation,
			fmt.Sprintf("worker %d: record out of order: prev=(%d,%s) next=(%d,%s)",
				r.LocalWorker, p.Epoch, p.Timestamp, r.Epoch, r.Timestamp))
	}

	sameEpoch := p.Epoch == r.Epoch
	b.lastByWorker[r.LocalWorker] = r

	if !sameEpoch {
		return pag.Edge{}, false, nil
	}

	edge, err := build(p, r)
	if err != nil {
		return pag.Edge{}, false, err
	}
	return edge, true, nil
}

// build derives a PagEdge from two adjacent records per the classification
// table in spec §4.4.
func build(p, r logformat.LogRecord) (pag.Edge, error) {
	delta := r.Timestamp - p.Timestamp

	var edgeType logformat.ActivityType
	switch {
	case p.ActivityType == logformat.Scheduling && r.ActivityType == logformat.Scheduling &&
		p.EventType == logformat.Start && r.EventType == logformat.End:
		if r.HasLength {
			edgeType = logformat.Processing
		} else {
			edgeType = logformat.Spinning
		}

	case p.ActivityType == logformat.Scheduling && r.ActivityType == logformat.Scheduling &&
		p.EventType == logformat.End && r.EventType == logformat.Start:
		edgeType = busyOrWaiting(delta)

	case p.ActivityType == logformat.ControlMessage || r.ActivityType == logformat.ControlMessage:
		edgeType = busyOrWaiting(delta)

	case p.ActivityType == logformat.DataMessage || r.ActivityType == logformat.DataMessage:
		edgeType = logformat.Processing

	default:
		return pag.Edge{}, stError.New(stError.AssertionViolation,
			fmt.Sprintf("ill-formed trace: worker %d epoch %d: no rule for %s/%s -> %s/%s",
				r.LocalWorker, r.Epoch, p.ActivityType, p.EventType, r.ActivityType, r.EventType))
	}

	edge := pag.Edge{
		Source:      pag.NodeFromRecord(p),
		Destination: pag.NodeFromRecord(r),
		EdgeType:    edgeType,
	}

	if p.EventType != logformat.End && r.EventType != logformat.Start && p.HasOperatorID {
		edge.OperatorID, edge.HasOperatorID = p.OperatorID, true
	}

	if edgeType == logformat.Waiting {
		edge.Traverse = pag.Block
	} else {
		edge.Traverse = pag.Unbounded
	}

	if r.ActivityType == logformat.Scheduling && r.HasLength {
		edge.Length, edge.HasLength = r.Length, true
	}

	return edge, nil
}

func busyOrWaiting(delta time.Duration) logformat.ActivityType {
	if delta > threshold {
		return logformat.Waiting
	}
	return logformat.Busy
}
