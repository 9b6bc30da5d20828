// Package pag defines the Program Activity Graph's node and edge types
// (spec §3), grounded on original_source/st2/src/pag.rs.
package pag

import (
	"time"

	"snailtrail.dev/st2/internal/logformat"
)

// Node is a single instant on a worker's timeline.
type Node struct {
	Timestamp time.Duration
	WorkerID  logformat.WorkerID
	Epoch     uint64
	SeqNo     uint64
}

// Less orders nodes by timestamp, tie-broken by (worker_id, seq_no), per
// spec §3's PagNode ordering.
func (n Node) Less(other Node) bool {
	if n.Timestamp != other.Timestamp {
		return n.Timestamp < other.Timestamp
	}
	if n.WorkerID != other.WorkerID {
		return n.WorkerID < other.WorkerID
	}
	return n.SeqNo < other.SeqNo
}

// NodeFromRecord builds a Node from the LogRecord's position fields.
func NodeFromRecord(r logformat.LogRecord) Node {
	return Node{
		Timestamp: r.Timestamp,
		WorkerID:  r.LocalWorker,
		Epoch:     r.Epoch,
		SeqNo:     r.SeqNo,
	}
}

// Traversal flags whether a downstream reachability walk (spec's k-hop
// summary) may cross an edge.
type Traversal int

const (
	// Unbounded edges may always be crossed.
	Unbounded Traversal = iota
	// Block edges may not be crossed by reachability algorithms - used for
	// Waiting edges, which represent idle time rather than data/control flow.
	Block
)

// Edge is a PAG edge: an activity between two timeline instants.
type Edge struct {
	Source      Node
	Destination Node
	EdgeType    logformat.ActivityType

	OperatorID    logformat.OperatorID
	HasOperatorID bool

	Traverse Traversal

	Length    uint64
	HasLength bool
}

// Duration returns the edge's wall-clock span, clamped to zero. Cross-worker
// edges may observe destination timestamps preceding source timestamps due
// to clock skew (spec §3, §9); this clamp is the documented tolerance, not a
// correction.
func (e Edge) Duration() time.Duration {
	d := e.Destination.Timestamp - e.Source.Timestamp
	if d < 0 {
		return 0
	}
	return d
}
