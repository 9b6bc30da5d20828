// Package logformat defines the normalized event and timestamp types that flow
// through the PAG construction pipeline.
package logformat

import (
	"fmt"
	"time"
)

// LogicalTime is the dataflow timestamp: a lexicographically ordered pair of
// an epoch counter and a wall-clock duration within that epoch. It replaces
// the PartialOrder/Timestamp/PathSummary/Lattice trait hierarchy the original
// implementation plugged into its dataflow runtime with the minimal interface
// this runtime needs: LessEqual, Join, Meet and Minimum.
type LogicalTime struct {
	Epoch    uint64
	Duration time.Duration
}

// NewLogicalTime constructs a LogicalTime.
func NewLogicalTime(epoch uint64, d time.Duration) LogicalTime {
	return LogicalTime{Epoch: epoch, Duration: d}
}

// Less reports whether t is strictly less than other in lexicographic order.
func (t LogicalTime) Less(other LogicalTime) bool {
	if t.Epoch != other.Epoch {
		return t.Epoch < other.Epoch
	}
	return t.Duration < other.Duration
}

// LessEqual reports whether t <= other lexicographically.
func (t LogicalTime) LessEqual(other LogicalTime) bool {
	return t == other || t.Less(other)
}

// Join returns the least upper bound of t and other.
func (t LogicalTime) Join(other LogicalTime) LogicalTime {
	if t.LessEqual(other) {
		return other
	}
	return t
}

// Meet returns the greatest lower bound of t and other.
func (t LogicalTime) Meet(other LogicalTime) LogicalTime {
	if t.LessEqual(other) {
		return t
	}
	return other
}

// Minimum is the bottom element of the lattice: epoch 0, duration 0.
func Minimum() LogicalTime {
	return LogicalTime{}
}

// Summary is the per-time path summary. The original's PathSummary is a unit
// type for this composite time (there is no meaningful non-identity delay on
// a (epoch, duration) pair as used by this pipeline), so Summary carries no
// fields; it exists only so callers have a concrete type to advance through.
type Summary struct{}

// Advance applies the (trivial) summary to t, returning t unchanged.
func (Summary) Advance(t LogicalTime) LogicalTime {
	return t
}

func (t LogicalTime) String() string {
	return fmt.Sprintf("(%d, %s)", t.Epoch, t.Duration)
}
