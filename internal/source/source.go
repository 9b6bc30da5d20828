// Package source defines the per-worker event source abstraction consumed by
// the throttled replayer, grounded on the Replayer/ReplayerType split in
// original_source/timely-adapter/src/connect.rs and on the teacher's
// pkg/pipeline.go DataSource interface (adapted: the teacher's DataSource
// yields raw bytes; ours yields already-decoded batches, per spec §1's
// "the replayer consumes an opaque iterator of already-decoded event
// batches").
package source

import (
	"context"
	"time"

	"snailtrail.dev/st2/internal/logformat"
)

// Batch is one unit a Source can hand to the replayer: either a Progress
// capability update or a Messages batch (spec §4.1 Input).
type Batch struct {
	IsProgress bool

	// Progress: a list of (logical_time, delta) capability updates.
	ProgressDeltas []ProgressDelta

	// Messages: a single logical time plus the raw events observed at it.
	Time   logformat.LogicalTime
	Events []logformat.RawEvent
}

// ProgressDelta is one capability update: delta applied at Time.
type ProgressDelta struct {
	Time  logformat.LogicalTime
	Delta int64
}

// EventSource is one per-source-worker stream of framed events. Framing
// (TCP, file, Kafka) is opaque to the rest of the pipeline; a Source only
// ever yields decoded Batches.
type EventSource interface {
	// Name identifies the source for logging (e.g. "<dir>/0.dump",
	// "tcp:<remote addr>").
	Name() string

	// Next returns the next available Batch without blocking beyond a small
	// internal timeout. It returns (Batch{}, false, nil) when nothing is
	// currently available (not an error - the replayer polls sources on
	// each activation per spec §4.1 step 1), and a non-nil error only on a
	// genuine decode/IO failure. End of stream is signalled by returning
	// io.EOF-equivalent via the ok=false, err=nil contract combined with
	// Closed() reporting true.
	Next(ctx context.Context) (Batch, bool, error)

	// Closed reports whether the source has been drained (EOF) and will
	// never yield another Batch.
	Closed() bool

	// Close releases any underlying resources (socket, file handle).
	Close() error
}

// PollInterval is the default non-blocking poll cadence sources without
// their own readiness notification use between Next() attempts.
const PollInterval = 2 * time.Millisecond
