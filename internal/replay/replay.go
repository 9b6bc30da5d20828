// Package replay implements the throttled multi-source replayer (spec §4.1),
// grounded on the capability/antichain bookkeeping in
// original_source/timely-adapter/src/replay_throttled.rs and on the
// goroutine-per-source fan-in shape of the teacher's
// internal/otus/pipeline/partition.go (adapted: a partition there decodes
// and dispatches packets; a sourceWorker here buffers and throttles
// already-decoded batches).
package replay

import (
	"context"
	"sort"
	"sync"
	"time"

	"snailtrail.dev/st2/internal/frontier"
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/source"
)

// SourceError reports a fatal decode/IO failure on one source (spec §4.1
// Failure semantics): the source is closed and its share of the frontier
// released, but other sources continue draining. Callers decide what
// "fatal" means at the job level - abort for a file-backed analysis, log
// and proceed for an online one.
type SourceError struct {
	Source string
	Err    error
}

// Admitted is one throttled-through tuple: the framing coordinates plus the
// raw event (spec §4.1 Output).
type Admitted struct {
	Epoch  uint64
	SeqNo  uint64
	Length uint64
	HasLen bool
	Time   logformat.LogicalTime
	Event  logformat.RawEvent
}

// Replayer fans in the sources assigned to one analysis worker and emits
// Admitted tuples on Out while capping in-flight epochs to K.
type Replayer struct {
	sources []source.EventSource
	k       uint64
	out     chan Admitted
	errs    chan SourceError

	antichain *frontier.MutableAntichain
	seqCursor uint64

	mu       sync.Mutex
	buffers  map[int][]bufferedBatch
	released []bool
}

type bufferedBatch struct {
	batch source.Batch
}

// New constructs a Replayer over sources with admission bound k (k >= 1).
func New(sources []source.EventSource, k uint64) *Replayer {
	if k < 1 {
		k = 1
	}
	r := &Replayer{
		sources: sources,
		k:       k,
		out:     make(chan Admitted, 1024),
		// Buffered to len(sources): releaseSource makes each source's
		// contribution idempotent, so at most one SourceError is ever sent
		// per source and the send in activate can never block.
		errs:      make(chan SourceError, len(sources)),
		antichain: frontier.NewMutableAntichain(),
		buffers:   make(map[int][]bufferedBatch),
		released:  make([]bool, len(sources)),
	}
	// Install the initial capability at (0, 0) with multiplicity equal to
	// the number of attached sources (spec §4.1 Startup).
	r.antichain.Update(logformat.LogicalTime{}, int64(len(sources)))
	return r
}

// Out returns the channel of admitted tuples.
func (r *Replayer) Out() <-chan Admitted {
	return r.out
}

// Errs returns the channel of fatal per-source errors (spec §4.1 Failure
// semantics). Closed once Run returns.
func (r *Replayer) Errs() <-chan SourceError {
	return r.errs
}

// MinEpoch reports the current input frontier's minimum epoch, the epoch
// below which the remote-edge join may safely retire state (spec §4.5).
func (r *Replayer) MinEpoch() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.antichain.MinEpoch()
}

// Run drains sources and forwards admitted events until ctx is cancelled or
// every source has drained and no capability remains (spec §4.1 Shutdown).
func (r *Replayer) Run(ctx context.Context) {
	defer close(r.out)
	defer close(r.errs)

	ticker := time.NewTicker(source.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.dropAllCapabilities()
			return
		case <-ticker.C:
			r.activate(ctx)
			if r.allDrained() {
				return
			}
		}
	}
}

// activate is one scheduling round: drain sources, compute the admission
// window and forward whatever now qualifies (spec §4.1 Flow-control).
func (r *Replayer) activate(ctx context.Context) {
	// Step 1: drain each source fully into its buffer (non-blocking).
	for i, s := range r.sources {
		if s.Closed() {
			continue
		}
		for {
			b, ok, err := s.Next(ctx)
			if err != nil {
				// A decode/IO error is fatal for this source only (spec
				// §4.1 Failure semantics); surface it to the caller and
				// drop its remaining contribution to the antichain so the
				// frontier can still advance.
				r.errs <- SourceError{Source: s.Name(), Err: err}
				r.releaseSource(i)
				break
			}
			if !ok {
				break
			}
			r.mu.Lock()
			r.buffers[i] = append(r.buffers[i], bufferedBatch{batch: b})
			r.mu.Unlock()
		}
	}

	// Step 2: compute current minimum epoch f.
	f, ok := r.antichain.MinEpoch()
	if !ok {
		return
	}

	// Step 3: emit events within the admission window, updating the
	// antichain with emitted progress deltas.
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sources {
		buf := r.buffers[i]
		if len(buf) == 0 {
			continue
		}
		remaining := buf[:0]
		for _, bb := range buf {
			b := bb.batch
			if b.IsProgress {
				admissible := true
				for _, pd := range b.ProgressDeltas {
					if pd.Time.Epoch > f+r.k {
						admissible = false
						break
					}
				}
				if !admissible {
					remaining = append(remaining, bb)
					continue
				}
				for _, pd := range b.ProgressDeltas {
					r.antichain.Update(pd.Time, pd.Delta)
				}
				continue
			}

			if b.Time.Epoch < f || b.Time.Epoch > f+r.k-1 {
				remaining = append(remaining, bb)
				continue
			}
			for _, ev := range b.Events {
				r.seqCursor++
				tuple := Admitted{
					Epoch: b.Time.Epoch,
					SeqNo: r.seqCursor,
					Time:  b.Time,
					Event: ev,
				}
				if ev.HasLength {
					tuple.Length, tuple.HasLen = ev.Length, true
				}
				select {
				case r.out <- tuple:
				case <-ctx.Done():
					return
				}
			}
		}
		r.buffers[i] = remaining
	}
}

// releaseSource closes a source whose decode failed and releases its share
// of the initial capability at (0,0), so a fatal per-source error cannot
// wedge the frontier forever (spec §4.1 Failure semantics).
func (r *Replayer) releaseSource(i int) {
	r.sources[i].Close()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released[i] {
		return
	}
	r.released[i] = true
	r.antichain.Update(logformat.LogicalTime{}, -1)
}

func (r *Replayer) allDrained() bool {
	for _, s := range r.sources {
		if !s.Closed() {
			return false
		}
	}
	r.mu.Lock()
	empty := true
	for _, buf := range r.buffers {
		if len(buf) > 0 {
			empty = false
			break
		}
	}
	r.mu.Unlock()
	return empty && r.antichain.Empty()
}

// dropAllCapabilities releases every outstanding capability (spec §4.1
// Shutdown: "emit -1 for each element of the current frontier").
func (r *Replayer) dropAllCapabilities() {
	front := r.antichain.Frontier()
	sort.Slice(front, func(i, j int) bool { return front[i].Less(front[j]) })
	for _, t := range front {
		r.antichain.Update(t, -1)
	}
}
