// Package assembler merges the local-edge and remote-edge streams into the
// final PAG edge stream (spec §4.6), grounded on the union step in
// original_source/st2/src/pag.rs's `pag` dataflow construction.
package assembler

import (
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

// Tuple is one PAG contribution: an edge stamped with the logical time at
// which it was produced, at multiplicity +1 (spec §4.6 Output).
type Tuple struct {
	Edge pag.Edge
	Time logformat.LogicalTime
}

// Assembler concatenates edges arriving from the local-edge builder and the
// remote-edge join into a single ordered stream. Edges are stamped with the
// destination node's logical time, matching the summary advance used
// throughout the pipeline (spec §9, Summary.Advance is the identity).
type Assembler struct {
	out chan Tuple
}

// New returns an Assembler with the given output buffer size.
func New(buffer int) *Assembler {
	return &Assembler{out: make(chan Tuple, buffer)}
}

// Out returns the merged edge stream.
func (a *Assembler) Out() <-chan Tuple {
	return a.out
}

// Close closes the output channel. Callers must stop sending before calling
// Close.
func (a *Assembler) Close() {
	close(a.out)
}

// FeedLocal admits one local edge into the merged stream.
func (a *Assembler) FeedLocal(e pag.Edge) {
	a.emit(e)
}

// FeedRemote admits one remote edge into the merged stream.
func (a *Assembler) FeedRemote(e pag.Edge) {
	a.emit(e)
}

func (a *Assembler) emit(e pag.Edge) {
	a.out <- Tuple{
		Edge: e,
		Time: logformat.LogicalTime{Epoch: e.Destination.Epoch, Duration: e.Destination.Timestamp},
	}
}
