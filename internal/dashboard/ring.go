// Package dashboard implements the WebSocket PAG viewer server (spec §6): a
// bounded ring buffer of assembled edges keyed by epoch, served over
// gorilla/websocket connections that request one epoch's slice at a time.
package dashboard

import (
	"sync"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/pag"
)

// Ring buffers the most recently assembled PAG edges, grouped by epoch, up
// to capacity epochs. Older epochs are evicted oldest-first once capacity is
// exceeded (spec §7's "last-observed frontier" promise on disconnection: the
// frontier is simply the newest epoch still held here).
type Ring struct {
	mu       sync.Mutex
	capacity int
	order    []uint64
	byEpoch  map[uint64][]pag.Edge
	frontier uint64
	hasAny   bool
}

// NewRing builds a Ring retaining at most capacity epochs.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{capacity: capacity, byEpoch: make(map[uint64][]pag.Edge)}
}

// Feed appends one assembled tuple to its epoch's bucket.
func (r *Ring) Feed(t assembler.Tuple) {
	epoch := t.Edge.Destination.Epoch
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEpoch[epoch]; !ok {
		r.order = append(r.order, epoch)
		for len(r.order) > r.capacity {
			delete(r.byEpoch, r.order[0])
			r.order = r.order[1:]
		}
	}
	r.byEpoch[epoch] = append(r.byEpoch[epoch], t.Edge)

	if !r.hasAny || epoch > r.frontier {
		r.frontier = epoch
		r.hasAny = true
	}
}

// Epoch returns a copy of the buffered edges for epoch (nil if evicted or
// never observed).
func (r *Ring) Epoch(epoch uint64) []pag.Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	edges := r.byEpoch[epoch]
	out := make([]pag.Edge, len(edges))
	copy(out, edges)
	return out
}

// Frontier returns the newest epoch observed and whether any epoch has been
// fed yet.
func (r *Ring) Frontier() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frontier, r.hasAny
}

// All returns a copy of every edge still buffered, across every retained
// epoch, oldest epoch first.
func (r *Ring) All() []pag.Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pag.Edge
	for _, epoch := range r.order {
		out = append(out, r.byEpoch[epoch]...)
	}
	return out
}
