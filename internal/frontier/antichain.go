// Package frontier tracks the set of smallest logical times below which no
// further input can arrive - the antichain used by the throttled replayer to
// bound in-flight epochs (spec §4.1) and by the remote-edge join to retire
// state once the frontier has advanced past an epoch (spec §4.5).
//
// Grounded on the capability-counting scheme in the original replayer
// (replay_throttled.rs): each logical time in the frontier carries a
// reference count: the number of outstanding capabilities at that time.
// A count dropping to zero removes the time from the frontier and may
// expose a new, larger minimum.
package frontier

import (
	"sort"

	"snailtrail.dev/st2/internal/logformat"
)

// MutableAntichain tracks reference counts for a set of logical times and
// exposes the current minimal frontier.
type MutableAntichain struct {
	counts map[logformat.LogicalTime]int64
}

// NewMutableAntichain returns an empty antichain.
func NewMutableAntichain() *MutableAntichain {
	return &MutableAntichain{counts: make(map[logformat.LogicalTime]int64)}
}

// Update applies a capability delta at t. A positive delta installs or
// strengthens a capability; a negative delta (typically -1) releases one.
// Entries whose count reaches zero are removed.
func (a *MutableAntichain) Update(t logformat.LogicalTime, delta int64) {
	a.counts[t] += delta
	if a.counts[t] == 0 {
		delete(a.counts, t)
	}
}

// Empty reports whether the antichain holds no capabilities - all attached
// sources have drained.
func (a *MutableAntichain) Empty() bool {
	return len(a.counts) == 0
}

// Frontier returns the current minimal elements of the antichain, i.e. the
// times that are not dominated by any other time currently held. For the
// (epoch, duration) lexicographic time used throughout this pipeline the
// order is total, so this is the single smallest time held (or empty when
// nothing is held).
func (a *MutableAntichain) Frontier() []logformat.LogicalTime {
	out := make([]logformat.LogicalTime, 0, len(a.counts))
	for t := range a.counts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return minimalElements(out)
}

// minimalElements drops any time that is dominated (LessEqual) by an earlier
// time in a sorted-ascending slice; what remains is an antichain.
func minimalElements(sorted []logformat.LogicalTime) []logformat.LogicalTime {
	if len(sorted) == 0 {
		return sorted
	}
	out := []logformat.LogicalTime{sorted[0]}
	for _, t := range sorted[1:] {
		dominated := false
		for _, m := range out {
			if m.LessEqual(t) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, t)
		}
	}
	return out
}

// MinEpoch returns the smallest epoch currently represented in the frontier
// and whether the antichain is non-empty. This is the `f` used by the
// throttled replayer's admission window (spec §4.1).
func (a *MutableAntichain) MinEpoch() (uint64, bool) {
	if len(a.counts) == 0 {
		return 0, false
	}
	front := a.Frontier()
	min := front[0].Epoch
	for _, t := range front[1:] {
		if t.Epoch < min {
			min = t.Epoch
		}
	}
	return min, true
}
