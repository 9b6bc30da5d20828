// Package peel strips container-operator Schedule events so only leaf
// operators appear on worker timelines (spec §4.3), grounded on peel_ops in
// original_source/st2-timely/src/lib.rs.
//
// The peeler needs to see Operates events directly, but the log-record
// builder (spec §4.2) drops them - they carry no LogRecord of their own.
// This implementation therefore runs the peeler on the raw admitted stream,
// ahead of the builder: it consumes replay.Admitted tuples, maintains the
// outer_addrs/ids_to_addrs state from Operates events (which it never
// forwards - Operates events are pure bookkeeping for peeling, as spec §4.2
// independently confirms by dropping them), and forwards every other event
// except Schedule events belonging to a container operator. This produces
// exactly the same surviving Schedule events the spec's sequential
// description implies; only the wiring order relative to the builder
// differs from the component list in spec §2, not the observable result.
package peel

import (
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/replay"
)

type addrKey string

func addrOf(addr []uint64) addrKey {
	// simple stable encoding; addresses are short (dataflow nesting depth).
	b := make([]byte, 0, len(addr)*9)
	for _, a := range addr {
		for a > 0 {
			b = append(b, byte(a)|0x80)
			a >>= 7
		}
		b = append(b, 0)
	}
	return addrKey(b)
}

// Peeler tracks the operator address tree and filters Schedule events.
type Peeler struct {
	outerAddrs map[addrKey]struct{}
	idsToAddrs map[logformat.OperatorID][]uint64
}

// New returns an empty Peeler. All Operates events must arrive before any
// Schedule event in the stream it's fed (enforced upstream by the
// instrumentation shim collapsing dataflow setup into epoch (0,1) - spec §6).
func New() *Peeler {
	return &Peeler{
		outerAddrs: make(map[addrKey]struct{}),
		idsToAddrs: make(map[logformat.OperatorID][]uint64),
	}
}

// Feed processes one admitted tuple. It returns (tuple, true) if the tuple
// should be forwarded to the builder, or (zero, false) if it was consumed
// (an Operates event, or a Schedule event belonging to a container operator).
func (p *Peeler) Feed(a replay.Admitted) (replay.Admitted, bool) {
	switch a.Event.Kind {
	case logformat.KindOperates:
		id := a.Event.OperatorID
		addr := a.Event.Address
		p.idsToAddrs[id] = addr
		if len(addr) > 0 {
			parent := addr[:len(addr)-1]
			p.outerAddrs[addrOf(parent)] = struct{}{}
		}
		return replay.Admitted{}, false

	case logformat.KindSchedule:
		addr, known := p.idsToAddrs[a.Event.OperatorID]
		if known {
			if _, isContainer := p.outerAddrs[addrOf(addr)]; isContainer {
				return replay.Admitted{}, false
			}
		}
		return a, true

	default:
		return a, true
	}
}
