package remoteedge

import (
	"strconv"

	"github.com/serialx/hashring"

	"snailtrail.dev/st2/internal/logformat"
)

// ExchangePolicy decides which analysis worker owns a given record for the
// purposes of the remote-edge join (spec §4.5 Exchange policy). Records
// sharing a key under this policy are routed to the same worker so their
// matching halves land on the same Join instance.
type ExchangePolicy struct {
	ring        *hashring.HashRing
	nodeToIndex map[string]int
	byChannel   bool
}

// NewExchangePolicy builds a policy over numWorkers analysis workers, keyed
// on correlator_id alone, or on (correlator_id, channel_id) when byChannel
// is set (spec §4.5 notes the latter as an optional refinement to spread a
// single channel's traffic across more workers).
func NewExchangePolicy(numWorkers int, byChannel bool) *ExchangePolicy {
	nodes := make([]string, numWorkers)
	nodeToIndex := make(map[string]int, numWorkers)
	for i := 0; i < numWorkers; i++ {
		nodes[i] = strconv.Itoa(i)
		nodeToIndex[nodes[i]] = i
	}
	return &ExchangePolicy{
		ring:        hashring.New(nodes),
		nodeToIndex: nodeToIndex,
		byChannel:   byChannel,
	}
}

// Owner returns the index of the analysis worker that owns r under this
// exchange policy.
func (p *ExchangePolicy) Owner(r logformat.LogRecord) int {
	key := strconv.FormatUint(r.CorrelatorID, 10)
	if p.byChannel {
		key += ":" + strconv.FormatUint(r.ChannelID, 10)
	}
	node, ok := p.ring.GetNode(key)
	if !ok {
		return 0
	}
	return p.nodeToIndex[node]
}
