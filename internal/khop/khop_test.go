package khop

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

func node(worker logformat.WorkerID, seq uint64) pag.Node {
	return pag.Node{WorkerID: worker, SeqNo: seq}
}

func TestReachableStopsAtK(t *testing.T) {
	a, b, c, d := node(0, 1), node(0, 2), node(0, 3), node(0, 4)
	g := NewGraph([]pag.Edge{
		{Source: a, Destination: b, Traverse: pag.Unbounded},
		{Source: b, Destination: c, Traverse: pag.Unbounded},
		{Source: c, Destination: d, Traverse: pag.Unbounded},
	})

	got := g.Reachable(a, 2)
	assert.Len(t, got, 3) // a, b, c - not d
}

func TestReachableRefusesBlockEdges(t *testing.T) {
	a, b, c := node(0, 1), node(0, 2), node(0, 3)
	g := NewGraph([]pag.Edge{
		{Source: a, Destination: b, Traverse: pag.Block},
		{Source: b, Destination: c, Traverse: pag.Unbounded},
	})

	got := g.Reachable(a, 5)
	assert.Len(t, got, 1) // only a: the Block edge can't be crossed
}
