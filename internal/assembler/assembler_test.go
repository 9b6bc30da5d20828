package assembler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

func TestFeedLocalAndRemoteShareOutput(t *testing.T) {
	a := New(4)

	local := pag.Edge{
		Source:      pag.Node{WorkerID: 0, Epoch: 1, Timestamp: 0},
		Destination: pag.Node{WorkerID: 0, Epoch: 1, Timestamp: time.Microsecond},
		EdgeType:    logformat.Busy,
	}
	remote := pag.Edge{
		Source:      pag.Node{WorkerID: 0, Epoch: 1, Timestamp: 0},
		Destination: pag.Node{WorkerID: 1, Epoch: 1, Timestamp: 2 * time.Microsecond},
		EdgeType:    logformat.DataMessage,
	}

	a.FeedLocal(local)
	a.FeedRemote(remote)
	a.Close()

	var got []Tuple
	for tup := range a.Out() {
		got = append(got, tup)
	}
	assert.Len(t, got, 2)
	assert.Equal(t, logformat.Busy, got[0].Edge.EdgeType)
	assert.Equal(t, logformat.DataMessage, got[1].Edge.EdgeType)
}

func TestTupleTimeMatchesDestination(t *testing.T) {
	a := New(1)
	e := pag.Edge{
		Destination: pag.Node{Epoch: 7, Timestamp: 9 * time.Microsecond},
	}
	a.FeedLocal(e)
	a.Close()

	tup := <-a.Out()
	assert.Equal(t, logformat.LogicalTime{Epoch: 7, Duration: 9 * time.Microsecond}, tup.Time)
}
