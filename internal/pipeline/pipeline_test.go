package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/replay"
	"snailtrail.dev/st2/internal/source"
)

// memSource replays a fixed slice of batches then reports closed.
type memSource struct {
	name    string
	batches []source.Batch
	pos     int
	closed  bool
}

func (m *memSource) Name() string { return m.name }

func (m *memSource) Next(ctx context.Context) (source.Batch, bool, error) {
	if m.pos >= len(m.batches) {
		m.closed = true
		return source.Batch{}, false, nil
	}
	b := m.batches[m.pos]
	m.pos++
	return b, true, nil
}

func (m *memSource) Closed() bool { return m.closed }
func (m *memSource) Close() error { m.closed = true; return nil }

func dataMessageBatch(epoch uint64, seq uint64, isSend bool, peer logformat.WorkerID, ts time.Duration) source.Batch {
	return source.Batch{
		Time: logformat.LogicalTime{Epoch: epoch, Duration: ts},
		Events: []logformat.RawEvent{{
			Kind:      logformat.KindMessages,
			ChannelID: 1,
			SeqNo:     seq,
			IsSend:    isSend,
			Source:    peer,
			Target:    peer,
			HasTarget: true,
		}},
	}
}

func progressBatch(epoch uint64) source.Batch {
	return source.Batch{
		IsProgress: true,
		ProgressDeltas: []logformat.ProgressDelta{
			{Time: logformat.LogicalTime{Epoch: epoch}, Delta: 1},
		},
	}
}

func TestGroupProducesRemoteEdgeAcrossTwoWorkers(t *testing.T) {
	// Worker 0 sends a data message to worker 1; worker 1 receives it.
	// With correlator_id == seq_no == 7 for both halves, the exchange
	// policy routes both halves to the same join regardless of owner.
	srcA := &memSource{name: "w0", batches: []source.Batch{
		dataMessageBatch(1, 7, true, 1, 0),
		progressBatch(2),
	}}
	srcB := &memSource{name: "w1", batches: []source.Batch{
		dataMessageBatch(1, 7, false, 0, time.Microsecond),
		progressBatch(2),
	}}

	g := NewGroup("test-job", [][]source.EventSource{{srcA}, {srcB}}, 4, false, 16, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	var gotRemote bool
	for tup := range g.Assembled() {
		if tup.Edge.Source.WorkerID != tup.Edge.Destination.WorkerID {
			gotRemote = true
		}
	}
	<-done

	assert.True(t, gotRemote, "expected at least one cross-worker edge")
}

// errSource fails its first Next call then drains clean, exercising the
// replayer's per-source error surfacing (spec §4.1 Failure semantics).
type errSource struct {
	name   string
	failed bool
	closed bool
}

func (e *errSource) Name() string { return e.name }

func (e *errSource) Next(ctx context.Context) (source.Batch, bool, error) {
	if !e.failed {
		e.failed = true
		return source.Batch{}, false, assert.AnError
	}
	e.closed = true
	return source.Batch{}, false, nil
}

func (e *errSource) Closed() bool { return e.closed }
func (e *errSource) Close() error { e.closed = true; return nil }

func TestGroupSurfacesSourceErrorsWithoutStoppingOtherWorkers(t *testing.T) {
	bad := &errSource{name: "w0"}
	good := &memSource{name: "w1", batches: []source.Batch{progressBatch(1)}}
	g := NewGroup("test-job", [][]source.EventSource{{bad}, {good}}, 4, false, 4, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	var got replay.SourceError
	select {
	case got = <-g.SourceErrors():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a source error on SourceErrors()")
	}
	assert.Equal(t, "w0", got.Source)
	assert.ErrorIs(t, got.Err, assert.AnError)

	for range g.Assembled() {
	}
	<-done
}

func TestGroupShutsDownWithNoInput(t *testing.T) {
	srcA := &memSource{name: "w0"}
	g := NewGroup("empty-job", [][]source.EventSource{{srcA}}, 4, false, 4, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	for range g.Assembled() {
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("group did not shut down")
	}
	require.True(t, true)
}
