package localedge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/pag"
)

func rec(worker logformat.WorkerID, epoch uint64, ts time.Duration, at logformat.ActivityType, et logformat.EventType) logformat.LogRecord {
	return logformat.LogRecord{
		LocalWorker:  worker,
		Epoch:        epoch,
		Timestamp:    ts,
		ActivityType: at,
		EventType:    et,
	}
}

func TestFeedFirstRecordProducesNoEdge(t *testing.T) {
	b := New()
	edge, ok, err := b.Feed(rec(0, 0, 0, logformat.Scheduling, logformat.Start))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, edge)
}

func TestScheduleStartEndWithLengthIsProcessing(t *testing.T) {
	b := New()
	_, _, err := b.Feed(rec(0, 1, 0, logformat.Scheduling, logformat.Start))
	require.NoError(t, err)

	r := rec(0, 1, 5*time.Microsecond, logformat.Scheduling, logformat.End)
	r.HasLength, r.Length = true, 128
	edge, ok, err := b.Feed(r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, logformat.Processing, edge.EdgeType)
	assert.Equal(t, uint64(128), edge.Length)
	assert.True(t, edge.HasLength)
}

func TestScheduleStartEndWithoutLengthIsSpinning(t *testing.T) {
	b := New()
	_, _, _ = b.Feed(rec(0, 1, 0, logformat.Scheduling, logformat.Start))
	edge, ok, err := b.Feed(rec(0, 1, time.Microsecond, logformat.Scheduling, logformat.End))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, logformat.Spinning, edge.EdgeType)
}

func TestScheduleEndStartBelowThresholdIsBusy(t *testing.T) {
	b := New()
	_, _, _ = b.Feed(rec(0, 1, 0, logformat.Scheduling, logformat.End))
	edge, ok, err := b.Feed(rec(0, 1, threshold-time.Nanosecond, logformat.Scheduling, logformat.Start))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, logformat.Busy, edge.EdgeType)
	assert.Equal(t, pag.Unbounded, edge.Traverse)
}

func TestScheduleEndStartAboveThresholdIsWaitingAndBlocking(t *testing.T) {
	b := New()
	_, _, _ = b.Feed(rec(0, 1, 0, logformat.Scheduling, logformat.End))
	edge, ok, err := b.Feed(rec(0, 1, threshold+time.Nanosecond, logformat.Scheduling, logformat.Start))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, logformat.Waiting, edge.EdgeType)
	assert.Equal(t, pag.Block, edge.Traverse)
}

func TestDifferentEpochProducesNoEdge(t *testing.T) {
	b := New()
	_, _, _ = b.Feed(rec(0, 1, 0, logformat.Scheduling, logformat.Start))
	edge, ok, err := b.Feed(rec(0, 2, 0, logformat.Scheduling, logformat.End))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, edge)
}

func TestOutOfOrderRecordIsAssertionViolation(t *testing.T) {
	b := New()
	_, _, _ = b.Feed(rec(0, 1, 10*time.Microsecond, logformat.Scheduling, logformat.Start))
	_, _, err := b.Feed(rec(0, 1, 5*time.Microsecond, logformat.Scheduling, logformat.End))
	require.Error(t, err)
}

func TestIllFormedTransitionIsAssertionViolation(t *testing.T) {
	b := New()
	_, _, _ = b.Feed(rec(0, 1, 0, logformat.Processing, logformat.Start))
	_, _, err := b.Feed(rec(0, 1, time.Microsecond, logformat.Spinning, logformat.End))
	require.Error(t, err)
}

func TestOperatorIDInheritedAcrossSchedule(t *testing.T) {
	b := New()
	p := rec(0, 1, 0, logformat.Scheduling, logformat.Start)
	p.OperatorID, p.HasOperatorID = 7, true
	_, _, _ = b.Feed(p)

	r := rec(0, 1, time.Microsecond, logformat.Scheduling, logformat.End)
	edge, ok, err := b.Feed(r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, edge.HasOperatorID)
	assert.Equal(t, logformat.OperatorID(7), edge.OperatorID)
}

func TestWorkersTrackedIndependently(t *testing.T) {
	b := New()
	_, ok, _ := b.Feed(rec(0, 1, 0, logformat.Scheduling, logformat.Start))
	assert.False(t, ok)
	_, ok, _ = b.Feed(rec(1, 1, 0, logformat.Scheduling, logformat.Start))
	assert.False(t, ok, "worker 1's first record should not pair with worker 0's state")
}
