package remoteedge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/logformat"
)

func dataSend(local, remote logformat.WorkerID, epoch, correlator, channel uint64, ts time.Duration) logformat.LogRecord {
	return logformat.LogRecord{
		LocalWorker: local, Epoch: epoch, Timestamp: ts,
		ActivityType: logformat.DataMessage, EventType: logformat.Sent,
		RemoteWorker: remote, HasRemoteWorker: true,
		CorrelatorID: correlator, HasCorrelatorID: true,
		ChannelID: channel, HasChannelID: true,
	}
}

func dataRecv(local, remote logformat.WorkerID, epoch, correlator, channel uint64, ts time.Duration) logformat.LogRecord {
	return logformat.LogRecord{
		LocalWorker: local, Epoch: epoch, Timestamp: ts,
		ActivityType: logformat.DataMessage, EventType: logformat.Received,
		RemoteWorker: remote, HasRemoteWorker: true,
		CorrelatorID: correlator, HasCorrelatorID: true,
		ChannelID: channel, HasChannelID: true,
	}
}

func TestJoinMatchesSendThenReceive(t *testing.T) {
	j := New()
	_, err := j.FeedSend(dataSend(0, 1, 3, 42, 1, 0))
	require.NoError(t, err)

	edges, err := j.FeedReceive(dataRecv(1, 0, 3, 42, 1, time.Microsecond))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, logformat.WorkerID(0), edges[0].Source.WorkerID)
	assert.Equal(t, logformat.WorkerID(1), edges[0].Destination.WorkerID)
}

func TestJoinMatchesReceiveThenSend(t *testing.T) {
	j := New()
	_, err := j.FeedReceive(dataRecv(1, 0, 3, 42, 1, time.Microsecond))
	require.NoError(t, err)

	edges, err := j.FeedSend(dataSend(0, 1, 3, 42, 1, 0))
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestJoinDoesNotMatchDifferentEpoch(t *testing.T) {
	j := New()
	_, _ = j.FeedSend(dataSend(0, 1, 3, 42, 1, 0))
	edges, err := j.FeedReceive(dataRecv(1, 0, 4, 42, 1, time.Microsecond))
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestJoinDoesNotMatchDifferentCorrelator(t *testing.T) {
	j := New()
	_, _ = j.FeedSend(dataSend(0, 1, 3, 42, 1, 0))
	edges, err := j.FeedReceive(dataRecv(1, 0, 3, 43, 1, time.Microsecond))
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestJoinBroadcastControlMessageMatchesMultipleReceivers(t *testing.T) {
	j := New()
	send := logformat.LogRecord{
		LocalWorker: 0, Epoch: 1, Timestamp: 0,
		ActivityType: logformat.ControlMessage, EventType: logformat.Sent,
		HasRemoteWorker: false,
		CorrelatorID:    9, HasCorrelatorID: true,
		ChannelID: 2, HasChannelID: true,
	}
	_, err := j.FeedSend(send)
	require.NoError(t, err)

	for _, receiver := range []logformat.WorkerID{1, 2} {
		recv := logformat.LogRecord{
			LocalWorker: receiver, Epoch: 1, Timestamp: time.Microsecond,
			ActivityType: logformat.ControlMessage, EventType: logformat.Received,
			RemoteWorker: 0, HasRemoteWorker: true,
			CorrelatorID: 9, HasCorrelatorID: true,
			ChannelID:    2, HasChannelID: true,
		}
		edges, err := j.FeedReceive(recv)
		require.NoError(t, err)
		require.Len(t, edges, 1, "receiver %d should match the broadcast send", receiver)
	}
}

func TestJoinRejectsSameWorkerOnBothSides(t *testing.T) {
	j := New()
	_, _ = j.FeedSend(dataSend(0, 0, 1, 1, 1, 0))
	_, err := j.FeedReceive(dataRecv(0, 0, 1, 1, 1, time.Microsecond))
	assert.Error(t, err)
}

func TestEvictDropsOldEpochs(t *testing.T) {
	j := New()
	_, _ = j.FeedSend(dataSend(0, 1, 1, 42, 1, 0))
	j.Evict(1)

	edges, err := j.FeedReceive(dataRecv(1, 0, 1, 42, 1, time.Microsecond))
	require.NoError(t, err)
	assert.Empty(t, edges, "evicted send should no longer be joinable")
}

func TestEvictKeepsNewerEpochs(t *testing.T) {
	j := New()
	_, _ = j.FeedSend(dataSend(0, 1, 5, 42, 1, 0))
	j.Evict(1)

	edges, err := j.FeedReceive(dataRecv(1, 0, 5, 42, 1, time.Microsecond))
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}
