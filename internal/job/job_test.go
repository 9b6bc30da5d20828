package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/assembler"
	"snailtrail.dev/st2/internal/config"
	"snailtrail.dev/st2/internal/invariants"
	"snailtrail.dev/st2/internal/logformat"
	"snailtrail.dev/st2/internal/sink"
	"snailtrail.dev/st2/internal/source"
)

// memSource replays a fixed slice of batches then reports closed, the same
// fake internal/pipeline's tests use.
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

// memSink records every tuple it's given.
type memSink struct {
	mu      sync.Mutex
	written []assembler.Tuple
	started bool
	stopped bool
	flushed bool
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *memSink) Write(ctx context.Context, t assembler.Tuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, t)
	return nil
}

func (s *memSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = true
	return nil
}

func (s *memSink) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

func testSources() [][]source.EventSource {
	srcA := &memSource{name: "w0", batches: []source.Batch{
		dataMessageBatch(1, 7, true, 1, 0),
		progressBatch(2),
	}}
	srcB := &memSource{name: "w1", batches: []source.Batch{
		dataMessageBatch(1, 7, false, 0, time.Microsecond),
		progressBatch(2),
	}}
	return [][]source.EventSource{{srcA}, {srcB}}
}

func testConfig() config.Config {
	return config.Config{
		JobID: "test-job",
		Source: config.SourceConfig{
			AdmissionWindow: 4,
			SourcePeers:     2,
			AnalysisWorkers: 2,
		},
		OutputBuffer: 16,
	}
}

// errSource fails its first Next call with a decode error, then drains
// clean - exercising the replayer's per-source error surfacing (spec §4.1
// Failure semantics) without wedging the test on a source that never closes.
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

func TestJobAbortsOnSourceErrorInFileMode(t *testing.T) {
	cfg := testConfig()
	cfg.Source.Mode = "file"
	sources := [][]source.EventSource{{&errSource{name: "0.dump"}}, {testSources()[1][0]}}

	j := New(cfg, sources, nil, nil, nil)
	require.NoError(t, j.Start())

	select {
	case <-j.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("job did not abort after a source error in file mode")
	}

	assert.Equal(t, StateFailed, j.State())
	assert.Contains(t, j.GetStatus().FailureReason, "0.dump")
}

func TestJobLogsSourceErrorAndContinuesInTCPMode(t *testing.T) {
	cfg := testConfig()
	cfg.Source.Mode = "tcp"
	snk := &memSink{}
	sources := [][]source.EventSource{{&errSource{name: "tcp:0"}}, {testSources()[1][0]}}

	j := New(cfg, sources, []sink.PagSink{snk}, nil, nil)
	require.NoError(t, j.Start())

	require.Eventually(t, func() bool { return j.State() == StateRunning }, time.Second, 10*time.Millisecond)
	require.NoError(t, j.Stop())
	assert.Equal(t, StateStopped, j.State())
}

func TestJobLifecycleRunsToCompletion(t *testing.T) {
	snk := &memSink{}
	j := New(testConfig(), testSources(), []sink.PagSink{snk}, nil, nil)

	require.Equal(t, StateCreated, j.State())
	require.NoError(t, j.Start())
	require.Equal(t, StateRunning, j.State())

	require.Eventually(t, func() bool { return snk.count() > 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, j.Stop())
	assert.Equal(t, StateStopped, j.State())
	assert.True(t, snk.started)
	assert.True(t, snk.flushed)
	assert.True(t, snk.stopped)
}

func TestJobStartTwiceFails(t *testing.T) {
	j := New(testConfig(), testSources(), nil, nil, nil)
	require.NoError(t, j.Start())
	defer j.Stop()

	err := j.Start()
	assert.Error(t, err)
}

func TestJobStopBeforeStartFails(t *testing.T) {
	j := New(testConfig(), testSources(), nil, nil, nil)
	err := j.Stop()
	assert.Error(t, err)
}

// failingSink fails to Start, exercising Start's rollback of already-started
// sinks.
type failingSink struct{ memSink }

func (s *failingSink) Start(ctx context.Context) error { return assert.AnError }

func TestJobStartRollsBackSinksOnFailure(t *testing.T) {
	good := &memSink{}
	bad := &failingSink{}
	j := New(testConfig(), testSources(), []sink.PagSink{good, bad}, nil, nil)

	err := j.Start()
	require.Error(t, err)
	assert.Equal(t, StateFailed, j.State())
	assert.True(t, good.started)
	assert.True(t, good.stopped, "the already-started sink must be rolled back")
}

func TestJobFlushesEpochsToInvariantsChecker(t *testing.T) {
	checker := invariants.New(invariants.Config{Peers: 2}, nil)
	j := New(testConfig(), testSources(), nil, checker, nil)

	require.NoError(t, j.Start())
	require.Eventually(t, func() bool { return j.State() == StateRunning }, time.Second, 10*time.Millisecond)
	require.NoError(t, j.Stop())
}
