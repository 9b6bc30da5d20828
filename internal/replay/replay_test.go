package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/source"
)

// errSource fails its first Next call with a decode error, then drains
// clean (spec §4.1 Failure semantics).
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

func TestReplayerSurfacesSourceErrorAndReleasesItsCapability(t *testing.T) {
	src := &errSource{name: "0.dump"}
	r := New([]source.EventSource{src}, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case se, ok := <-r.Errs():
		require.True(t, ok)
		assert.Equal(t, "0.dump", se.Source)
		assert.ErrorIs(t, se.Err, assert.AnError)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a SourceError on Errs()")
	}

	for range r.Out() {
	}
	<-done

	// The replayer's only source failed, so its capability was released and
	// the frontier must drain rather than wedge forever.
	_, ok := r.MinEpoch()
	assert.False(t, ok)
}

func TestReplayerErrsClosesWhenRunReturns(t *testing.T) {
	src := &memSource{name: "w0"}
	r := New([]source.EventSource{src}, 4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	for range r.Out() {
	}
	<-done

	_, ok := <-r.Errs()
	assert.False(t, ok, "Errs() must be closed once Run returns")
}

// memSource drains immediately with no events, used to exercise the clean
// shutdown path alongside errSource's failure path.
type memSource struct {
	name   string
	closed bool
}

func (m *memSource) Name() string { return m.name }

func (m *memSource) Next(ctx context.Context) (source.Batch, bool, error) {
	m.closed = true
	return source.Batch{}, false, nil
}

func (m *memSource) Closed() bool { return m.closed }
func (m *memSource) Close() error { m.closed = true; return nil }
