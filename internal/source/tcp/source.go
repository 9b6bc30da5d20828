// Package tcp implements an online EventSource backed by a TCP connection
// from an instrumented computation, grounded on open_sockets/make_replayers
// in original_source/timely-adapter/src/connect.rs: the analyzer listens and
// the instrumented computation's workers dial in, one connection per source
// worker.
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"snailtrail.dev/st2/internal/source"
	"snailtrail.dev/st2/internal/source/wire"
	"snailtrail.dev/st2/internal/stError"
)

// Source reads framed Batches from a single accepted TCP connection.
type Source struct {
	name string
	conn net.Conn
	r    *wire.Reader

	mu     sync.Mutex
	closed bool
}

// Listener accepts sourcePeers connections on addr and returns one Source
// per connection, in acceptance order.
type Listener struct {
	ln net.Listener
}

// Listen binds addr (e.g. "0.0.0.0:8000") for incoming source connections.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, stError.Wrap(stError.IoError, fmt.Sprintf("listen %s", addr), err)
	}
	return &Listener{ln: ln}, nil
}

// AcceptAll blocks until sourcePeers connections have been accepted.
func (l *Listener) AcceptAll(sourcePeers int) ([]*Source, error) {
	out := make([]*Source, 0, sourcePeers)
	for i := 0; i < sourcePeers; i++ {
		conn, err := l.ln.Accept()
		if err != nil {
			return nil, stError.Wrap(stError.IoError, "accept source connection", err)
		}
		name := fmt.Sprintf("tcp:%s", conn.RemoteAddr())
		out = append(out, &Source{
			name: name,
			conn: conn,
			r:    wire.NewReader(name, conn),
		})
	}
	return out, nil
}

// Close stops accepting further connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func (s *Source) Name() string { return s.name }

func (s *Source) Next(_ context.Context) (source.Batch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return source.Batch{}, false, nil
	}
	b, ok, err := s.r.ReadBatch()
	if err != nil {
		return source.Batch{}, false, err
	}
	if !ok {
		s.closed = true
	}
	return b, ok, nil
}

func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.conn.Close()
}

// AssignedPeers returns which source indices belong to workerIndex, the same
// `i % workerPeers == workerIndex` rule used by file-backed replay.
func AssignedPeers(sourcePeers, workerIndex, workerPeers int) []int {
	var out []int
	for i := 0; i < sourcePeers; i++ {
		if i%workerPeers == workerIndex {
			out = append(out, i)
		}
	}
	return out
}
