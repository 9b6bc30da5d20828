// Package file implements an offline EventSource backed by a `<worker>.dump`
// file, grounded on the file-replay branch of make_replayers in
// original_source/timely-adapter/src/connect.rs.
package file

import (
	"context"
	"fmt"
	"os"
	"sync"

	"snailtrail.dev/st2/internal/source"
	"snailtrail.dev/st2/internal/source/wire"
	"snailtrail.dev/st2/internal/stError"
)

// Source reads framed Batches from a single on-disk dump file.
type Source struct {
	name string
	f    *os.File
	r    *wire.Reader

	mu     sync.Mutex
	closed bool
}

// Open opens the dump file at path.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stError.Wrap(stError.IoError, fmt.Sprintf("open %s", path), err)
	}
	return &Source{
		name: path,
		f:    f,
		r:    wire.NewReader(path, f),
	}, nil
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
	return s.f.Close()
}

// OpenDumpSet opens the file set `0.dump, 1.dump, ..., (sourcePeers-1).dump`
// in dir and returns the subset assigned to workerIndex under
// `i % workerPeers == workerIndex` (connect.rs's assignment rule).
func OpenDumpSet(dir string, sourcePeers, workerIndex, workerPeers int) ([]*Source, error) {
	var out []*Source
	for i := 0; i < sourcePeers; i++ {
		if i%workerPeers != workerIndex {
			continue
		}
		path := fmt.Sprintf("%s/%d.dump", dir, i)
		s, err := Open(path)
		if err != nil {
			for _, opened := range out {
				opened.Close()
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
