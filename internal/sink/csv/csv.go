// Package csv implements a PagSink that aggregates PAG edges into the
// per-epoch activity CSV report (internal/metrics.CSVWriter), writing it to
// disk on Flush and on Stop.
package csv

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"snailtrail.dev/st2/internal/assembler"
	stlog "snailtrail.dev/st2/internal/log"
	"snailtrail.dev/st2/internal/metrics"
	"snailtrail.dev/st2/internal/sink"
)

// Sink accumulates PAG edges and rewrites its CSV report file on every Flush
// and on Stop.
type Sink struct {
	path string
	log  *logrus.Logger

	mu     sync.Mutex
	writer *metrics.CSVWriter
}

// New returns a Sink that writes its aggregated report to path.
func New(path string) sink.PagSink {
	return &Sink{path: path, log: stlog.Default, writer: metrics.NewCSVWriter()}
}

func (s *Sink) Name() string { return "csv" }

func (s *Sink) Start(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{"path": s.path}).Info("csv sink started")
	return nil
}

func (s *Sink) Write(ctx context.Context, t assembler.Tuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Feed(t)
	return nil
}

func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create csv report %s: %w", s.path, err)
	}
	defer f.Close()

	return s.writer.WriteTo(f)
}

func (s *Sink) Stop(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		s.log.WithFields(logrus.Fields{"path": s.path, "error": err}).Error("csv sink final flush failed")
		return err
	}
	s.log.WithFields(logrus.Fields{"path": s.path}).Info("csv sink stopped")
	return nil
}
