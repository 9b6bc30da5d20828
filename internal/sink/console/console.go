// Package console implements a debug PagSink that prints assembled PAG
// edges to stdout, adapted from plugins/reporter/console/console.go.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"snailtrail.dev/st2/internal/assembler"
	stlog "snailtrail.dev/st2/internal/log"
	"snailtrail.dev/st2/internal/sink"
)

// Format selects the console sink's output rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Sink prints PAG edges to stdout for debugging.
type Sink struct {
	format  Format
	log     *logrus.Logger
	written atomic.Uint64
}

// New returns a console Sink. An empty format defaults to text.
func New(format Format) sink.PagSink {
	if format == "" {
		format = FormatText
	}
	return &Sink{format: format, log: stlog.Default}
}

func (s *Sink) Name() string { return "console" }

func (s *Sink) Start(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{"format": s.format}).Info("console sink started")
	return nil
}

func (s *Sink) Write(ctx context.Context, t assembler.Tuple) error {
	s.written.Add(1)
	if s.format == FormatJSON {
		return s.writeJSON(t)
	}
	return s.writeText(t)
}

func (s *Sink) writeJSON(t assembler.Tuple) error {
	out := map[string]any{
		"epoch":     t.Edge.Source.Epoch,
		"src":       t.Edge.Source,
		"dst":       t.Edge.Destination,
		"edge_type": t.Edge.EdgeType.String(),
		"duration":  t.Edge.Duration().String(),
	}
	if t.Edge.HasOperatorID {
		out["operator_id"] = t.Edge.OperatorID
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func (s *Sink) writeText(t assembler.Tuple) error {
	fmt.Printf("[epoch %d] worker %d -> worker %d %s (%s)",
		t.Edge.Source.Epoch,
		t.Edge.Source.WorkerID, t.Edge.Destination.WorkerID,
		t.Edge.EdgeType, t.Edge.Duration())
	if t.Edge.HasOperatorID {
		fmt.Printf(" op=%d", t.Edge.OperatorID)
	}
	fmt.Println()
	return nil
}

func (s *Sink) Flush(ctx context.Context) error { return nil }

func (s *Sink) Stop(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{"total_written": s.written.Load()}).Info("console sink stopped")
	return nil
}
