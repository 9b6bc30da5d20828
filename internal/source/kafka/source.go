// Package kafka implements an EventSource backed by a Kafka topic partition,
// adapted from the configuration and lifecycle shape of the teacher's
// plugins/reporter/kafka/kafka.go (there applied to a Writer; here to a
// Reader, one partition per source worker).
package kafka

import (
	"bytes"
	"context"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"snailtrail.dev/st2/internal/source"
	"snailtrail.dev/st2/internal/source/wire"
	"snailtrail.dev/st2/internal/stError"
)

// Config configures a Kafka-backed source.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Source reads framed Batches from one Kafka partition's message stream.
type Source struct {
	name   string
	reader *kafkago.Reader

	mu     sync.Mutex
	closed bool
}

// Open connects a reader for the given partition of cfg.Topic.
func Open(cfg Config, partition int) (*Source, error) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		Partition: partition,
		GroupID:   "", // explicit partition assignment, not consumer-group balanced
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	return &Source{
		name:   cfg.Topic,
		reader: r,
	}, nil
}

func (s *Source) Name() string { return s.name }

func (s *Source) Next(ctx context.Context) (source.Batch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return source.Batch{}, false, nil
	}

	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return source.Batch{}, false, nil
		}
		return source.Batch{}, false, stError.Wrap(stError.IoError, "read "+s.name, err)
	}

	r := wire.NewReader(s.name, bytes.NewReader(msg.Value))
	b, ok, err := r.ReadBatch()
	if err != nil {
		return source.Batch{}, false, err
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
	return s.reader.Close()
}
