package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{Topic: "pag"})
	require.Error(t, err)
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(Config{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)
}

func TestNewRejectsUnknownCompression(t *testing.T) {
	_, err := New(Config{Brokers: []string{"localhost:9092"}, Topic: "pag", Compression: "zstd-bogus"})
	require.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	s, err := New(Config{Brokers: []string{"localhost:9092"}, Topic: "pag"})
	require.NoError(t, err)
	sk := s.(*Sink)
	assert.Equal(t, defaultBatchSize, sk.cfg.BatchSize)
	assert.Equal(t, defaultCompression, sk.cfg.Compression)
	assert.Equal(t, defaultMaxAttempts, sk.cfg.MaxAttempts)
}
