package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/stError"
)

func validConfig() Config {
	return Config{
		JobID: "job-1",
		Source: SourceConfig{
			Mode:            "file",
			AdmissionWindow: 1,
			SourcePeers:     1,
			AnalysisWorkers: 1,
			File:            FileSourceConfig{Dir: "/tmp/traces"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresJobID(t *testing.T) {
	cfg := validConfig()
	cfg.JobID = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, stError.Is(err, stError.ConfigError))
}

func TestValidateRejectsZeroAdmissionWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Source.AdmissionWindow = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsMoreWorkersThanSourcePeers(t *testing.T) {
	cfg := validConfig()
	cfg.Source.AnalysisWorkers = 2
	cfg.Source.SourcePeers = 1
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresFileDirInFileMode(t *testing.T) {
	cfg := validConfig()
	cfg.Source.File.Dir = ""
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresTCPInterfaceInTCPMode(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Mode = "tcp"
	require.Error(t, cfg.Validate())

	cfg.Source.TCP.Interface = "eth0"
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresKafkaBrokersAndTopicInKafkaMode(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Mode = "kafka"
	require.Error(t, cfg.Validate())

	cfg.Source.Kafka.Brokers = []string{"localhost:9092"}
	require.Error(t, cfg.Validate())

	cfg.Source.Kafka.Topic = "traces"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Mode = "carrier-pigeon"
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresKafkaSinkBrokersWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Sinks.Kafka.Enabled = true
	require.Error(t, cfg.Validate())

	cfg.Sinks.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Sinks.Kafka.Topic = "pag"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	require.Error(t, cfg.Validate())
}

func TestLoadWithoutFileRequiresJobID(t *testing.T) {
	cfg, err := Load("")
	require.Error(t, err, "job_id has no default and must be supplied")

	_ = cfg
}
