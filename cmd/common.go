package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"snailtrail.dev/st2/internal/config"
	"snailtrail.dev/st2/internal/invariants"
	stlog "snailtrail.dev/st2/internal/log"
	"snailtrail.dev/st2/internal/metrics"
	"snailtrail.dev/st2/internal/sink"
	"snailtrail.dev/st2/internal/sink/console"
	"snailtrail.dev/st2/internal/sink/csv"
	kafkasink "snailtrail.dev/st2/internal/sink/kafka"
	"snailtrail.dev/st2/internal/source"
	"snailtrail.dev/st2/internal/source/file"
	kafkasource "snailtrail.dev/st2/internal/source/kafka"
	"snailtrail.dev/st2/internal/source/tcp"
	"snailtrail.dev/st2/internal/stError"
)

// loadConfig loads config.Config from cliFlags.configPath and layers the
// persistent flags on top, the same override-order the teacher's cmd/start.go
// applies CLI flags on top of its loaded LoggerConfig.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cliFlags.configPath)
	if err != nil {
		return nil, err
	}

	if cliFlags.fromFile != "" {
		cfg.Source.Mode = "file"
		cfg.Source.File.Dir = cliFlags.fromFile
	}
	if cliFlags.iface != "" {
		cfg.Source.TCP.Interface = cliFlags.iface
	}
	if cliFlags.port != 0 {
		cfg.Source.TCP.Port = cliFlags.port
	}
	if cliFlags.sourcePeers != 0 {
		cfg.Source.SourcePeers = cliFlags.sourcePeers
	}
	if cliFlags.snailtrailWorkers != 0 {
		cfg.Source.AnalysisWorkers = cliFlags.snailtrailWorkers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildLogger builds the shared logrus.Logger from cfg.Log.
func buildLogger(cfg *config.Config) (*logrus.Logger, error) {
	return stlog.New(cfg.Log)
}

// buildSources opens every EventSource this process owns, grouped by analysis
// worker: buildSources(cfg)[i] is the slice of source peers assigned to
// analysis worker i under `peer % AnalysisWorkers == i` (connect.rs's
// assignment rule).
func buildSources(cfg *config.Config) ([][]source.EventSource, error) {
	workers := cfg.Source.AnalysisWorkers
	out := make([][]source.EventSource, workers)

	switch cfg.Source.Mode {
	case "file":
		for i := 0; i < workers; i++ {
			opened, err := file.OpenDumpSet(cfg.Source.File.Dir, cfg.Source.SourcePeers, i, workers)
			if err != nil {
				return nil, err
			}
			out[i] = make([]source.EventSource, len(opened))
			for j, s := range opened {
				out[i][j] = s
			}
		}

	case "tcp":
		addr := fmt.Sprintf("%s:%d", cfg.Source.TCP.Interface, cfg.Source.TCP.Port)
		ln, err := tcp.Listen(addr)
		if err != nil {
			return nil, err
		}
		accepted, err := ln.AcceptAll(cfg.Source.SourcePeers)
		if err != nil {
			return nil, err
		}
		for i := 0; i < workers; i++ {
			for _, peer := range tcp.AssignedPeers(cfg.Source.SourcePeers, i, workers) {
				out[i] = append(out[i], accepted[peer])
			}
		}

	case "kafka":
		for i := 0; i < workers; i++ {
			for _, peer := range tcp.AssignedPeers(cfg.Source.SourcePeers, i, workers) {
				s, err := kafkasource.Open(kafkasource.Config{
					Brokers: cfg.Source.Kafka.Brokers,
					Topic:   cfg.Source.Kafka.Topic,
					GroupID: cfg.Source.Kafka.GroupID,
				}, peer)
				if err != nil {
					return nil, err
				}
				out[i] = append(out[i], s)
			}
		}

	default:
		return nil, stError.New(stError.ConfigError, fmt.Sprintf("source.mode must be file/tcp/kafka, got %q", cfg.Source.Mode))
	}

	return out, nil
}

// buildSinks constructs every enabled sink.PagSink from cfg.Sinks.
func buildSinks(cfg *config.Config) ([]sink.PagSink, error) {
	var sinks []sink.PagSink

	if cfg.Sinks.Console.Enabled {
		sinks = append(sinks, console.New(console.Format(cfg.Sinks.Console.Format)))
	}
	if cfg.Sinks.CSV.Enabled {
		sinks = append(sinks, csv.New(cfg.Sinks.CSV.Path))
	}
	if cfg.Sinks.Kafka.Enabled {
		batchTimeout, err := parseDurationOr(cfg.Sinks.Kafka.BatchTimeout, 0)
		if err != nil {
			return nil, stError.Wrap(stError.ConfigError, "sinks.kafka.batch_timeout", err)
		}
		s, err := kafkasink.New(kafkasink.Config{
			Brokers:      cfg.Sinks.Kafka.Brokers,
			Topic:        cfg.Sinks.Kafka.Topic,
			BatchSize:    cfg.Sinks.Kafka.BatchSize,
			BatchTimeout: batchTimeout,
			Compression:  cfg.Sinks.Kafka.Compression,
			MaxAttempts:  cfg.Sinks.Kafka.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

// buildInvariantsChecker builds an invariants.Checker when cfg.Invariants is
// enabled, nil otherwise.
func buildInvariantsChecker(cfg *config.Config, log *logrus.Logger) (*invariants.Checker, error) {
	if !cfg.Invariants.Enabled {
		return nil, nil
	}

	maxProgress, err := parseDurationPtr(cfg.Invariants.MaxProgress)
	if err != nil {
		return nil, stError.Wrap(stError.ConfigError, "invariants.max_progress", err)
	}
	maxEpoch, err := parseDurationPtr(cfg.Invariants.MaxEpoch)
	if err != nil {
		return nil, stError.Wrap(stError.ConfigError, "invariants.max_epoch", err)
	}
	maxOperator, err := parseDurationPtr(cfg.Invariants.MaxOperator)
	if err != nil {
		return nil, stError.Wrap(stError.ConfigError, "invariants.max_operator", err)
	}
	maxMessage, err := parseDurationPtr(cfg.Invariants.MaxMessage)
	if err != nil {
		return nil, stError.Wrap(stError.ConfigError, "invariants.max_message", err)
	}

	return invariants.New(invariants.Config{
		Peers:       cfg.Invariants.Peers,
		MaxProgress: maxProgress,
		MaxEpoch:    maxEpoch,
		MaxOperator: maxOperator,
		MaxMessage:  maxMessage,
	}, log), nil
}

func parseDurationPtr(s string) (*time.Duration, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// maybeStartMetricsServer starts the Prometheus metrics endpoint when
// cfg.Metrics.Enabled, returning a stop func that is a no-op if it wasn't
// started.
func maybeStartMetricsServer(ctx context.Context, cfg *config.Config, log *logrus.Logger) (func(context.Context) error, error) {
	if !cfg.Metrics.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, log)
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv.Stop, nil
}

// waitForSignal blocks until SIGINT/SIGTERM, ctx is done, or done fires -
// the last lets a job that aborted itself (spec §4.1: a --from-file run
// aborts on a source error) wake the CLI instead of hanging for a signal
// that will never come.
func waitForSignal(ctx context.Context, done <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-ctx.Done():
	case <-done:
	}
}
