// Package log builds the analysis process's structured logger: logrus fanned
// out to stderr and, when configured, a rotated file via lumberjack, with a
// text/json formatter switch driven by config.LogConfig. Grounded on the
// teacher's internal/log package (logger.go/formatter.go's MultiWriter +
// level-parse shape), adapted from slog to logrus per the logrus-based
// formatter the teacher itself wrote for entries (formatter.go used
// *logrus.Entry), and simplified to logrus's own TextFormatter/JSONFormatter
// rather than the teacher's %pattern templating, which nothing in this
// domain needs.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"snailtrail.dev/st2/internal/config"
)

// New builds a logger from cfg. The logger is threaded through components as
// a field; it is never installed as a package global here (the one
// package-level default, Default, exists only for bootstrap code that runs
// before a Config is available).
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	writers := []io.Writer{os.Stderr}
	if cfg.Outputs.File.Enabled {
		if cfg.Outputs.File.Path == "" {
			return nil, fmt.Errorf("log.outputs.file.path is required when log.outputs.file.enabled=true")
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Outputs.File.Path,
			MaxSize:    cfg.Outputs.File.Rotation.MaxSizeMB,
			MaxAge:     cfg.Outputs.File.Rotation.MaxAgeDays,
			MaxBackups: cfg.Outputs.File.Rotation.MaxBackups,
			Compress:   cfg.Outputs.File.Rotation.Compress,
		})
	}

	l := logrus.New()
	l.SetOutput(io.MultiWriter(writers...))
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	return l, nil
}

// Default is a plain stderr text logger for code that runs before a Config
// is loaded (flag parsing failures, init() registration diagnostics).
var Default = func() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}()
