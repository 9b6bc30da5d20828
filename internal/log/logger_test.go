package log

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snailtrail.dev/st2/internal/config"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "shout", Format: "text"})
	require.Error(t, err)
}

func TestNewRejectsBadFormat(t *testing.T) {
	_, err := New(config.LogConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}

func TestNewBuildsTextLogger(t *testing.T) {
	l, err := New(config.LogConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewRequiresFilePathWhenFileOutputEnabled(t *testing.T) {
	cfg := config.LogConfig{Level: "info", Format: "json"}
	cfg.Outputs.File.Enabled = true
	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewWritesRotatedFileWhenEnabled(t *testing.T) {
	cfg := config.LogConfig{Level: "info", Format: "text"}
	cfg.Outputs.File.Enabled = true
	cfg.Outputs.File.Path = filepath.Join(t.TempDir(), "st2.log")

	l, err := New(cfg)
	require.NoError(t, err)
	l.Info("hello")
}
