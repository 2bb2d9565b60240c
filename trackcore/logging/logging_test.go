package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithFilePathRotatesThroughLumberjack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.log")

	logger, err := New(Options{FilePath: path})
	require.NoError(t, err)

	logger.Info("hello", zap.String("component", "test"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}

func TestComponentTagsSubsequentEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.log")

	base, err := New(Options{FilePath: path})
	require.NoError(t, err)

	sugared := Component(base, "feeder")
	sugared.Infow("loaded track")
	require.NoError(t, base.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"component":"feeder"`)
}

func TestWarnerAdaptsSingleErrorSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.log")

	base, err := New(Options{FilePath: path})
	require.NoError(t, err)

	w := Warner{Component(base, "cache")}
	w.Warn("cache write failed", os.ErrClosed)
	require.NoError(t, base.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "cache write failed")
}
