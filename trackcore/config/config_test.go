package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantapoint/trackcore/trackcore/metadata"
)

func TestLoadParsesJSONOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"preferred_quality":320,"use_cdn":false}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, metadata.Quality320, cfg.PreferredQuality)
	require.False(t, cfg.UseCDN)
	// Fields absent from the JSON keep their Default() value.
	require.Equal(t, Default().ChunkTimeout, cfg.ChunkTimeout)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestWatchFileAppliesInitialConfigImmediately(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"preferred_quality":96}`), 0o644))

	applied := make(chan Configuration, 4)
	w, err := WatchFile(path, func(cfg Configuration) { applied <- cfg })
	require.NoError(t, err)
	defer w.Close()

	select {
	case cfg := <-applied:
		require.Equal(t, metadata.Quality96, cfg.PreferredQuality)
	case <-time.After(time.Second):
		t.Fatal("initial apply never fired")
	}
}

func TestWatchFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"preferred_quality":96}`), 0o644))

	applied := make(chan Configuration, 4)
	w, err := WatchFile(path, func(cfg Configuration) { applied <- cfg })
	require.NoError(t, err)
	defer w.Close()

	<-applied // initial apply

	require.NoError(t, os.WriteFile(path, []byte(`{"preferred_quality":320}`), 0o644))

	require.Eventually(t, func() bool {
		select {
		case cfg := <-applied:
			return cfg.PreferredQuality == metadata.Quality320
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatchFileAppliesDefaultWhenFileMissingAtStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	applied := make(chan Configuration, 4)
	w, err := WatchFile(path, func(cfg Configuration) { applied <- cfg })
	require.NoError(t, err)
	defer w.Close()

	select {
	case cfg := <-applied:
		require.Equal(t, Default(), cfg)
	case <-time.After(time.Second):
		t.Fatal("initial apply never fired")
	}
}
