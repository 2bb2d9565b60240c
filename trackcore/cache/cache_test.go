package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestHandle(t *testing.T) *SQLiteHandle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	h, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

// TestCacheRoundTrip is P7: write_chunk(i, data) followed by
// has_chunk(i)/read_chunk(i) observes the same bytes back.
func TestCacheRoundTrip(t *testing.T) {
	h := openTestHandle(t)
	fileID := []byte("abc123")

	has, err := h.HasChunk(fileID, 0)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, h.WriteChunk(fileID, 0, []byte("hello chunk")))

	has, err = h.HasChunk(fileID, 0)
	require.NoError(t, err)
	require.True(t, has)

	data, err := h.ReadChunk(fileID, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello chunk"), data)
}

func TestCacheChunksAreIsolatedByFileID(t *testing.T) {
	h := openTestHandle(t)

	require.NoError(t, h.WriteChunk([]byte("file-a"), 0, []byte("a-data")))
	require.NoError(t, h.WriteChunk([]byte("file-b"), 0, []byte("b-data")))

	data, err := h.ReadChunk([]byte("file-a"), 0)
	require.NoError(t, err)
	require.Equal(t, []byte("a-data"), data)

	data, err = h.ReadChunk([]byte("file-b"), 0)
	require.NoError(t, err)
	require.Equal(t, []byte("b-data"), data)
}

func TestCacheWriteChunkOverwrites(t *testing.T) {
	h := openTestHandle(t)
	fileID := []byte("file")

	require.NoError(t, h.WriteChunk(fileID, 0, []byte("first")))
	require.NoError(t, h.WriteChunk(fileID, 0, []byte("second")))

	data, err := h.ReadChunk(fileID, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), data)
}

func TestCacheHeaderRoundTrip(t *testing.T) {
	h := openTestHandle(t)
	fileID := []byte("file")

	headers, err := h.GetAllHeaders(fileID)
	require.NoError(t, err)
	require.Empty(t, headers)

	require.NoError(t, h.WriteHeader(fileID, 0x3, []byte{0, 0, 1, 0}))
	require.NoError(t, h.WriteHeader(fileID, 0x4, []byte{1, 2, 3, 4}))

	headers, err = h.GetAllHeaders(fileID)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	require.Equal(t, []byte{0, 0, 1, 0}, headers[0x3])
	require.Equal(t, []byte{1, 2, 3, 4}, headers[0x4])
}
