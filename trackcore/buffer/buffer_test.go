package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vantapoint/trackcore/trackcore/decrypt"
	"github.com/vantapoint/trackcore/trackcore/errs"
)

var testKey = []byte("0123456789abcdef")

func newDecryptor(t *testing.T) *decrypt.Decryptor {
	t.Helper()
	d, err := decrypt.New(testKey)
	require.NoError(t, err)
	return d
}

// TestChunking is P1: chunks_total = ceil(S/CHUNK_SIZE), and the sum of
// per-chunk lengths equals S, for a range of sizes including zero and
// exact multiples. An empty file is held as one zero-length chunk.
func TestChunking(t *testing.T) {
	sizes := []int{0, 1, decrypt.CHUNK_SIZE - 1, decrypt.CHUNK_SIZE, decrypt.CHUNK_SIZE + 1, decrypt.CHUNK_SIZE*3 + 777}

	for _, s := range sizes {
		b := New(s, newDecryptor(t))

		wantChunks := (s + decrypt.CHUNK_SIZE - 1) / decrypt.CHUNK_SIZE
		if wantChunks == 0 {
			wantChunks = 1
		}
		require.Equal(t, wantChunks, b.ChunksTotal(), "size %d", s)

		sum := 0
		for i := 0; i < b.ChunksTotal(); i++ {
			sum += len(b.Payload(i))
		}
		require.Equal(t, s, sum, "size %d", s)
	}
}

func TestWriteChunkAvailabilityMonotonic(t *testing.T) {
	b := New(decrypt.CHUNK_SIZE*2, newDecryptor(t))

	require.False(t, b.Available(0))
	require.NoError(t, b.WriteChunk(0, make([]byte, decrypt.CHUNK_SIZE), false))
	require.True(t, b.Available(0))
	require.True(t, b.Requested(0), "invariant I1: available implies requested")

	// P2: availability never regresses.
	require.NoError(t, b.WriteChunk(0, make([]byte, decrypt.CHUNK_SIZE), true))
	require.True(t, b.Available(0))
}

func TestWriteChunkSizeMismatch(t *testing.T) {
	b := New(decrypt.CHUNK_SIZE, newDecryptor(t))
	err := b.WriteChunk(0, make([]byte, 10), false)
	require.ErrorIs(t, err, errs.ErrInvalidChunkSize)
	require.False(t, b.Available(0))
}

func TestWriteChunkAfterCloseIsNoop(t *testing.T) {
	b := New(decrypt.CHUNK_SIZE, newDecryptor(t))
	b.Close()
	require.NoError(t, b.WriteChunk(0, make([]byte, decrypt.CHUNK_SIZE), false))
	require.False(t, b.Available(0))
}

// TestCloseWakesBlockedWaiter is P5: a reader blocked on a chunk
// observes exactly one outcome after close — it returns ErrStreamClosed,
// never hangs, never returns stale data.
func TestCloseWakesBlockedWaiter(t *testing.T) {
	b := New(decrypt.CHUNK_SIZE, newDecryptor(t))

	var wg sync.WaitGroup
	results := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results <- b.WaitAvailable(0)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-results:
		require.ErrorIs(t, err, errs.ErrStreamClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAvailable did not wake up after Close")
	}
	wg.Wait()
}

func TestWaitAvailableReturnsOnceChunkWritten(t *testing.T) {
	b := New(decrypt.CHUNK_SIZE, newDecryptor(t))

	done := make(chan error, 1)
	go func() {
		done <- b.WaitAvailable(0)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.WriteChunk(0, make([]byte, decrypt.CHUNK_SIZE), false))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAvailable did not return after WriteChunk")
	}
}

func TestNotifyStreamErrorFailsBlockedWaiter(t *testing.T) {
	b := New(decrypt.CHUNK_SIZE, newDecryptor(t))

	done := make(chan error, 1)
	go func() {
		done <- b.WaitAvailable(0)
	}()

	time.Sleep(10 * time.Millisecond)
	streamErr := errs.NewStreamError(3)
	b.NotifyStreamError(streamErr)

	select {
	case err := <-done:
		require.ErrorIs(t, err, streamErr)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAvailable did not return after NotifyStreamError")
	}
}

func TestWaitAvailableTimeout(t *testing.T) {
	b := New(decrypt.CHUNK_SIZE, newDecryptor(t))

	_, timedOut := b.WaitAvailableTimeout(0, 20*time.Millisecond)
	require.True(t, timedOut)
}
