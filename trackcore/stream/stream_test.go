package stream

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vantapoint/trackcore/trackcore/buffer"
	"github.com/vantapoint/trackcore/trackcore/decrypt"
	"github.com/vantapoint/trackcore/trackcore/errs"
	"github.com/vantapoint/trackcore/trackcore/source"
)

var testKey = []byte("0123456789abcdef")

// encryptWholeFile "encrypts" plain the same way it will be decrypted:
// AES-CTR is a XOR-with-keystream cipher, so running the exact same
// per-chunk keystream over plaintext once produces ciphertext, and again
// reproduces the plaintext — which is exactly what package decrypt does
// on the read side.
func encryptWholeFile(t *testing.T, plain []byte) []byte {
	t.Helper()
	d, err := decrypt.New(testKey)
	require.NoError(t, err)

	out := make([]byte, len(plain))
	chunks := (len(plain) + decrypt.CHUNK_SIZE - 1) / decrypt.CHUNK_SIZE
	for i := 0; i < chunks; i++ {
		start := i * decrypt.CHUNK_SIZE
		end := start + decrypt.CHUNK_SIZE
		if end > len(plain) {
			end = len(plain)
		}
		require.NoError(t, d.DecryptChunk(i, plain[start:end], out[start:end]))
	}
	return out
}

// fakeChannelSource serves whatever ciphertext was registered for a
// chunk index, simulating the channel provider delivering chunks
// asynchronously and possibly out of order.
type fakeChannelSource struct {
	mu       sync.Mutex
	cipher   []byte
	chunkLen int
	delay    time.Duration
	fail     map[int]bool
}

func (f *fakeChannelSource) RequestChunk(fileID []byte, index int, sink source.Sink) error {
	f.mu.Lock()
	failing := f.fail[index]
	f.mu.Unlock()
	if failing {
		return nil // simulate a request that never completes
	}

	go func() {
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		start := index * f.chunkLen
		end := start + f.chunkLen
		if end > len(f.cipher) {
			end = len(f.cipher)
		}
		sink.WriteChunk(index, f.cipher[start:end], false)
	}()
	return nil
}

func newTestStream(t *testing.T, plain []byte, delay time.Duration) (*ChunkedStream, *buffer.ChunkBuffer) {
	t.Helper()
	d, err := decrypt.New(testKey)
	require.NoError(t, err)

	buf := buffer.New(len(plain), d)
	src := &fakeChannelSource{cipher: encryptWholeFile(t, plain), chunkLen: decrypt.CHUNK_SIZE, delay: delay, fail: map[int]bool{}}
	s := New(buf, src, []byte("file-id"), decrypt.CHUNK_SIZE, nil)
	return s, buf
}

func makePlain(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

// TestReadMatchesReferenceDecrypt is P3.
func TestReadMatchesReferenceDecrypt(t *testing.T) {
	plain := makePlain(decrypt.CHUNK_SIZE*3 + 777)
	s, _ := newTestStream(t, plain, time.Millisecond)

	got := make([]byte, 0, len(plain))
	buf := make([]byte, 4096)
	for {
		n, err := s.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	require.Equal(t, plain, got)
}

// TestSeekIsIdempotent is P4: seeking to the same position repeatedly
// does not re-request an already-requested chunk or corrupt position.
func TestSeekIsIdempotent(t *testing.T) {
	plain := makePlain(decrypt.CHUNK_SIZE * 2)
	s, buf := newTestStream(t, plain, time.Millisecond)

	s.Seek(decrypt.CHUNK_SIZE)
	require.Equal(t, decrypt.CHUNK_SIZE, s.Position())
	require.True(t, buf.Requested(1))

	s.Seek(decrypt.CHUNK_SIZE)
	s.Seek(decrypt.CHUNK_SIZE)
	require.Equal(t, decrypt.CHUNK_SIZE, s.Position())
}

func TestSeekClampsToBounds(t *testing.T) {
	plain := makePlain(decrypt.CHUNK_SIZE)
	s, _ := newTestStream(t, plain, time.Millisecond)

	s.Seek(-100)
	require.Equal(t, 0, s.Position())

	s.Seek(len(plain) + 100000)
	require.Equal(t, len(plain), s.Position())
}

// TestCloseWakesBlockedReader is P5.
func TestCloseWakesBlockedReader(t *testing.T) {
	plain := makePlain(decrypt.CHUNK_SIZE)
	s, _ := newTestStream(t, plain, time.Hour) // never delivers in time

	result := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 10))
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-result:
		require.ErrorIs(t, err, errs.ErrStreamClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not wake up after Close")
	}
}

func TestReadTimesOutAndReissuesThenFails(t *testing.T) {
	plain := makePlain(decrypt.CHUNK_SIZE)
	s, _ := newTestStream(t, plain, 0)
	s.Timeout = 15 * time.Millisecond
	s.src.(*fakeChannelSource).fail[0] = true

	_, err := s.Read(make([]byte, 10))
	require.ErrorIs(t, err, errs.ErrChunkTimeout)
}

func TestSkipAdvancesPositionWithoutBlocking(t *testing.T) {
	plain := makePlain(decrypt.CHUNK_SIZE)
	s, _ := newTestStream(t, plain, time.Millisecond)

	s.Skip(167)
	require.Equal(t, 167, s.Position())
}
