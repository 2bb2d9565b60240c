// Package buffer implements C3, the Chunk Buffer: the fixed-size array
// of chunks with per-chunk availability and request flags that C4's
// ChunkedStream reads from and C2's providers write into. Grounded on
// the teacher's player.AudioFile chunk map together with the original
// Java implementation's ChunksBuffer (original_source/.../
// AudioFileStreaming.java), generalized so the buffer itself never
// originates requests (spec.md §4.3: "the buffer ... merely records
// that requested[i] was set").
package buffer

import (
	"sync"
	"time"

	"github.com/vantapoint/trackcore/trackcore/decrypt"
	"github.com/vantapoint/trackcore/trackcore/errs"
)

// Decryptor is the capability ChunkBuffer needs from C1: decrypt one
// chunk's ciphertext into plaintext. decrypt.Decryptor satisfies this;
// accepting the interface here (rather than the concrete type) lets
// callers that already have plaintext bytes in hand, such as the CDN
// path of package feeder, supply an identity implementation instead.
type Decryptor interface {
	DecryptChunk(index int, ciphertext, plaintext []byte) error
}

// ChunkBuffer owns the three parallel arrays described in spec.md §3:
// decrypted payload, available, and requested, each of length
// chunksTotal. All mutation happens under mu; readers and writers share
// the same mutex and condition variable (spec.md §5's "shared-resource
// policy").
type ChunkBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	totalSize  int
	chunkSize  int
	payload    [][]byte
	available  []bool
	requested  []bool
	decryptor  Decryptor
	closed     bool
	streamErr  error
}

// New allocates a ChunkBuffer for a file of totalSize bytes, decrypted
// with decryptor. chunksTotal = ceil(totalSize/CHUNK_SIZE) (spec.md P1),
// except that an empty file gets one zero-length chunk rather than none.
func New(totalSize int, decryptor Decryptor) *ChunkBuffer {
	chunkSize := decrypt.CHUNK_SIZE
	chunksTotal := (totalSize + chunkSize - 1) / chunkSize
	if chunksTotal == 0 {
		chunksTotal = 1
	}

	b := &ChunkBuffer{
		totalSize: totalSize,
		chunkSize: chunkSize,
		payload:   make([][]byte, chunksTotal),
		available: make([]bool, chunksTotal),
		requested: make([]bool, chunksTotal),
		decryptor: decryptor,
	}
	b.cond = sync.NewCond(&b.mu)

	for i := range b.payload {
		b.payload[i] = make([]byte, b.chunkLen(i))
	}

	return b
}

func (b *ChunkBuffer) chunkLen(i int) int {
	if i == len(b.payload)-1 {
		last := b.totalSize % b.chunkSize
		if last == 0 && b.totalSize > 0 {
			return b.chunkSize
		}
		return last
	}
	return b.chunkSize
}

// ChunksTotal returns the number of chunks in the buffer.
func (b *ChunkBuffer) ChunksTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payload)
}

// TotalSize returns the total decrypted file size in bytes.
func (b *ChunkBuffer) TotalSize() int {
	return b.totalSize
}

// MarkRequested records that chunk i has been requested, without
// actually issuing the request — the buffer never originates requests
// itself (spec.md §4.3).
func (b *ChunkBuffer) MarkRequested(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= 0 && i < len(b.requested) {
		b.requested[i] = true
	}
}

// Requested reports whether chunk i has been requested.
func (b *ChunkBuffer) Requested(i int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return i >= 0 && i < len(b.requested) && b.requested[i]
}

// Available reports whether chunk i's payload is ready to read.
func (b *ChunkBuffer) Available(i int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return i >= 0 && i < len(b.available) && b.available[i]
}

// Payload returns chunk i's decrypted payload. Only safe to call once
// Available(i) is true; invariant I3 guarantees the slice is then
// immutable for the rest of the buffer's lifetime.
func (b *ChunkBuffer) Payload(i int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.payload[i]
}

// WriteChunk decrypts ciphertext into chunk i's payload and marks it
// available, waking any blocked readers. It is a no-op once the buffer
// is closed (spec.md §4.3: "must tolerate being called after close").
// cached is accepted for symmetry with the ChunkSource contract but does
// not change behavior here; callers decide cache-write policy.
func (b *ChunkBuffer) WriteChunk(i int, ciphertext []byte, cached bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	if i < 0 || i >= len(b.payload) {
		return errs.ErrInvalidChunkSize
	}

	if len(ciphertext) != len(b.payload[i]) {
		return errs.ErrInvalidChunkSize
	}

	b.requested[i] = true // invariant I1: available implies requested
	if err := b.decryptor.DecryptChunk(i, ciphertext, b.payload[i]); err != nil {
		return err
	}

	b.available[i] = true
	b.cond.Broadcast()
	return nil
}

// WaitAvailable blocks until chunk i is available, the buffer is
// closed, or a stream error has been delivered, whichever happens
// first. It returns immediately if chunk i is already available.
func (b *ChunkBuffer) WaitAvailable(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if i < 0 || i >= len(b.available) {
			return errs.ErrInvalidChunkSize
		}
		if b.available[i] {
			return nil
		}
		if b.streamErr != nil {
			return b.streamErr
		}
		if b.closed {
			return errs.ErrStreamClosed
		}
		b.cond.Wait()
	}
}

// WaitAvailableTimeout blocks like WaitAvailable but gives up after
// timeout, returning false if the chunk is still unavailable when the
// deadline passes (the caller, C4, re-issues the request once and waits
// again before failing with errs.ErrChunkTimeout per spec.md §4.4).
func (b *ChunkBuffer) WaitAvailableTimeout(i int, timeout time.Duration) (err error, timedOut bool) {
	done := make(chan error, 1)
	go func() {
		done <- b.WaitAvailable(i)
	}()

	select {
	case err := <-done:
		return err, false
	case <-time.After(timeout):
		return nil, true
	}
}

// NotifyStreamError delivers a stream error to every reader currently
// blocked in WaitAvailable, and to every later WaitAvailable call on a
// chunk that is not yet available. The error is never cleared, and it
// takes precedence over errs.ErrStreamClosed once the buffer is closed.
func (b *ChunkBuffer) NotifyStreamError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamErr = err
	b.cond.Broadcast()
}

// Close marks the buffer closed: further WriteChunk calls are no-ops
// and every blocked WaitAvailable call returns errs.ErrStreamClosed.
// Idempotent.
func (b *ChunkBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (b *ChunkBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
