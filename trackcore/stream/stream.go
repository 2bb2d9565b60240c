// Package stream implements C4, the Chunked Stream: a seekable blocking
// reader over a buffer.ChunkBuffer that requests chunks from a
// source.ChunkSource as the read position advances, maintaining a
// prefetch window. Grounded on the teacher's player.AudioFile.Read/Seek,
// generalized so requesting and buffering are delegated to C2/C3 instead
// of AudioFile owning both (spec.md §4.4).
package stream

import (
	"io"
	"log"
	"time"

	"github.com/vantapoint/trackcore/trackcore/buffer"
	"github.com/vantapoint/trackcore/trackcore/errs"
	"github.com/vantapoint/trackcore/trackcore/source"
)

// bufferSink adapts a buffer.ChunkBuffer to source.Sink: chunk writes go
// straight to the buffer, header records are forwarded to an optional
// header callback (the feeder cares about these, the stream itself does not),
// and channel-reported errors become a buffer-wide errs.StreamError.
type bufferSink struct {
	buf    *buffer.ChunkBuffer
	header func(id byte, data []byte, cached bool)
}

func (s bufferSink) WriteChunk(index int, ciphertext []byte, cached bool) error {
	return s.buf.WriteChunk(index, ciphertext, cached)
}

func (s bufferSink) WriteHeader(id byte, data []byte, cached bool) error {
	if s.header != nil {
		s.header(id, data, cached)
	}
	return nil
}

func (s bufferSink) StreamError(code int) {
	s.buf.NotifyStreamError(errs.NewStreamError(code))
}

// PrefetchAhead is the minimum prefetch window spec.md §4.4 calls for:
// while reading chunk i, also ensure chunk i+1 is requested.
const PrefetchAhead = 1

// DefaultChunkTimeout is the bounded wait spec.md §4.4 recommends before
// re-issuing a chunk request once and then failing.
const DefaultChunkTimeout = 10 * time.Second

// ChunkedStream is a blocking, seekable byte stream over a
// buffer.ChunkBuffer, requesting missing chunks from a
// source.ChunkSource as needed.
type ChunkedStream struct {
	buf    *buffer.ChunkBuffer
	src    source.ChunkSource
	fileID []byte

	chunkSize int
	pos       int
	sink      bufferSink

	Timeout time.Duration
	Logger  *log.Logger
}

// New builds a ChunkedStream reading buf's chunks, requesting missing
// ones from src for fileID. onHeader, if non-nil, receives header
// records the source delivers alongside chunk 0 (spec.md §9's header/
// body overlap note); it may be nil if the caller has already consumed
// headers elsewhere.
func New(buf *buffer.ChunkBuffer, src source.ChunkSource, fileID []byte, chunkSize int, onHeader func(id byte, data []byte, cached bool)) *ChunkedStream {
	return &ChunkedStream{
		buf:       buf,
		src:       src,
		fileID:    fileID,
		chunkSize: chunkSize,
		sink:      bufferSink{buf: buf, header: onHeader},
		Timeout:   DefaultChunkTimeout,
	}
}

func (s *ChunkedStream) chunkIndex(pos int) int {
	return pos / s.chunkSize
}

// Length returns the total decrypted size of the stream, in bytes.
func (s *ChunkedStream) Length() int {
	return s.buf.TotalSize()
}

// Position returns the current read/seek cursor, in bytes.
func (s *ChunkedStream) Position() int {
	return s.pos
}

// Seek sets the read cursor, clamped to [0, Length()], and ensures the
// target chunk and the prefetch window are requested. It never blocks.
func (s *ChunkedStream) Seek(newPos int) {
	if newPos < 0 {
		newPos = 0
	}
	if newPos > s.buf.TotalSize() {
		newPos = s.buf.TotalSize()
	}
	s.pos = newPos
	s.ensureRequested(s.chunkIndex(s.pos))
}

// Skip advances the cursor by n bytes without blocking, used by feeders
// to discard container preambles (spec.md §4.4, the 0xA7-byte OGG skip).
func (s *ChunkedStream) Skip(n int) {
	s.Seek(s.pos + n)
}

// ensureRequested asks the source for chunk i and its prefetch window if
// they have not already been requested, recording the request against
// the buffer immediately so repeated calls are idempotent.
func (s *ChunkedStream) ensureRequested(i int) {
	s.requestOnce(i)
	for w := 1; w <= PrefetchAhead; w++ {
		s.requestOnce(i + w)
	}
}

func (s *ChunkedStream) requestOnce(i int) {
	if i < 0 || i >= s.buf.ChunksTotal() {
		return
	}
	if s.buf.Requested(i) {
		return
	}
	s.buf.MarkRequested(i)
	go s.issueRequest(i)
}

func (s *ChunkedStream) issueRequest(i int) {
	if err := s.src.RequestChunk(s.fileID, i, s.sink); err != nil {
		s.logf("chunk %d request failed: %v", i, err)
	}
}

// Read copies bytes from the current position onward, blocking on the
// current chunk if it is not yet available. It returns io.EOF once
// Position() reaches Length(); it returns errs.ErrStreamClosed if the
// underlying buffer is closed while waiting, or the delivered
// errs.StreamError if the channel reports a mid-stream error.
//
// Per spec.md §4.4's ordering guarantee, Read never exposes bytes past
// the first unavailable chunk ahead of pos, even if later chunks already
// arrived out of order.
func (s *ChunkedStream) Read(dst []byte) (int, error) {
	total := s.buf.TotalSize()
	if s.pos >= total {
		return 0, io.EOF
	}

	written := 0
	for written < len(dst) && s.pos < total {
		idx := s.chunkIndex(s.pos)
		s.ensureRequested(idx)

		if !s.buf.Available(idx) {
			if err := s.waitForChunk(idx); err != nil {
				if written > 0 {
					return written, nil
				}
				return 0, err
			}
		}

		chunkStart := idx * s.chunkSize
		payload := s.buf.Payload(idx)
		offsetInChunk := s.pos - chunkStart

		n := copy(dst[written:], payload[offsetInChunk:])
		written += n
		s.pos += n
	}

	return written, nil
}

// waitForChunk blocks on chunk idx with the configured timeout, and on
// timeout re-issues the request exactly once before failing with
// errs.ErrChunkTimeout, per spec.md §4.4's bounded-wait discipline.
func (s *ChunkedStream) waitForChunk(idx int) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultChunkTimeout
	}

	err, timedOut := s.buf.WaitAvailableTimeout(idx, timeout)
	if !timedOut {
		return err
	}

	s.logf("chunk %d timed out after %s, re-issuing", idx, timeout)
	go s.issueRequest(idx)

	err, timedOut = s.buf.WaitAvailableTimeout(idx, timeout)
	if timedOut {
		return errs.ErrChunkTimeout
	}
	return err
}

// Close releases every reader blocked in Read, which will observe
// errs.ErrStreamClosed. Idempotent.
func (s *ChunkedStream) Close() {
	s.buf.Close()
}

func (s *ChunkedStream) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
