// Package errs collects the sentinel error kinds the streaming core can
// surface to its callers. Most of the core returns one of these, wrapped
// with context via fmt.Errorf("...: %w", ...), so callers can still use
// errors.Is against the sentinel.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMetadataNotFound is returned when the metadata RPC has no record
	// for the requested gid.
	ErrMetadataNotFound = errors.New("metadata not found")
	// ErrNoAudioKey is returned when the audio-key RPC fails to return a
	// file key for a (track, file) pair.
	ErrNoAudioKey = errors.New("no audio key")
	// ErrUnsupportedFormat is returned when a track lists no Vorbis
	// AudioFile at all; the quality preference alone never causes it.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrChannelError is returned when the control channel fails to
	// deliver a requested chunk.
	ErrChannelError = errors.New("channel error")
	// ErrChunkTimeout is returned when a chunk is not delivered within
	// the configured wait bound, after one re-issue.
	ErrChunkTimeout = errors.New("chunk timeout")
	// ErrCacheIO marks a cache I/O failure. Cache failures are logged and
	// swallowed by the cache-consuming code, which logs the underlying
	// error itself; no code in this module returns or wraps ErrCacheIO.
	ErrCacheIO = errors.New("cache io error")
	// ErrStreamClosed is returned to any reader blocked on a chunk when
	// the stream is closed.
	ErrStreamClosed = errors.New("stream closed")
	// ErrInvalidChunkSize is returned when a caller hands the decryptor
	// or buffer a chunk of the wrong length for its index. This is
	// treated as a caller bug, not a recoverable condition.
	ErrInvalidChunkSize = errors.New("invalid chunk size")
	// ErrHandlerStopped is returned by any send_* call made to a handler
	// that has already observed Stop/Terminate.
	ErrHandlerStopped = errors.New("handler stopped")
)

// StreamError is delivered when the control channel reports a mid-stream
// error (spec §4.4 wait discipline, outcome 3). It wraps the raw code the
// channel sent so callers can log or compare it.
type StreamError struct {
	Code int
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error, code: %d", e.Code)
}

// NewStreamError builds a StreamError for the given channel error code.
func NewStreamError(code int) *StreamError {
	return &StreamError{Code: code}
}
