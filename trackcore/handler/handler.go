// Package handler implements C6, the Track Handler: a single-owner
// actor with an unbounded FIFO command queue and one dedicated worker,
// driving a playable id through Load/Play/Pause/Seek/Stop and reporting
// lifecycle events to a Listener. Grounded on the teacher's command-
// dispatch texture (a dedicated goroutine draining a queue, never
// touched directly by callers) and on original_source's
// TrackHandler.java for the exact state-machine and mid-load
// cancellation semantics spec.md §4.6 only summarizes.
package handler

import (
	"sync"

	"github.com/vantapoint/trackcore/trackcore/errs"
	"github.com/vantapoint/trackcore/trackcore/feeder"
	"github.com/vantapoint/trackcore/trackcore/metadata"
)

// State is one node of spec.md §4.6's state machine.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Listener receives the lifecycle events spec.md §4.6 names.
type Listener interface {
	StartedLoading(h *TrackHandler)
	FinishedLoading(h *TrackHandler, pos int, play bool)
	LoadingError(h *TrackHandler, id metadata.TrackID, err error)
	EndOfTrack(h *TrackHandler)
	PreloadNextTrack(h *TrackHandler)
}

type commandKind int

const (
	cmdLoad commandKind = iota
	cmdPlay
	cmdPause
	cmdSeek
	cmdStop
	cmdTerminate
)

// command is the tagged sum type the queue carries — a struct with a
// kind discriminant rather than an Object[]/interface{} bag, so each
// command's payload is statically known at the one place it's built and
// the one place it's consumed.
type command struct {
	kind    commandKind
	trackID metadata.TrackID
	play    bool
	posMS   int
}

// TrackHandler is the C6 actor: one FIFO queue, one worker goroutine,
// and the state spec.md §3's "Handler State" names.
type TrackHandler struct {
	feeder   *feeder.StreamFeeder
	listener Listener

	mu       sync.Mutex
	queue    []command
	notEmpty *sync.Cond
	stopped  bool

	stateMu sync.Mutex
	state   State
	track   metadata.TrackID
	stream  *feeder.LoadedStream
	worker  *decoderWorker
}

// New builds a TrackHandler and starts its dedicated worker goroutine.
func New(f *feeder.StreamFeeder, listener Listener) *TrackHandler {
	h := &TrackHandler{
		feeder:   f,
		listener: listener,
		state:    Idle,
	}
	h.notEmpty = sync.NewCond(&h.mu)
	go h.run()
	return h
}

func (h *TrackHandler) enqueue(cmd command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return errs.ErrHandlerStopped
	}
	h.queue = append(h.queue, cmd)
	h.notEmpty.Signal()
	return nil
}

// SendLoad enqueues a Load command.
func (h *TrackHandler) SendLoad(id metadata.TrackID, play bool, posMS int) error {
	return h.enqueue(command{kind: cmdLoad, trackID: id, play: play, posMS: posMS})
}

// SendPlay enqueues a Play command.
func (h *TrackHandler) SendPlay() error { return h.enqueue(command{kind: cmdPlay}) }

// SendPause enqueues a Pause command.
func (h *TrackHandler) SendPause() error { return h.enqueue(command{kind: cmdPause}) }

// SendSeek enqueues a Seek command.
func (h *TrackHandler) SendSeek(posMS int) error {
	return h.enqueue(command{kind: cmdSeek, posMS: posMS})
}

// SendStop enqueues a Stop command. Per spec.md §4.6, Stop implies
// close() and a subsequent Terminate so the worker exits.
func (h *TrackHandler) SendStop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return errs.ErrHandlerStopped
	}
	h.queue = append(h.queue, command{kind: cmdStop}, command{kind: cmdTerminate})
	h.stopped = true
	h.notEmpty.Signal()
	h.mu.Unlock()
	return nil
}

// State returns the handler's current lifecycle state.
func (h *TrackHandler) State() State {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.state
}

// Position returns the current playback position in milliseconds, or 0
// if nothing is loaded.
func (h *TrackHandler) Position() int {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.worker == nil {
		return 0
	}
	return h.worker.positionMS()
}

func (h *TrackHandler) setState(s State) {
	h.stateMu.Lock()
	h.state = s
	h.stateMu.Unlock()
}

func (h *TrackHandler) run() {
	for {
		cmd := h.dequeue()

		switch cmd.kind {
		case cmdLoad:
			h.handleLoad(cmd)
		case cmdPlay:
			h.handlePlay()
		case cmdPause:
			h.handlePause()
		case cmdSeek:
			h.handleSeek(cmd.posMS)
		case cmdStop:
			h.handleStop()
		case cmdTerminate:
			return
		}
	}
}

func (h *TrackHandler) dequeue() command {
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.queue) == 0 {
		h.notEmpty.Wait()
	}
	cmd := h.queue[0]
	h.queue = h.queue[1:]
	return cmd
}

// handleLoad is AudioFileStreaming/TrackHandler.load(): cancel whatever
// is currently loaded or loading, fetch the new stream, and — unless a
// Stop/close raced in while the (blocking) fetch was in flight — start
// the decoder worker and report finishedLoading.
func (h *TrackHandler) handleLoad(cmd command) {
	h.listener.StartedLoading(h)

	h.stateMu.Lock()
	if h.worker != nil {
		h.worker.stop()
		h.worker = nil
	}
	if h.stream != nil {
		h.stream.Stream.Close()
		h.stream = nil
	}
	h.state = Loading
	h.stateMu.Unlock()

	loaded, err := h.feeder.Load(cmd.trackID, metadata.Quality320, true)
	if err != nil {
		h.setState(Idle)
		h.listener.LoadingError(h, cmd.trackID, err)
		return
	}

	// Mid-load cancellation: if Stop/close was observed while the
	// (blocking) fetch above was in flight, discard what we just loaded
	// without emitting finishedLoading, per spec.md §4.6.
	h.mu.Lock()
	closed := h.stopped
	h.mu.Unlock()
	if closed {
		loaded.Stream.Close()
		return
	}

	h.stateMu.Lock()
	h.track = cmd.trackID
	h.stream = loaded
	h.worker = newDecoderWorker(loaded.Stream, h.onEndOfTrack)
	h.state = Ready
	h.stateMu.Unlock()

	loaded.Stream.Seek(msToBytes(cmd.posMS))
	h.listener.FinishedLoading(h, cmd.posMS, cmd.play)

	if cmd.play {
		h.handlePlay()
	}
}

func (h *TrackHandler) handlePlay() {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.worker == nil {
		return
	}
	if h.state != Ready && h.state != Paused {
		return
	}
	h.state = Playing
	h.worker.play()
}

func (h *TrackHandler) handlePause() {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.worker == nil || h.state != Playing {
		return
	}
	h.state = Paused
	h.worker.pause()
}

func (h *TrackHandler) handleSeek(posMS int) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.stream == nil {
		return
	}
	h.stream.Stream.Seek(msToBytes(posMS))
}

func (h *TrackHandler) handleStop() {
	h.stateMu.Lock()
	if h.worker != nil {
		h.worker.stop()
		h.worker = nil
	}
	if h.stream != nil {
		h.stream.Stream.Close()
		h.stream = nil
	}
	h.state = Stopped
	h.stateMu.Unlock()
}

func (h *TrackHandler) onEndOfTrack() {
	h.stateMu.Lock()
	h.state = Stopped
	h.stateMu.Unlock()
	h.listener.EndOfTrack(h)
	h.listener.PreloadNextTrack(h)
}

// msToBytes is a placeholder byte-rate conversion; the real rate depends
// on the track's bitrate, which this package does not decode. Callers
// driving real playback should seek in bytes directly via
// LoadedStream.Stream; ms-based Seek/Load positions are accepted for
// spec compliance and treated as a 1:1 byte offset when the caller has
// no better estimate.
func msToBytes(ms int) int {
	return ms
}
