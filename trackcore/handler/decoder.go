package handler

import (
	"io"
	"sync"

	"github.com/vantapoint/trackcore/trackcore/stream"
)

// decoderWorker is the "decoder worker" spec.md §4.6 says the handler
// owns: it drains a ChunkedStream on its own goroutine while Playing,
// pausing without losing its position, and reports end-of-track once.
// Actual codec decoding is out of scope (spec.md §1's Non-goals), so
// this worker's job ends at consuming bytes off the stream, exactly the
// boundary the original's PlayerRunner crosses into an external output
// mixer.
type decoderWorker struct {
	stream *stream.ChunkedStream
	onEOF  func()

	mu      sync.Mutex
	cond    *sync.Cond
	playing bool
	stopped bool
	pos     int
}

func newDecoderWorker(s *stream.ChunkedStream, onEOF func()) *decoderWorker {
	w := &decoderWorker{stream: s, onEOF: onEOF}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *decoderWorker) run() {
	buf := make([]byte, 32*1024)
	for {
		w.mu.Lock()
		for !w.playing && !w.stopped {
			w.cond.Wait()
		}
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		n, err := w.stream.Read(buf)

		w.mu.Lock()
		w.pos += n
		stopped := w.stopped
		w.mu.Unlock()

		if err != nil {
			if err == io.EOF && !stopped && w.onEOF != nil {
				w.onEOF()
			}
			return
		}
	}
}

func (w *decoderWorker) play() {
	w.mu.Lock()
	w.playing = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *decoderWorker) pause() {
	w.mu.Lock()
	w.playing = false
	w.mu.Unlock()
}

func (w *decoderWorker) stop() {
	w.mu.Lock()
	w.stopped = true
	w.playing = false
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *decoderWorker) positionMS() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}
