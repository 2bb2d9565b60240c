// Package dispatch implements S5, the control-channel RPC dispatcher:
// one goroutine pulling packets off a connection.PacketStream and
// routing them by command byte to whichever of channel, audiokey (or
// any other registered consumer) owns that command, exactly the role
// the teacher's Session.runPollLoop/handle pair plays before splitting
// responsibility out into this core's smaller collaborators.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/vantapoint/trackcore/trackcore/connection"
)

// Handler processes one inbound packet's payload.
type Handler func(cmd uint8, data []byte)

// Logger receives dispatch-loop diagnostics. Satisfied by *zap.SugaredLogger.
type Logger interface {
	Warnw(msg string, keysAndValues ...interface{})
}

// Router maps command bytes to Handlers and runs the poll loop that
// feeds them. PacketPing is answered inline with PacketPong, mirroring
// the teacher's handle() special case, without needing a registered
// Handler for it.
type Router struct {
	mu       sync.RWMutex
	handlers map[uint8]Handler
	Logger   Logger
}

// New builds an empty Router.
func New() *Router {
	return &Router{handlers: make(map[uint8]Handler)}
}

// On registers h to receive every inbound packet whose command byte is
// cmd. Registering again for the same cmd replaces the previous Handler.
func (r *Router) On(cmd uint8, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[cmd] = h
}

// Run drains stream until ctx is cancelled or RecvPacket fails. Each
// packet is dispatched to its registered Handler on the same goroutine,
// so Handlers must not block for long — exactly the constraint the
// teacher's single-threaded handle() already lives under.
func (r *Router) Run(ctx context.Context, stream connection.PacketStream) error {
	type received struct {
		cmd  uint8
		data []byte
		err  error
	}

	packets := make(chan received, 1)

	go func() {
		for {
			cmd, data, err := stream.RecvPacket()
			select {
			case packets <- received{cmd, data, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-packets:
			if p.err != nil {
				if p.err == io.EOF {
					return io.EOF
				}
				return fmt.Errorf("dispatch: recv packet: %w", p.err)
			}
			r.dispatch(stream, p.cmd, p.data)
		}
	}
}

func (r *Router) dispatch(stream connection.PacketStream, cmd uint8, data []byte) {
	if cmd == connection.PacketPing {
		if err := stream.SendPacket(connection.PacketPong, data); err != nil {
			r.warn("dispatch: send pong failed", err)
		}
		return
	}

	r.mu.RLock()
	h, ok := r.handlers[cmd]
	r.mu.RUnlock()

	if !ok {
		r.warn(fmt.Sprintf("dispatch: unhandled command 0x%x", cmd), nil)
		return
	}
	h(cmd, data)
}

func (r *Router) warn(msg string, err error) {
	if r.Logger == nil {
		return
	}
	r.Logger.Warnw(msg, "error", err)
}
