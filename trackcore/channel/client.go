package channel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/vantapoint/trackcore/trackcore/connection"
	"github.com/vantapoint/trackcore/trackcore/source"
)

// Client allocates numbered channels, dispatches chunk requests over a
// connection.PacketStream, and routes inbound PacketStreamChunkRes
// payloads back to the channel that requested them — the teacher's
// Player, trimmed to just its channel-table responsibilities (the audio
// key request/response half moved to package audiokey).
type Client struct {
	stream connection.PacketStream

	mu       sync.Mutex
	channels map[uint16]*Channel
	nextNum  uint16
}

// New builds a Client dispatching requests over stream.
func New(stream connection.PacketStream) *Client {
	return &Client{
		stream:   stream,
		channels: make(map[uint16]*Channel),
	}
}

func (c *Client) allocate() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := newChannel(c.nextNum, c.release)
	c.channels[ch.num] = ch
	c.nextNum++
	return ch
}

func (c *Client) release(ch *Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, ch.num)
}

// RequestChunk implements source.ChunkSource: it issues a chunk-fetch
// request for (fileID, index) and, as response packets arrive via
// HandlePacket, parses header records into sink.WriteHeader and
// accumulates audio bytes into one sink.WriteChunk call, exactly as the
// teacher's AudioFile.loadChunk / onChannelHeader / onChannelData do.
func (c *Client) RequestChunk(fileID []byte, index int, sink source.Sink) error {
	ch := c.allocate()

	var buf bytes.Buffer

	ch.onHeader = func(_ *Channel, id byte, r *bytes.Reader) uint16 {
		if id == 0x3 {
			// Track size header: read as-is and hand it to the sink so
			// feeder.StreamFeeder can size the buffer. The teacher reads
			// this itself; we let the caller decide what to do with it.
			sizeBytes := make([]byte, 4)
			if n, _ := r.Read(sizeBytes); n == 4 {
				sink.WriteHeader(id, sizeBytes, false)
			}
			return 4
		}
		return 0
	}

	ch.onData = func(_ *Channel, data []byte) uint16 {
		if data == nil {
			_ = sink.WriteChunk(index, buf.Bytes(), false)
			return 0
		}
		buf.Write(data)
		return 0
	}

	const wordsPerChunk = 32768 // 131072 bytes / 4
	startWord := uint32(index * wordsPerChunk)
	endWord := uint32((index + 1) * wordsPerChunk)

	req := buildAudioChunkRequest(ch.num, fileID, startWord, endWord)
	if err := c.stream.SendPacket(connection.PacketStreamChunk, req); err != nil {
		c.release(ch)
		return fmt.Errorf("channel: send chunk request: %w", err)
	}

	return nil
}

// HandlePacket routes one PacketStreamChunkRes payload (channel number
// prefix plus body) to the channel it names.
func (c *Client) HandlePacket(data []byte) {
	if len(data) < 2 {
		return
	}

	num := binary.BigEndian.Uint16(data[:2])

	c.mu.Lock()
	ch, ok := c.channels[num]
	c.mu.Unlock()

	if !ok {
		return
	}
	ch.handlePacket(data[2:])
}

// HandleChannelError reports a channel-level error (PacketChannelError /
// PacketChannelAbort) to the given channel's sink via StreamError, then
// releases it.
func (c *Client) HandleChannelError(num uint16, code int, sink source.Sink) {
	c.mu.Lock()
	ch, ok := c.channels[num]
	c.mu.Unlock()

	if ok {
		sink.StreamError(code)
		c.release(ch)
	}
}
