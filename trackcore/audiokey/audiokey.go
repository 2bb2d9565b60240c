// Package audiokey provides the audio decryption key needed by package
// decrypt (spec.md §4.1's "externally supplied" key), split out of the
// teacher's Player god-object so the key-request/response RPC has its
// own home independent of chunk fetching.
package audiokey

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/vantapoint/trackcore/trackcore/connection"
)

// Provider obtains the AES key for a (trackID, fileID) pair. decrypt.New
// consumes whatever key it returns.
type Provider interface {
	Key(trackID, fileID []byte) ([]byte, error)
}

// ChannelProvider requests keys over a connection.PacketStream and
// correlates responses by a locally-generated sequence number, exactly
// as the teacher's loadTrackKey/HandleCmd pair does — just without the
// Mercury-derived sequence counter, since that collaborator stays out of
// scope here.
type ChannelProvider struct {
	stream connection.PacketStream

	mu      sync.Mutex
	nextSeq uint32
	pending sync.Map // uint32 -> chan result
}

type result struct {
	key []byte
	err error
}

// New builds a ChannelProvider issuing key requests over stream.
func New(stream connection.PacketStream) *ChannelProvider {
	return &ChannelProvider{stream: stream}
}

// Key sends a key request for (trackID, fileID) and blocks until the
// matching response arrives via HandlePacket.
func (p *ChannelProvider) Key(trackID, fileID []byte) ([]byte, error) {
	p.mu.Lock()
	seq := p.nextSeq
	p.nextSeq++
	p.mu.Unlock()

	ch := make(chan result, 1)
	p.pending.Store(seq, ch)
	defer p.pending.Delete(seq)

	seqBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBytes, seq)

	req := buildKeyRequest(seqBytes, trackID, fileID)
	if err := p.stream.SendPacket(connection.PacketRequestKey, req); err != nil {
		return nil, fmt.Errorf("audiokey: send key request: %w", err)
	}

	r := <-ch
	return r.key, r.err
}

// HandlePacket routes one inbound PacketAesKey / PacketAesKeyError
// payload to the Key call awaiting it. Unrecognized sequence numbers
// (a response for a request this provider never made, or one whose Key
// call has already returned) are silently dropped, matching the teacher.
func (p *ChannelProvider) HandlePacket(cmd uint8, data []byte) {
	switch cmd {
	case connection.PacketAesKey:
		if len(data) < 20 {
			return
		}
		var seq uint32
		binary.Read(bytes.NewReader(data[:4]), binary.BigEndian, &seq)

		if ch, ok := p.pending.Load(seq); ok {
			key := make([]byte, 16)
			copy(key, data[4:20])
			ch.(chan result) <- result{key: key}
		}

	case connection.PacketAesKeyError:
		if len(data) < 4 {
			return
		}
		var seq uint32
		binary.Read(bytes.NewReader(data[:4]), binary.BigEndian, &seq)

		if ch, ok := p.pending.Load(seq); ok {
			ch.(chan result) <- result{err: fmt.Errorf("audiokey: key request rejected: %x", data)}
		}
	}
}

func buildKeyRequest(seq, trackID, fileID []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Write(fileID)
	buf.Write(trackID)
	buf.Write(seq)
	binary.Write(buf, binary.BigEndian, uint16(0x0000))
	return buf.Bytes()
}
