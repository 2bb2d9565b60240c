package channel

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	sent [][]byte
}

func (f *fakeStream) SendPacket(cmd uint8, data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeStream) RecvPacket() (uint8, []byte, error) {
	return 0, nil, nil
}

type fakeSink struct {
	chunks  map[int][]byte
	headers map[byte][]byte
	errCode int
}

func newFakeSink() *fakeSink {
	return &fakeSink{chunks: map[int][]byte{}, headers: map[byte][]byte{}}
}

func (s *fakeSink) WriteChunk(index int, data []byte, cached bool) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.chunks[index] = cp
	return nil
}

func (s *fakeSink) WriteHeader(id byte, data []byte, cached bool) error {
	s.headers[id] = data
	return nil
}

func (s *fakeSink) StreamError(code int) {
	s.errCode = code
}

func TestRequestChunkSendsWireRequest(t *testing.T) {
	stream := &fakeStream{}
	c := New(stream)
	sink := newFakeSink()

	fileID := make([]byte, 20)
	require.NoError(t, c.RequestChunk(fileID, 0, sink))
	require.Len(t, stream.sent, 1)

	req := stream.sent[0]
	gotNum := binary.BigEndian.Uint16(req[:2])
	require.Equal(t, uint16(0), gotNum)
}

func TestHandlePacketAccumulatesChunkUntilEOFMarker(t *testing.T) {
	stream := &fakeStream{}
	c := New(stream)
	sink := newFakeSink()

	fileID := make([]byte, 20)
	require.NoError(t, c.RequestChunk(fileID, 5, sink))

	num := uint16(0)
	header := make([]byte, 2)
	binary.BigEndian.PutUint16(header, num)

	// End header parsing immediately (a packet with no header records:
	// binary.Read of the length fails once the reader is empty, which
	// the Channel treats as "switch to data mode").
	c.HandlePacket(header)

	payload1 := append(append([]byte{}, header...), []byte("abcd")...)
	c.HandlePacket(payload1)

	payload2 := append(append([]byte{}, header...), []byte("efgh")...)
	c.HandlePacket(payload2)

	// Empty data packet signals EOF for this chunk.
	c.HandlePacket(header)

	require.Equal(t, []byte("abcdefgh"), sink.chunks[5])
}

func TestHandleChannelErrorReportsAndReleases(t *testing.T) {
	stream := &fakeStream{}
	c := New(stream)
	sink := newFakeSink()

	fileID := make([]byte, 20)
	require.NoError(t, c.RequestChunk(fileID, 0, sink))

	c.HandleChannelError(0, 7, sink)
	require.Equal(t, 7, sink.errCode)

	c.mu.Lock()
	_, stillPresent := c.channels[0]
	c.mu.Unlock()
	require.False(t, stillPresent)
}
