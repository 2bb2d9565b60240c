package audiokey

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vantapoint/trackcore/trackcore/connection"
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

func TestKeyRoundTrip(t *testing.T) {
	stream := &fakeStream{}
	p := New(stream)

	trackID := bytes16(0xAA)
	fileID := bytes16(0xBB)

	done := make(chan []byte, 1)
	go func() {
		key, err := p.Key(trackID, fileID)
		require.NoError(t, err)
		done <- key
	}()

	require.Eventually(t, func() bool { return len(stream.sent) == 1 }, time.Second, time.Millisecond)

	resp := make([]byte, 20)
	binary.BigEndian.PutUint32(resp[:4], 0) // first seq issued is 0
	wantKey := bytes16(0xCC)
	copy(resp[4:], wantKey)

	p.HandlePacket(connection.PacketAesKey, resp)

	select {
	case key := <-done:
		require.Equal(t, wantKey, key)
	case <-time.After(time.Second):
		t.Fatal("Key did not return after HandlePacket")
	}
}

func TestKeyErrorPropagates(t *testing.T) {
	stream := &fakeStream{}
	p := New(stream)

	done := make(chan error, 1)
	go func() {
		_, err := p.Key(bytes16(1), bytes16(2))
		done <- err
	}()

	require.Eventually(t, func() bool { return len(stream.sent) == 1 }, time.Second, time.Millisecond)

	errResp := make([]byte, 4)
	binary.BigEndian.PutUint32(errResp, 0)
	p.HandlePacket(connection.PacketAesKeyError, errResp)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Key did not return an error after HandlePacket")
	}
}

func TestUnknownSequenceIsDropped(t *testing.T) {
	stream := &fakeStream{}
	p := New(stream)

	resp := make([]byte, 20)
	binary.BigEndian.PutUint32(resp[:4], 999)
	require.NotPanics(t, func() { p.HandlePacket(connection.PacketAesKey, resp) })
}

func bytes16(b byte) []byte {
	out := make([]byte, 16)
	for i := range out {
		out[i] = b
	}
	return out
}
