package crypto

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vantapoint/trackcore/trackcore/connection"
)

func TestSecureStreamRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientSend := make([]byte, 32)
	clientRecv := make([]byte, 32)
	for i := range clientSend {
		clientSend[i] = byte(i)
		clientRecv[i] = byte(255 - i)
	}

	client := NewSecureStream(clientSend, clientRecv, connection.MakePlainConnection(clientConn, clientConn))
	server := NewSecureStream(clientRecv, clientSend, connection.MakePlainConnection(serverConn, serverConn))

	done := make(chan error, 1)
	go func() {
		done <- client.SendPacket(0x09, []byte("hello chunk"))
	}()

	cmd, data, err := server.RecvPacket()
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Equal(t, uint8(0x09), cmd)
	require.Equal(t, []byte("hello chunk"), data)
}

func TestSecureStreamRejectsTamperedMac(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	sendKey := make([]byte, 32)
	recvKey := make([]byte, 32)
	for i := range sendKey {
		sendKey[i] = byte(i)
		recvKey[i] = byte(i + 1)
	}

	wrongKey := make([]byte, 32)
	for i := range wrongKey {
		wrongKey[i] = byte(255 - i)
	}

	client := NewSecureStream(sendKey, recvKey, connection.MakePlainConnection(clientConn, clientConn))
	// Server's recv key does not match the client's send key, so the MAC will not verify.
	server := NewSecureStream(recvKey, wrongKey, connection.MakePlainConnection(serverConn, serverConn))

	go client.SendPacket(0x04, []byte("ping"))

	_, _, err := server.RecvPacket()
	require.Error(t, err)
}
