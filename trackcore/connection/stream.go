package connection

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// PacketStream is the control-channel abstraction the rest of the core
// dispatches commands over. A PacketStream may or may not be encrypted
// (see package crypto for a Shannon-cipher-backed implementation); the
// core never assumes either way.
type PacketStream interface {
	SendPacket(cmd uint8, data []byte) error
	RecvPacket() (cmd uint8, data []byte, err error)
}

// PlainConnection is unencrypted length-prefixed packet framing over a
// reader/writer pair: a 1-byte command, a 2-byte big-endian length, then
// the payload. It is the substrate a cipher layer like package crypto
// wraps, and is also usable directly for local testing.
type PlainConnection struct {
	Reader io.Reader
	Writer io.Writer
}

// MakePlainConnection builds a PlainConnection over the given reader and
// writer.
func MakePlainConnection(r io.Reader, w io.Writer) PlainConnection {
	return PlainConnection{Reader: r, Writer: w}
}

func (p PlainConnection) SendPacket(cmd uint8, data []byte) error {
	header := make([]byte, 3)
	header[0] = cmd
	binary.BigEndian.PutUint16(header[1:], uint16(len(data)))
	if _, err := p.Writer.Write(header); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := p.Writer.Write(data)
	return err
}

func (p PlainConnection) RecvPacket() (cmd uint8, data []byte, err error) {
	header := make([]byte, 3)
	if _, err = io.ReadFull(p.Reader, header); err != nil {
		return 0, nil, err
	}

	cmd = header[0]
	size := binary.BigEndian.Uint16(header[1:])
	if size == 0 {
		return cmd, nil, nil
	}

	data = make([]byte, size)
	_, err = io.ReadFull(p.Reader, data)
	return cmd, data, err
}

// tcpPacketStream is a PlainConnection bound directly to a net.Conn, used
// by the demo CLI to talk to a (possibly local, unauthenticated) test
// endpoint without a Shannon-secured session.
type tcpPacketStream struct {
	conn net.Conn
	PlainConnection
}

// DialPlain opens a TCP connection to addr and wraps it as an
// unencrypted PacketStream.
func DialPlain(addr string) (PacketStream, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connection: dial %s: %w", addr, err)
	}
	return &tcpPacketStream{conn: conn, PlainConnection: MakePlainConnection(conn, conn)}, nil
}

// Close closes the underlying TCP connection.
func (t *tcpPacketStream) Close() error {
	return t.conn.Close()
}
