package crypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vantapoint/trackcore/trackcore/connection"
)

// secureStream is a connection.PacketStream secured with the Shannon
// stream cipher, given an already-established send/recv key pair. Unlike
// the teacher's shannonStream, it does not know how those keys were
// derived — Diffie-Hellman negotiation and login are external
// collaborators (spec.md §1); this type only needs 32 bytes in each
// direction.
type secureStream struct {
	sendNonce  uint32
	sendCipher shn_ctx
	recvCipher shn_ctx

	recvNonce uint32
	reader    io.Reader
	writer    io.Writer

	mu sync.Mutex
}

func setKey(ctx *shn_ctx, key []uint8) {
	shn_key(ctx, key, len(key))

	nonce := make([]byte, 4)
	binary.BigEndian.PutUint32(nonce, 0)
	shn_nonce(ctx, nonce, len(nonce))
}

// NewSecureStream wraps conn with Shannon encryption using the given
// send/recv keys, returning a connection.PacketStream.
func NewSecureStream(sendKey, recvKey []byte, conn connection.PlainConnection) connection.PacketStream {
	s := &secureStream{
		reader: conn.Reader,
		writer: conn.Writer,
	}

	setKey(&s.recvCipher, recvKey)
	setKey(&s.sendCipher, sendKey)

	return s
}

func (s *secureStream) SendPacket(cmd uint8, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.write(cipherPacket(cmd, data)); err != nil {
		return err
	}
	return s.finishSend()
}

func cipherPacket(cmd uint8, data []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, cmd)
	binary.Write(buf, binary.BigEndian, uint16(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func (s *secureStream) encrypt(p []byte) []byte {
	shn_encrypt(&s.sendCipher, p, len(p))
	return p
}

func (s *secureStream) decrypt(p []byte) []byte {
	shn_decrypt(&s.recvCipher, p, len(p))
	return p
}

func (s *secureStream) read(p []byte) (int, error) {
	n, err := s.reader.Read(p)
	s.decrypt(p[:n])
	return n, err
}

func (s *secureStream) write(p []byte) (int, error) {
	return s.writer.Write(s.encrypt(p))
}

func (s *secureStream) finishSend() error {
	const count = 4
	mac := make([]byte, count)
	shn_finish(&s.sendCipher, mac, count)

	s.sendNonce++
	nonce := make([]byte, 4)
	binary.BigEndian.PutUint32(nonce, s.sendNonce)
	shn_nonce(&s.sendCipher, nonce, len(nonce))

	_, err := s.writer.Write(mac)
	return err
}

func (s *secureStream) finishRecv() error {
	const count = 4
	mac := make([]byte, count)
	if _, err := io.ReadFull(s.reader, mac); err != nil {
		return err
	}

	mac2 := make([]byte, count)
	shn_finish(&s.recvCipher, mac2, count)
	if !bytes.Equal(mac, mac2) {
		return fmt.Errorf("crypto: received mac doesn't match")
	}

	s.recvNonce++
	nonce := make([]byte, 4)
	binary.BigEndian.PutUint32(nonce, s.recvNonce)
	shn_nonce(&s.recvCipher, nonce, len(nonce))
	return nil
}

func (s *secureStream) RecvPacket() (cmd uint8, data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := make([]byte, 1)
	if _, err = s.read(header); err != nil {
		return 0, nil, err
	}
	cmd = header[0]

	sizeBuf := make([]byte, 2)
	if _, err = s.read(sizeBuf); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint16(sizeBuf)

	if size > 0 {
		data = make([]byte, size)
		if _, err = s.read(data); err != nil {
			return 0, nil, err
		}
	}

	if err = s.finishRecv(); err != nil {
		return 0, nil, err
	}

	return cmd, data, nil
}
