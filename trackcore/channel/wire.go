package channel

import (
	"bytes"
	"encoding/binary"
)

// buildAudioChunkRequest frames a chunk-fetch request for the given
// channel, file id, and byte range, exactly as the teacher's
// buildAudioChunkRequest does. The range is expressed in 4-byte words
// on the wire, matching the service's chunk-request protocol.
func buildAudioChunkRequest(channelNum uint16, fileID []byte, startWord, endWord uint32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, channelNum)
	binary.Write(buf, binary.BigEndian, uint8(0x0))
	binary.Write(buf, binary.BigEndian, uint8(0x1))
	binary.Write(buf, binary.BigEndian, uint16(0x0000))
	binary.Write(buf, binary.BigEndian, uint32(0x00000000))
	binary.Write(buf, binary.BigEndian, uint32(0x00009C40))
	binary.Write(buf, binary.BigEndian, uint32(0x00020000))
	buf.Write(fileID)
	binary.Write(buf, binary.BigEndian, startWord)
	binary.Write(buf, binary.BigEndian, endWord)
	return buf.Bytes()
}
