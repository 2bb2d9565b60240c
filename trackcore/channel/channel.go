// Package channel is the concrete realization of the "channel provider"
// half of C2 (spec.md §4.2): the chunked request/response protocol over
// the service's control channel that spec.md §1(a) calls out as one of
// the two hard protocol pieces of this repository (the other being
// Mercury metadata framing, which stays an external collaborator).
//
// Ported from the teacher's player.Channel and player.Player's channel
// table, split out of the old Player god-object so this package only
// does channel multiplexing and chunk-request framing.
package channel

import (
	"bytes"
	"encoding/binary"
)

type headerFunc func(ch *Channel, id byte, data *bytes.Reader) uint16
type dataFunc func(ch *Channel, data []byte) uint16
type releaseFunc func(ch *Channel)

// Channel is one numbered, short-lived multiplexed request on the
// control channel. It starts in header mode, parsing (id, length, bytes)
// header records out of the first packets it receives, then switches to
// data mode once onData is set, forwarding every subsequent packet
// straight to onData until an empty packet (the teacher's "EOF marker")
// arrives.
type Channel struct {
	num       uint16
	dataMode  bool
	onHeader  headerFunc
	onData    dataFunc
	onRelease releaseFunc
}

func newChannel(num uint16, release releaseFunc) *Channel {
	return &Channel{num: num, onRelease: release}
}

// Num returns the channel's wire number.
func (c *Channel) Num() uint16 {
	return c.num
}

// handlePacket feeds one inbound packet payload (already stripped of its
// channel-number prefix) through header parsing or straight to onData,
// depending on the channel's current mode. This is the header/body
// overlap spec.md §9's design notes warn about: header records and
// chunk-0 audio bytes share the same channel payload, so header fields
// must be parsed out before the remaining bytes are treated as audio.
func (c *Channel) handlePacket(data []byte) {
	r := bytes.NewReader(data)

	if !c.dataMode {
		for {
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				break
			}
			if length == 0 {
				continue
			}

			var headerID uint8
			binary.Read(r, binary.BigEndian, &headerID)

			read := uint16(0)
			if c.onHeader != nil {
				read = c.onHeader(c, headerID, r)
			}

			// Consume whatever the header handler didn't read.
			remaining := int(length) - 1 - int(read)
			if remaining > 0 {
				discard(r, remaining)
			}
		}

		if c.onData != nil {
			c.dataMode = true
		} else if c.onRelease != nil {
			c.onRelease(c)
		}
		return
	}

	if len(data) == 0 {
		if c.onData != nil {
			c.onData(c, nil)
		}
		if c.onRelease != nil {
			c.onRelease(c)
		}
		return
	}

	if c.onData != nil {
		c.onData(c, data)
	}
}

func discard(r *bytes.Reader, n int) {
	buf := make([]byte, n)
	r.Read(buf)
}
