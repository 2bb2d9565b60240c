package metadata

import (
	"encoding/hex"
	"math/big"
	"strings"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// TrackID is the opaque 16-byte identifier (the "gid") that names a
// playable track or episode, plus its optional base-62 textual form.
// Two TrackIDs are equal iff their gid bytes are equal.
type TrackID struct {
	gid [16]byte
}

// NewTrackID builds a TrackID from raw gid bytes. Shorter inputs are
// left-padded with zeroes, matching the teacher's own Convert62 padding.
func NewTrackID(gid []byte) TrackID {
	var id TrackID
	if len(gid) >= 16 {
		copy(id.gid[:], gid[len(gid)-16:])
	} else {
		copy(id.gid[16-len(gid):], gid)
	}
	return id
}

// ParseBase62 decodes a Spotify-style base-62 id into a TrackID.
func ParseBase62(id string) TrackID {
	base := big.NewInt(62)
	n := &big.Int{}
	for _, c := range []byte(id) {
		d := big.NewInt(int64(strings.IndexByte(base62Alphabet, c)))
		n.Mul(n, base)
		n.Add(n, d)
	}
	return NewTrackID(n.Bytes())
}

// Gid returns the raw 16-byte identifier.
func (t TrackID) Gid() []byte {
	return t.gid[:]
}

// Hex returns the identifier as a lowercase hex string, convenient as a
// cache key.
func (t TrackID) Hex() string {
	return hex.EncodeToString(t.gid[:])
}

// Base62 renders the identifier in Spotify's fixed-width base-62 form.
func (t TrackID) Base62() string {
	bi := new(big.Int).SetBytes(t.gid[:])
	base := big.NewInt(62)
	rem := new(big.Int)
	zero := big.NewInt(0)

	var b strings.Builder
	for bi.Cmp(zero) > 0 {
		bi.DivMod(bi, base, rem)
		b.WriteByte(base62Alphabet[rem.Uint64()])
	}

	out := []byte(b.String())
	for len(out) < 22 {
		out = append(out, '0')
	}
	reverse(out)
	return string(out)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Equal reports whether two TrackIDs name the same gid.
func (t TrackID) Equal(other TrackID) bool {
	return t.gid == other.gid
}

func (t TrackID) String() string {
	return t.Base62()
}
