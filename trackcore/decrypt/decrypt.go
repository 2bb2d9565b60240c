// Package decrypt implements C1, the Chunk Decryptor: a stateless,
// parallelizable per-chunk AES decryption keyed by (file-key, chunk
// index). Ported from the teacher's player.AudioFileDecrypter, adjusted
// from its 4096-byte-at-a-time re-keying (an artifact of fetching
// kChunkSize in 32768-word units) to a single CTR pass per chunk over
// spec.md's 131072-byte CHUNK_SIZE; the resulting keystream is identical
// because cipher.Stream's CTR implementation already increments the
// counter every 16-byte AES block.
package decrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"math/big"

	"github.com/vantapoint/trackcore/trackcore/errs"
)

// CHUNK_SIZE is the fixed chunk size in bytes (spec.md §3): 128 KiB.
const CHUNK_SIZE = 131072

const aesBlockSize = 16

// audioAESIV is the fixed base IV the service's chunk-encryption scheme
// starts every file's counter from.
var audioAESIV = []byte{0x72, 0xe0, 0x67, 0xfb, 0xdd, 0xcb, 0xcf, 0x77, 0xeb, 0xe8, 0xbc, 0x64, 0x3f, 0x63, 0x0d, 0x93}

// Decryptor decrypts chunks for a single file key. It holds no per-call
// state, so one Decryptor can service concurrent DecryptChunk calls for
// different chunk indices of the same file.
type Decryptor struct {
	block cipher.Block
}

// New builds a Decryptor for the given 16-byte file key.
func New(key []byte) (*Decryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Decryptor{block: block}, nil
}

// DecryptChunk decrypts ciphertext for the chunk at index into plaintext
// (which must be exactly len(ciphertext) long). The counter for chunk i
// starts at the base IV incremented by (i*CHUNK_SIZE)/16 16-byte AES
// blocks, as spec.md §4.1 describes.
func (d *Decryptor) DecryptChunk(index int, ciphertext, plaintext []byte) error {
	if len(plaintext) != len(ciphertext) {
		return errs.ErrInvalidChunkSize
	}

	iv := new(big.Int).SetBytes(audioAESIV)
	blockOffset := big.NewInt(int64(index) * int64(CHUNK_SIZE) / int64(aesBlockSize))
	iv.Add(iv, blockOffset)

	ivBytes := make([]byte, aesBlockSize)
	iv.FillBytes(ivBytes)

	stream := cipher.NewCTR(d.block, ivBytes)
	stream.XORKeyStream(plaintext, ciphertext)
	return nil
}
