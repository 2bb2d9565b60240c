package decrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vantapoint/trackcore/trackcore/errs"
)

var testKey = []byte("0123456789abcdef")

// wholeFileDecrypt is the reference procedure P3 in spec.md §8 measures
// chunked decryption against: one CTR stream over the whole file, seeded
// from the same base IV, with no per-chunk re-keying.
func wholeFileDecrypt(t *testing.T, key, ciphertext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	iv := new(big.Int).SetBytes(audioAESIV)
	ivBytes := make([]byte, aesBlockSize)
	iv.FillBytes(ivBytes)

	stream := cipher.NewCTR(block, ivBytes)
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext
}

func TestDecryptChunkMatchesWholeFileReference(t *testing.T) {
	d, err := New(testKey)
	require.NoError(t, err)

	total := CHUNK_SIZE*2 + 777
	ciphertext := make([]byte, total)
	for i := range ciphertext {
		ciphertext[i] = byte(i % 251)
	}

	want := wholeFileDecrypt(t, testKey, ciphertext)

	got := make([]byte, total)
	for idx, start := 0, 0; start < total; idx, start = idx+1, start+CHUNK_SIZE {
		end := start + CHUNK_SIZE
		if end > total {
			end = total
		}
		require.NoError(t, d.DecryptChunk(idx, ciphertext[start:end], got[start:end]))
	}

	require.Equal(t, want, got)
}

func TestDecryptChunkIsDeterministic(t *testing.T) {
	d, err := New(testKey)
	require.NoError(t, err)

	ciphertext := make([]byte, CHUNK_SIZE)
	for i := range ciphertext {
		ciphertext[i] = byte(i)
	}

	a := make([]byte, CHUNK_SIZE)
	b := make([]byte, CHUNK_SIZE)
	require.NoError(t, d.DecryptChunk(5, ciphertext, a))
	require.NoError(t, d.DecryptChunk(5, ciphertext, b))
	require.Equal(t, a, b)
}

func TestDecryptChunkSizeMismatch(t *testing.T) {
	d, err := New(testKey)
	require.NoError(t, err)

	err = d.DecryptChunk(0, make([]byte, 10), make([]byte, 11))
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrInvalidChunkSize))
}
