package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// IVSize is the size, in bytes, of the stream IV: the first half of a
// wallet's salt.
const IVSize = 16

// Wrap XORs plain against an AES-256-CTR keystream seeded by (key, iv). It
// is its own inverse: Wrap(Wrap(p, key, iv), key, iv) == p.
func Wrap(plain []byte, key [EntropySize]byte, iv [IVSize]byte) Ciphertext {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		// key is always exactly 32 bytes; aes.NewCipher cannot fail here
		panic(err)
	}
	stream := cipher.NewCTR(block, iv[:])
	out := make([]byte, len(plain))
	stream.XORKeyStream(out, plain)
	return out
}

// Unwrap reverses Wrap; the operation is identical since it is a pure XOR
// stream cipher.
func Unwrap(wrapped Ciphertext, key [EntropySize]byte, iv [IVSize]byte) []byte {
	return Wrap(wrapped, key, iv)
}
