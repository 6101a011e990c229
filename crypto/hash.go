package crypto

import "golang.org/x/crypto/blake2b"

// HashSize is the size, in bytes, of a root/block hash.
const HashSize = 32

// Hash is a 256-bit BLAKE2b digest.
type Hash [HashSize]byte

// HashBytes returns the BLAKE2b-256 digest of data.
func HashBytes(data ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only possible if a non-nil key longer than 64 bytes is given
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	var sum Hash
	copy(sum[:], h.Sum(nil))
	return sum
}

// HashN returns the n-byte BLAKE2b digest of data: BLAKE2b configured with
// an output length of n, which is not a prefix of a longer BLAKE2b digest.
// n must be between 1 and 64.
func HashN(n int, data ...[]byte) []byte {
	h, err := blake2b.New(n, nil)
	if err != nil {
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
