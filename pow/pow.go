// Package pow implements the wallet's proof-of-work pool: a multi-threaded
// miner that finds a 64-bit nonce whose keyed hash with a root falls below
// a difficulty threshold known to every peer on the network.
package pow

import (
	"encoding/binary"

	"github.com/raiblocks/walletcore/crypto"
)

// Threshold is the 64-bit publication difficulty every peer must agree on
// bit-for-bit. It is interpreted the same way a mined digest is: as a
// little-endian uint64, a lower digest meaning harder work.
const Threshold uint64 = 0xffffffc000000000

// Validate reports whether nonce is valid proof of work for root: whether
// the little-endian uint64 interpretation of BLAKE2b-8(nonce || root) is
// less than Threshold.
func Validate(root crypto.Hash, nonce uint64) bool {
	return digest(root, nonce) < Threshold
}

// digest computes BLAKE2b-8(nonce || root) and interprets it as a
// little-endian uint64, per the wire format both peers must agree on.
func digest(root crypto.Hash, nonce uint64) uint64 {
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	sum := crypto.HashN(8, nonceBytes[:], root[:])
	return binary.LittleEndian.Uint64(sum)
}
