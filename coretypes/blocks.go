package coretypes

import (
	"encoding/binary"

	"github.com/raiblocks/walletcore/crypto"
)

// BlockType discriminates the four state transitions a wallet can sign.
type BlockType int

const (
	// BlockSend debits an account's balance and names a destination.
	BlockSend BlockType = iota
	// BlockReceive credits an account from a specific send block.
	BlockReceive
	// BlockOpen is the first block on a new account's chain, simultaneously
	// receiving funds and naming a representative.
	BlockOpen
	// BlockChange re-delegates an account's voting weight with no transfer
	// of funds.
	BlockChange
)

// Block is a signed state transition ready for submission to the ledger.
// Only the fields that Type's SigningData covers (plus Account, Work and
// Signature) are meaningful; the rest are left zero.
type Block struct {
	Type BlockType

	Account        crypto.PublicKey
	Previous       BlockHash // zero for Open
	Destination    crypto.PublicKey
	Balance        Balance
	Source         BlockHash // the send block's hash, for Receive/Open
	Representative crypto.PublicKey

	Work      uint64
	Signature crypto.Signature
}

// Root returns the proof-of-work root for this block: its Previous hash,
// or the Account identifier itself for an Open block with no prior chain.
func (b Block) Root() BlockHash {
	if b.Type == BlockOpen {
		return BlockHash(b.Account)
	}
	return b.Previous
}

// SigningData returns the bytes the wallet signs and the network verifies
// over, binding every field relevant to the block's type.
func (b Block) SigningData() []byte {
	var work [8]byte
	binary.LittleEndian.PutUint64(work[:], b.Work)

	switch b.Type {
	case BlockSend:
		return concat(b.Previous[:], b.Destination[:], b.Balance.Bytes(), work[:])
	case BlockReceive:
		return concat(b.Previous[:], b.Source[:], work[:])
	case BlockOpen:
		return concat(b.Source[:], b.Representative[:], b.Account[:], work[:])
	case BlockChange:
		return concat(b.Previous[:], b.Representative[:], work[:])
	default:
		panic("coretypes: unknown block type")
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Sign signs the block's SigningData with sk and sets Signature.
func (b *Block) Sign(sk crypto.SecretKey) {
	b.Signature = crypto.Sign(b.SigningData(), sk)
}

// Hash returns the block's identifying hash: BLAKE2b of its signing data.
func (b Block) Hash() BlockHash {
	return crypto.HashBytes(b.SigningData())
}
