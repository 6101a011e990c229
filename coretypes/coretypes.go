// Package coretypes defines the narrow interfaces and wire types the
// wallet core depends on from its external collaborators: the ledger/block
// store and the network rebroadcaster. Neither is implemented here — the
// wallet receives them as interfaces so it can be tested against in-memory
// fakes and so the ledger/node package never needs to import the wallet,
// breaking the cyclic dependency the original implementation had.
package coretypes

import (
	"math/big"

	"github.com/raiblocks/walletcore/crypto"
)

// BlockHash identifies a block, and also serves as a proof-of-work root.
type BlockHash = crypto.Hash

// Balance is a 128-bit unsigned account balance or vote weight.
type Balance struct {
	big.Int
}

// NewBalance constructs a Balance from a uint64 for convenience in tests
// and simple call sites.
func NewBalance(v uint64) Balance {
	var b Balance
	b.SetUint64(v)
	return b
}

// PendingEntry describes one outstanding send awaiting a receive/open.
type PendingEntry struct {
	Source      crypto.PublicKey
	Destination crypto.PublicKey
	Amount      Balance
}

// AccountInfo is the subset of ledger account metadata the wallet needs to
// construct a signed block.
type AccountInfo struct {
	Head    BlockHash
	Balance Balance
}

// RebroadcastPolicy tells the republish ingress how aggressively to gossip
// a freshly constructed block.
type RebroadcastPolicy int

const (
	// RebroadcastNormal rebroadcasts using the network's standard backoff.
	RebroadcastNormal RebroadcastPolicy = iota
	// RebroadcastImmediate rebroadcasts without delay, for user-initiated
	// sends where latency matters.
	RebroadcastImmediate
)

// Ledger is the read surface of the block store the wallet core depends
// on. It never validates consensus or mutates chain state itself; it only
// answers questions needed to build and route blocks.
type Ledger interface {
	// Latest returns the current head block hash for account, or the zero
	// hash if the account has no chain yet.
	Latest(account crypto.PublicKey) (BlockHash, error)

	// LatestRoot returns the work root for account: its head if present,
	// otherwise the account's own identifier (used for open blocks).
	LatestRoot(account crypto.PublicKey) (BlockHash, error)

	// AccountInfo returns head and balance metadata for account.
	AccountInfo(account crypto.PublicKey) (AccountInfo, error)

	// AccountBalance returns account's current confirmed balance.
	AccountBalance(account crypto.PublicKey) (Balance, error)

	// Weight returns account's total delegated voting weight.
	Weight(account crypto.PublicKey) (Balance, error)

	// PendingExists reports whether sendHash is still marked as an
	// unclaimed pending send.
	PendingExists(sendHash BlockHash) (bool, error)

	// PendingIterate calls fn once per pending entry in the ledger's
	// pending-block index, in unspecified order, stopping early if fn
	// returns an error.
	PendingIterate(fn func(sendHash BlockHash, entry PendingEntry) error) error
}

// Republisher is the ingress through which the wallet hands a newly
// constructed block to the ledger for validation and to the network layer
// for gossip.
type Republisher interface {
	// ProcessReceiveRepublish validates block against the ledger and, if
	// accepted, rebroadcasts it per policy.
	ProcessReceiveRepublish(block Block, policy RebroadcastPolicy) error
}
