package wallet

import (
	"errors"

	bolt "github.com/rivine/bbolt"

	"github.com/raiblocks/walletcore/coretypes"
	"github.com/raiblocks/walletcore/crypto"
	"github.com/raiblocks/walletcore/persist"
	"github.com/raiblocks/walletcore/pow"
)

var (
	// ErrInsufficientBalance is returned by SendAction when amount exceeds
	// the source account's ledger balance.
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")

	// ErrNoChain is returned by SendAction/ChangeAction when the account
	// named has no head block yet.
	ErrNoChain = errors.New("wallet: account has no chain")

	// ErrNotPending is returned by ReceiveAction when the send block's hash
	// is no longer marked pending in the ledger.
	ErrNotPending = errors.New("wallet: send block is not pending")
)

// ActionQueuer serializes one action at a time per account, honoring
// amount-descending priority among actions queued while an account is
// busy. It is implemented by a wallets registry; a Wallet with no queuer
// set runs *Sync actions inline.
type ActionQueuer interface {
	QueueWalletAction(account crypto.PublicKey, amount coretypes.Balance, action func())
}

// Wallet composes a key Store with the ledger and proof-of-work pool it
// needs to turn user intent into signed, published blocks.
type Wallet struct {
	db          *persist.Database
	store       *Store
	ledger      coretypes.Ledger
	republisher coretypes.Republisher
	pool        *pow.Pool
	log         *persist.Logger
	queuer      ActionQueuer
}

// New composes a Wallet from its store and collaborators. log may be nil.
func New(db *persist.Database, store *Store, ledger coretypes.Ledger, republisher coretypes.Republisher, pool *pow.Pool, log *persist.Logger) *Wallet {
	return &Wallet{db: db, store: store, ledger: ledger, republisher: republisher, pool: pool, log: log}
}

// SetQueuer installs the action serializer a registry uses to run this
// wallet's *Sync actions one at a time per account.
func (w *Wallet) SetQueuer(q ActionQueuer) {
	w.queuer = q
}

// Store returns the wallet's underlying key store, for registry-level
// operations (move, import, serialize) that act on it directly.
func (w *Wallet) Store() *Store {
	return w.store
}

// workFetch consults the cached work for account; if absent or stale
// against root, it blocks mining a fresh nonce. It never itself writes the
// cache — that happens afterwards, proactively, in workGenerate.
func (w *Wallet) workFetch(account crypto.PublicKey, root coretypes.BlockHash) (uint64, error) {
	var cached uint64
	var ok bool
	err := w.db.View(func(tx *bolt.Tx) error {
		var e error
		cached, ok, e = w.store.WorkGet(tx, account)
		if e == ErrAccountNotInWallet {
			return ErrAccountNotInWallet
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if ok && pow.Validate(crypto.Hash(root), cached) {
		return cached, nil
	}
	return w.pool.Generate(crypto.Hash(root)), nil
}

// workGenerate re-mines work for account's current root proactively after
// a block publishes, caching it only if the ledger's latest root still
// matches root — otherwise another block has already preempted it and the
// freshly mined nonce would already be stale.
func (w *Wallet) workGenerate(account crypto.PublicKey, root coretypes.BlockHash) {
	nonce := w.pool.Generate(crypto.Hash(root))
	err := w.db.Update(func(tx *bolt.Tx) error {
		latest, err := w.ledger.LatestRoot(account)
		if err != nil {
			return err
		}
		if latest != root {
			return nil
		}
		return w.store.WorkPut(tx, account, nonce)
	})
	if err != nil && w.log != nil {
		w.log.Printf("work cache update failed for %x: %v", account, err)
	}
}

// fetchUnlocked verifies the store is unlocked and returns account's
// private key.
func (w *Wallet) fetchUnlocked(account crypto.PublicKey) (crypto.SecretKey, error) {
	var prv crypto.SecretKey
	err := w.db.View(func(tx *bolt.Tx) error {
		ok, err := w.store.ValidPassword(tx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidPassword
		}
		prv, err = w.store.Fetch(tx, account)
		return err
	})
	return prv, err
}

// SendAction constructs, signs, and republishes a send block debiting
// amount from source's balance to dest. It requires the store to be
// unlocked and source to have an existing chain with sufficient balance.
func (w *Wallet) SendAction(source, dest crypto.PublicKey, amount coretypes.Balance) error {
	prv, err := w.fetchUnlocked(source)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(prv[:])

	info, err := w.ledger.AccountInfo(source)
	if err != nil {
		return err
	}
	if info.Head == (coretypes.BlockHash{}) {
		return ErrNoChain
	}
	if info.Balance.Cmp(&amount.Int) < 0 {
		return ErrInsufficientBalance
	}

	nonce, err := w.workFetch(source, info.Head)
	if err != nil {
		return err
	}

	var newBalance coretypes.Balance
	newBalance.Sub(&info.Balance.Int, &amount.Int)

	block := coretypes.Block{
		Type:        coretypes.BlockSend,
		Account:     source,
		Previous:    info.Head,
		Destination: dest,
		Balance:     newBalance,
		Work:        nonce,
	}
	block.Sign(prv)

	if err := w.republisher.ProcessReceiveRepublish(block, coretypes.RebroadcastImmediate); err != nil {
		return err
	}
	go w.workGenerate(source, block.Hash())
	return nil
}

// SendActionSync runs SendAction through the registry's per-account action
// serializer (if one is installed) and blocks for its result.
func (w *Wallet) SendActionSync(source, dest crypto.PublicKey, amount coretypes.Balance) error {
	if w.queuer == nil {
		return w.SendAction(source, dest, amount)
	}
	result := make(chan error, 1)
	w.queuer.QueueWalletAction(source, amount, func() {
		result <- w.SendAction(source, dest, amount)
	})
	return <-result
}

// ReceiveAction claims a pending send identified by sendHash on behalf of
// destination, signing with prv (the destination's private key, supplied
// by the caller so the pending scan does not need the store unlocked to
// drive this). If destination has no existing chain, an open block is
// produced instead of a receive block, using representative as the
// account's initial delegate.
func (w *Wallet) ReceiveAction(sendHash coretypes.BlockHash, destination crypto.PublicKey, prv crypto.SecretKey, representative crypto.PublicKey) error {
	pending, err := w.ledger.PendingExists(sendHash)
	if err != nil {
		return err
	}
	if !pending {
		return ErrNotPending
	}

	dest := destination
	info, err := w.ledger.AccountInfo(dest)
	if err != nil {
		return err
	}

	var block coretypes.Block
	var root coretypes.BlockHash
	if info.Head != (coretypes.BlockHash{}) {
		root = info.Head
		block = coretypes.Block{
			Type:     coretypes.BlockReceive,
			Account:  dest,
			Previous: info.Head,
			Source:   sendHash,
		}
	} else {
		root = coretypes.BlockHash(dest)
		block = coretypes.Block{
			Type:           coretypes.BlockOpen,
			Account:        dest,
			Source:         sendHash,
			Representative: representative,
		}
	}

	nonce, err := w.workFetch(dest, root)
	if err != nil {
		return err
	}
	block.Work = nonce
	block.Sign(prv)

	if err := w.republisher.ProcessReceiveRepublish(block, coretypes.RebroadcastNormal); err != nil {
		return err
	}
	go w.workGenerate(dest, block.Hash())
	return nil
}

// ReceiveActionSync runs ReceiveAction through the registry's per-account
// action serializer (if one is installed) and blocks for its result, with
// amount used for the serializer's amount-descending priority.
func (w *Wallet) ReceiveActionSync(sendHash coretypes.BlockHash, destination crypto.PublicKey, amount coretypes.Balance, prv crypto.SecretKey, representative crypto.PublicKey) error {
	if w.queuer == nil {
		return w.ReceiveAction(sendHash, destination, prv, representative)
	}
	result := make(chan error, 1)
	w.queuer.QueueWalletAction(destination, amount, func() {
		result <- w.ReceiveAction(sendHash, destination, prv, representative)
	})
	return <-result
}

// ChangeAction re-delegates source's voting weight to newRepresentative.
// It requires the store to be unlocked and source to have an existing
// chain.
func (w *Wallet) ChangeAction(source, newRepresentative crypto.PublicKey) error {
	prv, err := w.fetchUnlocked(source)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(prv[:])

	info, err := w.ledger.AccountInfo(source)
	if err != nil {
		return err
	}
	if info.Head == (coretypes.BlockHash{}) {
		return ErrNoChain
	}

	nonce, err := w.workFetch(source, info.Head)
	if err != nil {
		return err
	}

	block := coretypes.Block{
		Type:           coretypes.BlockChange,
		Account:        source,
		Previous:       info.Head,
		Representative: newRepresentative,
		Work:           nonce,
	}
	block.Sign(prv)

	if err := w.republisher.ProcessReceiveRepublish(block, coretypes.RebroadcastNormal); err != nil {
		return err
	}
	go w.workGenerate(source, block.Hash())
	return nil
}

// ChangeActionSync runs ChangeAction through the registry's per-account
// action serializer (if one is installed) and blocks for its result.
func (w *Wallet) ChangeActionSync(source, newRepresentative crypto.PublicKey) error {
	if w.queuer == nil {
		return w.ChangeAction(source, newRepresentative)
	}
	result := make(chan error, 1)
	w.queuer.QueueWalletAction(source, coretypes.Balance{}, func() {
		result <- w.ChangeAction(source, newRepresentative)
	})
	return <-result
}

// InitialPassword rekeys a freshly created (or freshly opened, still
// PDK-zero) wallet whose check value already validates to the canonical
// derivation of the empty passphrase, keeping on-disk invariants
// consistent instead of leaving the PDK=0 sentinel in place.
func (w *Wallet) InitialPassword() error {
	return w.db.Update(func(tx *bolt.Tx) error {
		if w.store.pdk.key != ([32]byte{}) {
			return nil
		}
		valid, err := w.store.ValidPassword(tx)
		if err != nil {
			return err
		}
		if !valid {
			return nil
		}
		return w.store.Rekey(tx, "")
	})
}
