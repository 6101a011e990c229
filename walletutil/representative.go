package walletutil

import (
	bolt "github.com/rivine/bbolt"

	"github.com/raiblocks/walletcore/crypto"
)

// ForEachRepresentative iterates every entry of every registered wallet
// and, for accounts whose ledger weight is non-zero, invokes fn with the
// account's public and private key. Wallets that are not currently
// unlocked are skipped with a log line rather than causing the whole
// enumeration to fail.
func (r *Wallets) ForEachRepresentative(tx *bolt.Tx, fn func(pub crypto.PublicKey, prv crypto.SecretKey)) error {
	for _, w := range r.snapshot() {
		store := w.Store()

		valid, err := store.ValidPassword(tx)
		if err != nil {
			return err
		}
		if !valid {
			if r.log != nil {
				r.log.Println("foreach_representative: skipping locked wallet")
			}
			continue
		}

		accounts, err := store.Accounts(tx)
		if err != nil {
			return err
		}
		for _, pub := range accounts {
			weight, err := r.ledger.Weight(pub)
			if err != nil {
				return err
			}
			if weight.Sign() == 0 {
				continue
			}
			prv, err := store.Fetch(tx, pub)
			if err != nil {
				return err
			}
			fn(pub, prv)
			crypto.SecureWipe(prv[:])
		}
	}
	return nil
}
