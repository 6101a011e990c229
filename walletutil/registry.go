package walletutil

import (
	"encoding/hex"
	"sync"

	bolt "github.com/rivine/bbolt"

	"github.com/raiblocks/walletcore/coretypes"
	"github.com/raiblocks/walletcore/crypto"
	"github.com/raiblocks/walletcore/persist"
	"github.com/raiblocks/walletcore/pow"
	"github.com/raiblocks/walletcore/wallet"
)

// Wallets is the registry of every wallet sub-namespace sharing one
// database handle, ledger, republisher, and work pool. It owns the
// action serializer each wallet's *Sync methods run through.
type Wallets struct {
	db          *persist.Database
	ledger      coretypes.Ledger
	republisher coretypes.Republisher
	pool        *pow.Pool
	log         *persist.Logger

	mu          sync.RWMutex
	wallets     map[wallet.WalletID]*wallet.Wallet
	serializers map[wallet.WalletID]*ActionSerializer
}

// NewWallets creates an empty registry. log may be nil.
func NewWallets(db *persist.Database, ledger coretypes.Ledger, republisher coretypes.Republisher, pool *pow.Pool, log *persist.Logger) *Wallets {
	return &Wallets{
		db:          db,
		ledger:      ledger,
		republisher: republisher,
		pool:        pool,
		log:         log,
		wallets:     make(map[wallet.WalletID]*wallet.Wallet),
		serializers: make(map[wallet.WalletID]*ActionSerializer),
	}
}

// Create provisions a fresh wallet for id inside tx and registers it.
func (r *Wallets) Create(tx *bolt.Tx, id wallet.WalletID, representative crypto.PublicKey) (*wallet.Wallet, error) {
	store, err := wallet.Create(tx, id, representative)
	if err != nil {
		return nil, err
	}
	return r.register(id, store), nil
}

// Open loads an existing wallet for id from tx and registers it.
func (r *Wallets) Open(tx *bolt.Tx, id wallet.WalletID) (*wallet.Wallet, error) {
	store, err := wallet.Open(tx, id)
	if err != nil {
		return nil, err
	}
	return r.register(id, store), nil
}

func (r *Wallets) register(id wallet.WalletID, store *wallet.Store) *wallet.Wallet {
	w := wallet.New(r.db, store, r.ledger, r.republisher, r.pool, r.log)
	serializer := NewActionSerializer(nil)
	w.SetQueuer(serializer)

	r.mu.Lock()
	r.wallets[id] = w
	r.serializers[id] = serializer
	r.mu.Unlock()
	return w
}

// DB returns the shared database handle wallets in this registry are
// stored in, for collaborators (the pending scan) that need their own
// transactions.
func (r *Wallets) DB() *persist.Database {
	return r.db
}

// Get returns the registered wallet for id, if any.
func (r *Wallets) Get(id wallet.WalletID) (*wallet.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	return w, ok
}

// Destroy drops id's on-disk sub-namespace and removes it from the
// registry.
func (r *Wallets) Destroy(tx *bolt.Tx, id wallet.WalletID) error {
	r.mu.Lock()
	w, ok := r.wallets[id]
	r.mu.Unlock()
	if !ok {
		return wallet.ErrStoreOpenFailed
	}
	if err := w.Store().Destroy(tx); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.wallets, id)
	delete(r.serializers, id)
	r.mu.Unlock()
	return nil
}

// snapshot returns the currently registered wallets, safe to range over
// without holding the registry lock across store or ledger calls.
func (r *Wallets) snapshot() []*wallet.Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*wallet.Wallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		out = append(out, w)
	}
	return out
}

// FindByAccount returns the wallet holding pub as one of its accounts, if
// any is currently registered. It does not require that wallet to be
// unlocked.
func (r *Wallets) FindByAccount(tx *bolt.Tx, pub crypto.PublicKey) (*wallet.Wallet, bool, error) {
	for _, w := range r.snapshot() {
		ok, err := w.Store().Has(tx, pub)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return w, true, nil
		}
	}
	return nil, false, nil
}

// BackupAll exports every registered wallet's full entry set, keyed by
// the wallet's hex identifier, mirroring the original implementation's
// combined wallet backup tooling alongside the per-store serialize_json.
func (r *Wallets) BackupAll(tx *bolt.Tx) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	for id, w := range r.idMap() {
		blob, err := w.Store().SerializeJSON(tx)
		if err != nil {
			return nil, err
		}
		out[hex.EncodeToString(id[:])] = blob
	}
	return out, nil
}

func (r *Wallets) idMap() map[wallet.WalletID]*wallet.Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[wallet.WalletID]*wallet.Wallet, len(r.wallets))
	for id, w := range r.wallets {
		out[id] = w
	}
	return out
}
