package walletutil

import (
	"os"
	"path/filepath"
	"testing"

	bolt "github.com/rivine/bbolt"

	"github.com/raiblocks/walletcore/build"
	"github.com/raiblocks/walletcore/coretypes"
	"github.com/raiblocks/walletcore/crypto"
	"github.com/raiblocks/walletcore/persist"
	"github.com/raiblocks/walletcore/pow"
	"github.com/raiblocks/walletcore/wallet"
)

// stubLedger satisfies coretypes.Ledger with no accounts and nothing
// pending, enough to exercise the registry without a real node.
type stubLedger struct{}

func (stubLedger) Latest(crypto.PublicKey) (coretypes.BlockHash, error)     { return coretypes.BlockHash{}, nil }
func (stubLedger) LatestRoot(account crypto.PublicKey) (coretypes.BlockHash, error) {
	return coretypes.BlockHash(account), nil
}
func (stubLedger) AccountInfo(crypto.PublicKey) (coretypes.AccountInfo, error) {
	return coretypes.AccountInfo{}, nil
}
func (stubLedger) AccountBalance(crypto.PublicKey) (coretypes.Balance, error) {
	return coretypes.Balance{}, nil
}
func (stubLedger) Weight(crypto.PublicKey) (coretypes.Balance, error) { return coretypes.Balance{}, nil }
func (stubLedger) PendingExists(coretypes.BlockHash) (bool, error)    { return false, nil }
func (stubLedger) PendingIterate(func(coretypes.BlockHash, coretypes.PendingEntry) error) error {
	return nil
}

type stubRepublisher struct{}

func (stubRepublisher) ProcessReceiveRepublish(coretypes.Block, coretypes.RebroadcastPolicy) error {
	return nil
}

func newTestRegistry(t *testing.T, name string) (*Wallets, *persist.Database) {
	t.Helper()
	dir := build.TempDir("walletutilregistry", name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	db, err := persist.OpenDatabase(persist.Metadata{Header: "registry-test", Version: "1"}, filepath.Join(dir, "wallet.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	pool := pow.New(pow.Config{Threads: 1}, nil)
	t.Cleanup(pool.Stop)

	return NewWallets(db, stubLedger{}, stubRepublisher{}, pool, nil), db
}

func randomWalletID() (id wallet.WalletID) {
	crypto.GenerateSalt(id[:])
	return
}

// TestCreateOpenDestroy checks the registry's basic lifecycle: a created
// wallet is retrievable by id, and destroying it both drops its
// sub-namespace and removes it from the registry.
func TestCreateOpenDestroy(t *testing.T) {
	r, db := newTestRegistry(t, "lifecycle")
	id := randomWalletID()

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := r.Create(tx, id, crypto.PublicKey{})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := r.Get(id); !ok {
		t.Fatal("created wallet is not registered")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		return r.Destroy(tx, id)
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Get(id); ok {
		t.Fatal("destroyed wallet is still registered")
	}
}

// TestFindByAccount checks that the registry can locate which registered
// wallet holds a given account, across multiple wallets.
func TestFindByAccount(t *testing.T) {
	r, db := newTestRegistry(t, "findbyaccount")
	idA, idB := randomWalletID(), randomWalletID()
	var target crypto.PublicKey

	err := db.Update(func(tx *bolt.Tx) error {
		wa, err := r.Create(tx, idA, crypto.PublicKey{})
		if err != nil {
			return err
		}
		if _, err := r.Create(tx, idB, crypto.PublicKey{}); err != nil {
			return err
		}
		sk, pk := crypto.GenerateKeyPair()
		target = pk
		_, err = wa.Store().Insert(tx, sk)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(tx *bolt.Tx) error {
		w, ok, err := r.FindByAccount(tx, target)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("FindByAccount did not locate a registered account")
		}
		gotID, _ := r.Get(idA)
		if w != gotID {
			t.Fatal("FindByAccount returned the wrong wallet")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestBackupAll checks that the registry's combined export includes every
// registered wallet's serialized entries, keyed by wallet id.
func TestBackupAll(t *testing.T) {
	r, db := newTestRegistry(t, "backupall")
	id := randomWalletID()

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := r.Create(tx, id, crypto.PublicKey{})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(tx *bolt.Tx) error {
		blobs, err := r.BackupAll(tx)
		if err != nil {
			return err
		}
		if len(blobs) != 1 {
			t.Fatalf("BackupAll returned %d wallets, want 1", len(blobs))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
