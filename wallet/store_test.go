package wallet

import (
	"os"
	"path/filepath"
	"testing"

	bolt "github.com/rivine/bbolt"

	"github.com/raiblocks/walletcore/build"
	"github.com/raiblocks/walletcore/crypto"
	"github.com/raiblocks/walletcore/persist"
)

func openTestDB(t *testing.T, name string) *persist.Database {
	t.Helper()
	dir := build.TempDir("wallet", name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	db, err := persist.OpenDatabase(persist.Metadata{Header: "wallet-test", Version: "1"}, filepath.Join(dir, "wallet.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func randomID() (id WalletID) {
	crypto.GenerateSalt(id[:])
	return
}

// TestCreateFreshWalletUnlockedByEmptyPassword checks scenario S1: a newly
// created store validates immediately under its zero-PDK sentinel, with no
// call to EnterPassword.
func TestCreateFreshWalletUnlockedByEmptyPassword(t *testing.T) {
	db := openTestDB(t, "fresh")
	id := randomID()

	err := db.Update(func(tx *bolt.Tx) error {
		s, err := Create(tx, id, crypto.PublicKey{})
		if err != nil {
			return err
		}
		valid, err := s.ValidPassword(tx)
		if err != nil {
			return err
		}
		if !valid {
			t.Fatal("fresh store did not validate under the zero PDK sentinel")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestCreateRejectsDuplicateNamespace checks that Create refuses to
// provision a sub-namespace that already exists.
func TestCreateRejectsDuplicateNamespace(t *testing.T) {
	db := openTestDB(t, "dup")
	id := randomID()

	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := Create(tx, id, crypto.PublicKey{}); err != nil {
			return err
		}
		_, err := Create(tx, id, crypto.PublicKey{})
		if err == nil {
			t.Fatal("expected an error creating a duplicate wallet namespace")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestInsertFetchRoundTrip checks scenario S2: a key inserted into an
// unlocked store can be fetched back byte-for-byte.
func TestInsertFetchRoundTrip(t *testing.T) {
	db := openTestDB(t, "insertfetch")
	id := randomID()
	sk, pk := crypto.GenerateKeyPair()

	err := db.Update(func(tx *bolt.Tx) error {
		s, err := Create(tx, id, crypto.PublicKey{})
		if err != nil {
			return err
		}
		got, err := s.Insert(tx, sk)
		if err != nil {
			return err
		}
		if got != pk {
			t.Fatal("Insert returned a different public key than the inserted private key derives")
		}
		fetched, err := s.Fetch(tx, pk)
		if err != nil {
			return err
		}
		if fetched != sk {
			t.Fatal("Fetch did not round-trip the inserted private key")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestFetchUnknownAccount checks that Fetch reports ErrAccountNotInWallet
// for a public key that was never inserted.
func TestFetchUnknownAccount(t *testing.T) {
	db := openTestDB(t, "fetchunknown")
	id := randomID()
	_, pk := crypto.GenerateKeyPair()

	err := db.Update(func(tx *bolt.Tx) error {
		s, err := Create(tx, id, crypto.PublicKey{})
		if err != nil {
			return err
		}
		_, err = s.Fetch(tx, pk)
		if err != ErrAccountNotInWallet {
			t.Fatalf("expected ErrAccountNotInWallet, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestRekeyPreservesEntries checks scenario S6: rekeying under a new
// passphrase still lets every previously inserted entry be fetched, and the
// old (empty) passphrase no longer validates afterward.
func TestRekeyPreservesEntries(t *testing.T) {
	db := openTestDB(t, "rekey")
	id := randomID()
	sk, pk := crypto.GenerateKeyPair()

	err := db.Update(func(tx *bolt.Tx) error {
		s, err := Create(tx, id, crypto.PublicKey{})
		if err != nil {
			return err
		}
		if _, err := s.Insert(tx, sk); err != nil {
			return err
		}
		if err := s.Rekey(tx, "new passphrase"); err != nil {
			return err
		}
		fetched, err := s.Fetch(tx, pk)
		if err != nil {
			return err
		}
		if fetched != sk {
			t.Fatal("Fetch did not round-trip the inserted private key across a rekey")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(tx *bolt.Tx) error {
		s, err := Open(tx, id)
		if err != nil {
			return err
		}
		if err := s.EnterPassword(tx, ""); err != nil {
			return err
		}
		valid, err := s.ValidPassword(tx)
		if err != nil {
			return err
		}
		if valid {
			t.Fatal("old passphrase still validates after rekey")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(tx *bolt.Tx) error {
		s, err := Open(tx, id)
		if err != nil {
			return err
		}
		if err := s.EnterPassword(tx, "new passphrase"); err != nil {
			return err
		}
		valid, err := s.ValidPassword(tx)
		if err != nil {
			return err
		}
		if !valid {
			t.Fatal("new passphrase does not validate after rekey")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestSerializeImportJSONRoundTrip checks that a store exported with
// SerializeJSON and reimported with ImportJSON under a fresh identifier
// behaves identically: same check value, same fetchable entries.
func TestSerializeImportJSONRoundTrip(t *testing.T) {
	db := openTestDB(t, "jsonroundtrip")
	srcID := randomID()
	dstID := randomID()
	sk, pk := crypto.GenerateKeyPair()

	var blob map[string]string
	err := db.Update(func(tx *bolt.Tx) error {
		s, err := Create(tx, srcID, crypto.PublicKey{})
		if err != nil {
			return err
		}
		if _, err := s.Insert(tx, sk); err != nil {
			return err
		}
		blob, err = s.SerializeJSON(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		s, err := ImportJSON(tx, dstID, blob)
		if err != nil {
			return err
		}
		valid, err := s.ValidPassword(tx)
		if err != nil {
			return err
		}
		if !valid {
			t.Fatal("imported store does not validate under the original zero PDK sentinel")
		}
		fetched, err := s.Fetch(tx, pk)
		if err != nil {
			return err
		}
		if fetched != sk {
			t.Fatal("imported store did not preserve the original private key entry")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestImportJSONRejectsMissingReservedEntries checks the fix for the
// open(json) bug: a blob missing a reserved identifier is rejected before
// any bucket is created, not left as a partially populated store.
func TestImportJSONRejectsMissingReservedEntries(t *testing.T) {
	db := openTestDB(t, "jsonmissing")
	srcID := randomID()
	dstID := randomID()

	var blob map[string]string
	err := db.Update(func(tx *bolt.Tx) error {
		s, err := Create(tx, srcID, crypto.PublicKey{})
		if err != nil {
			return err
		}
		blob, err = s.SerializeJSON(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	delete(blob, encodeIdentifier(idKey(idCheck)))

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := ImportJSON(tx, dstID, blob); err != ErrStoreOpenFailed {
			t.Fatalf("expected ErrStoreOpenFailed for a blob missing the check entry, got %v", err)
		}
		if tx.Bucket(dstID.hex()) != nil {
			t.Fatal("ImportJSON left a bucket behind after rejecting an incomplete blob")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestMoveSnapshotsAccountList checks the fix for the move/import iterator
// bug: Import moves every account that existed in the source at the start
// of the call, regardless of any mutation Move performs on the source as it
// goes.
func TestMoveSnapshotsAccountList(t *testing.T) {
	db := openTestDB(t, "movesnapshot")
	srcID, dstID := randomID(), randomID()

	const n = 5
	var pubs [n]crypto.PublicKey

	err := db.Update(func(tx *bolt.Tx) error {
		src, err := Create(tx, srcID, crypto.PublicKey{})
		if err != nil {
			return err
		}
		if _, err := Create(tx, dstID, crypto.PublicKey{}); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			sk, pk := crypto.GenerateKeyPair()
			pubs[i] = pk
			if _, err := src.Insert(tx, sk); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		src, err := Open(tx, srcID)
		if err != nil {
			return err
		}
		dst, err := Open(tx, dstID)
		if err != nil {
			return err
		}
		return dst.Import(tx, src)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(tx *bolt.Tx) error {
		src, err := Open(tx, srcID)
		if err != nil {
			return err
		}
		dst, err := Open(tx, dstID)
		if err != nil {
			return err
		}
		remaining, err := src.Accounts(tx)
		if err != nil {
			return err
		}
		if len(remaining) != 0 {
			t.Fatalf("source retained %d accounts after Import", len(remaining))
		}
		moved, err := dst.Accounts(tx)
		if err != nil {
			return err
		}
		if len(moved) != n {
			t.Fatalf("destination has %d accounts after Import, want %d", len(moved), n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
