// Package wallet implements the wallet core: an encrypted per-account key
// store (Store) and the composition of a store with a ledger and a
// proof-of-work pool that produces signed blocks (Wallet).
package wallet

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sort"

	bolt "github.com/rivine/bbolt"

	"github.com/raiblocks/walletcore/crypto"
)

// Reserved entry identifiers. Regular account entries start at 5, per the
// data model's "Iteration of accounts starts at identifier 5" invariant.
const (
	idVersion        uint64 = 0
	idSalt           uint64 = 1
	idWMK            uint64 = 2
	idCheck          uint64 = 3
	idRepresentative uint64 = 4
	firstAccountID   uint64 = 5
)

// storeVersion is written to the reserved version entry of every store this
// package creates.
const storeVersion = "1"

// entryValueLen is the fixed on-disk width of an entry value: a 32-byte key
// field followed by an 8-byte little-endian cached-work field.
const entryValueLen = crypto.EntropySize + 8

var (
	// ErrInvalidPassword is returned by any operation that requires
	// ValidPassword when the wallet is locked or the wrong password is in
	// memory.
	ErrInvalidPassword = errors.New("wallet: invalid password")

	// ErrAccountNotInWallet is returned when an operation names an account
	// whose entry is not present in the store.
	ErrAccountNotInWallet = errors.New("wallet: account not in wallet")

	// ErrCorruptEntry is returned by Fetch when an entry's decrypted
	// private key does not derive the public key it is stored under.
	ErrCorruptEntry = errors.New("wallet: corrupt entry")

	// ErrStoreOpenFailed is returned by Open when the wallet's
	// sub-namespace is absent, by ImportJSON when the JSON is malformed or
	// missing one or more reserved entries, and by reads of a missing or
	// malformed reserved entry. Create and ImportJSON report an already
	// existing sub-namespace with a separate, unexported error.
	ErrStoreOpenFailed = errors.New("wallet: store open failed")

	// ErrImportFailed is returned by Move/Import when any entry fails to
	// move; entries already moved before the failure remain moved.
	ErrImportFailed = errors.New("wallet: import failed")

	errAlreadyExists = errors.New("wallet: sub-namespace already exists")
)

// WalletID is the 256-bit opaque identifier naming a wallet's sub-namespace.
type WalletID [32]byte

// hex returns the lowercase hex encoding used as the bolt bucket name.
func (id WalletID) hex() []byte {
	return []byte(hex.EncodeToString(id[:]))
}

// entry is the fixed-width record stored under every key identifier.
type entry struct {
	Key  [32]byte
	Work uint64
}

func (e entry) marshal() []byte {
	buf := make([]byte, entryValueLen)
	copy(buf, e.Key[:])
	binary.LittleEndian.PutUint64(buf[32:], e.Work)
	return buf
}

func unmarshalEntry(b []byte) (entry, bool) {
	if len(b) != entryValueLen {
		return entry{}, false
	}
	var e entry
	copy(e.Key[:], b[:32])
	e.Work = binary.LittleEndian.Uint64(b[32:])
	return e, true
}

// pdkSlot holds the passphrase-derived key in memory. It is never
// persisted; a fresh Store starts with the all-zero PDK, which is the
// "unlocked by empty passphrase" sentinel a brand new wallet is created
// with.
type pdkSlot struct {
	key [32]byte
}

// Store is a persistent encrypted keyring bound to one wallet sub-namespace
// inside a shared bolt database handle. Every exported method that takes a
// *bolt.Tx is transaction-scoped; the caller owns transaction lifetime.
type Store struct {
	id  WalletID
	pdk pdkSlot
}

// idKey turns a uint64 identifier into the fixed 8-byte big-endian bolt key
// bolt's ordered iteration sorts numerically on.
func idKey(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func pubKey(pub crypto.PublicKey) []byte {
	return pub[:]
}

// bucket returns (creating if needed) this store's bucket inside tx.
func (s *Store) bucket(tx *bolt.Tx, create bool) (*bolt.Bucket, error) {
	name := s.id.hex()
	if create {
		return tx.CreateBucketIfNotExists(name)
	}
	b := tx.Bucket(name)
	if b == nil {
		return nil, ErrStoreOpenFailed
	}
	return b, nil
}

// Create provisions a fresh store for id inside tx: a random salt, random
// wallet master key wrapped under PDK=0, the matching check value, a
// version marker, and the given representative. It fails if the
// sub-namespace already exists.
func Create(tx *bolt.Tx, id WalletID, representative crypto.PublicKey) (*Store, error) {
	name := id.hex()
	if tx.Bucket(name) != nil {
		return nil, errAlreadyExists
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return nil, err
	}

	s := &Store{id: id}

	var salt [32]byte
	crypto.GenerateSalt(salt[:])
	var wmk [32]byte
	crypto.GenerateSalt(wmk[:])
	defer crypto.SecureWipe(wmk[:])

	if err := b.Put(idKey(idVersion), entry{Key: versionPayload()}.marshal()); err != nil {
		return nil, err
	}
	if err := b.Put(idKey(idSalt), entry{Key: salt}.marshal()); err != nil {
		return nil, err
	}

	wrappedWMK := wrapWMK(wmk, s.pdk.key, salt)
	if err := b.Put(idKey(idWMK), entry{Key: toArray32(wrappedWMK)}.marshal()); err != nil {
		return nil, err
	}

	check := checkValue(wmk, salt)
	if err := b.Put(idKey(idCheck), entry{Key: check}.marshal()); err != nil {
		return nil, err
	}
	if err := b.Put(idKey(idRepresentative), entry{Key: crypto.PublicKey(representative)}.marshal()); err != nil {
		return nil, err
	}
	return s, nil
}

func versionPayload() (out [32]byte) {
	copy(out[:], storeVersion)
	return
}

func toArray32(b []byte) (out [32]byte) {
	copy(out[:], b)
	return
}

// ivFromSalt returns the first 128 bits of salt, used as the IV for all
// XOR-stream operations keyed by this store's WMK or PDK.
func ivFromSalt(salt [32]byte) (iv [16]byte) {
	copy(iv[:], salt[:16])
	return
}

// wrapWMK wraps wmk under pdk using the store's salt-derived IV.
func wrapWMK(wmk, pdk, salt [32]byte) crypto.Ciphertext {
	return crypto.Wrap(wmk[:], pdk, ivFromSalt(salt))
}

// checkValue computes encrypt(zero-block, wmk, salt-IV), used to verify a
// password without ever comparing decrypted private keys.
func checkValue(wmk, salt [32]byte) [32]byte {
	var zero [32]byte
	return toArray32(crypto.Wrap(zero[:], wmk, ivFromSalt(salt)))
}

// Open loads an existing store for id. If tx's bucket for id is absent,
// ErrStoreOpenFailed is returned; the caller is expected to have created it
// via Create or ImportJSON first.
func Open(tx *bolt.Tx, id WalletID) (*Store, error) {
	s := &Store{id: id}
	if _, err := s.bucket(tx, false); err != nil {
		return nil, err
	}
	return s, nil
}

// getReserved reads a reserved entry's Key field.
func (s *Store) getReserved(tx *bolt.Tx, id uint64) ([32]byte, error) {
	b, err := s.bucket(tx, false)
	if err != nil {
		return [32]byte{}, err
	}
	raw := b.Get(idKey(id))
	if raw == nil {
		return [32]byte{}, ErrStoreOpenFailed
	}
	e, ok := unmarshalEntry(raw)
	if !ok {
		return [32]byte{}, ErrStoreOpenFailed
	}
	return e.Key, nil
}

func (s *Store) salt(tx *bolt.Tx) ([32]byte, error)  { return s.getReserved(tx, idSalt) }
func (s *Store) wmkRaw(tx *bolt.Tx) ([32]byte, error) { return s.getReserved(tx, idWMK) }
func (s *Store) checkRaw(tx *bolt.Tx) ([32]byte, error) { return s.getReserved(tx, idCheck) }

// Representative returns the wallet's current voting delegate.
func (s *Store) Representative(tx *bolt.Tx) (crypto.PublicKey, error) {
	raw, err := s.getReserved(tx, idRepresentative)
	return crypto.PublicKey(raw), err
}

// SetRepresentative updates the wallet's voting delegate.
func (s *Store) SetRepresentative(tx *bolt.Tx, rep crypto.PublicKey) error {
	b, err := s.bucket(tx, false)
	if err != nil {
		return err
	}
	return b.Put(idKey(idRepresentative), entry{Key: rep}.marshal())
}

// unwrapWMK recovers the wallet master key using the PDK currently held in
// memory.
func (s *Store) unwrapWMK(tx *bolt.Tx) ([32]byte, error) {
	salt, err := s.salt(tx)
	if err != nil {
		return [32]byte{}, err
	}
	wrapped, err := s.wmkRaw(tx)
	if err != nil {
		return [32]byte{}, err
	}
	return toArray32(crypto.Unwrap(wrapped[:], s.pdk.key, ivFromSalt(salt))), nil
}

// ValidPassword reports whether the PDK currently held in memory correctly
// unwraps the WMK: the re-derived check value matches the stored one.
func (s *Store) ValidPassword(tx *bolt.Tx) (bool, error) {
	salt, err := s.salt(tx)
	if err != nil {
		return false, err
	}
	wmk, err := s.unwrapWMK(tx)
	if err != nil {
		return false, err
	}
	defer crypto.SecureWipe(wmk[:])
	stored, err := s.checkRaw(tx)
	if err != nil {
		return false, err
	}
	return checkValue(wmk, salt) == stored, nil
}

// EnterPassword sets the in-memory PDK derived from passphrase. It does not
// itself verify the password; call ValidPassword to check.
func (s *Store) EnterPassword(tx *bolt.Tx, passphrase string) error {
	salt, err := s.salt(tx)
	if err != nil {
		return err
	}
	s.pdk.key = crypto.DerivePDK([]byte(passphrase), salt, crypto.WorkFactorKiB)
	return nil
}

// Rekey re-derives the PDK from passphrase and rewraps the WMK under it.
// It requires the store to currently be unlocked; if the PDK held in memory
// does not validate, it returns ErrInvalidPassword and leaves the store
// unchanged. The new passphrase itself is not checked against anything.
func (s *Store) Rekey(tx *bolt.Tx, passphrase string) error {
	valid, err := s.ValidPassword(tx)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidPassword
	}
	salt, err := s.salt(tx)
	if err != nil {
		return err
	}
	wmk, err := s.unwrapWMK(tx)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(wmk[:])

	newPDK := crypto.DerivePDK([]byte(passphrase), salt, crypto.WorkFactorKiB)
	s.pdk.key = newPDK

	b, err := s.bucket(tx, false)
	if err != nil {
		return err
	}
	wrapped := wrapWMK(wmk, newPDK, salt)
	if err := b.Put(idKey(idWMK), entry{Key: toArray32(wrapped)}.marshal()); err != nil {
		return err
	}
	check := checkValue(wmk, salt)
	return b.Put(idKey(idCheck), entry{Key: check}.marshal())
}

// Insert computes the public key for prv, encrypts prv under the wallet
// master key, and stores it. It requires ValidPassword.
func (s *Store) Insert(tx *bolt.Tx, prv crypto.SecretKey) (crypto.PublicKey, error) {
	valid, err := s.ValidPassword(tx)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	if !valid {
		return crypto.PublicKey{}, ErrInvalidPassword
	}
	salt, err := s.salt(tx)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	wmk, err := s.unwrapWMK(tx)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	defer crypto.SecureWipe(wmk[:])

	pub := prv.PublicKey()
	wrapped := crypto.Wrap(prv[:], wmk, ivFromSalt(salt))

	b, err := s.bucket(tx, false)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	if err := b.Put(pubKey(pub), entry{Key: toArray32(wrapped)}.marshal()); err != nil {
		return crypto.PublicKey{}, err
	}
	return pub, nil
}

// Fetch unwraps and returns the private key for pub. It requires
// ValidPassword and that pub's entry exists; if the decrypted key does not
// derive pub, ErrCorruptEntry is returned (the decrypted bytes are wiped
// either way).
func (s *Store) Fetch(tx *bolt.Tx, pub crypto.PublicKey) (crypto.SecretKey, error) {
	valid, err := s.ValidPassword(tx)
	if err != nil {
		return crypto.SecretKey{}, err
	}
	if !valid {
		return crypto.SecretKey{}, ErrInvalidPassword
	}
	b, err := s.bucket(tx, false)
	if err != nil {
		return crypto.SecretKey{}, err
	}
	raw := b.Get(pubKey(pub))
	if raw == nil {
		return crypto.SecretKey{}, ErrAccountNotInWallet
	}
	e, ok := unmarshalEntry(raw)
	if !ok {
		return crypto.SecretKey{}, ErrCorruptEntry
	}
	salt, err := s.salt(tx)
	if err != nil {
		return crypto.SecretKey{}, err
	}
	wmk, err := s.unwrapWMK(tx)
	if err != nil {
		return crypto.SecretKey{}, err
	}
	defer crypto.SecureWipe(wmk[:])

	plain := crypto.Unwrap(e.Key[:], wmk, ivFromSalt(salt))
	var prv crypto.SecretKey
	copy(prv[:], plain)
	crypto.SecureWipe(plain)

	if prv.PublicKey() != pub {
		crypto.SecureWipe(prv[:])
		return crypto.SecretKey{}, ErrCorruptEntry
	}
	return prv, nil
}

// Has reports whether pub has an entry in the store, independent of the
// store's lock state: presence of a destination account is how the
// pending-block scan decides a wallet owns a pending send, before it has
// any reason to unlock the wallet to act on it.
func (s *Store) Has(tx *bolt.Tx, pub crypto.PublicKey) (bool, error) {
	b, err := s.bucket(tx, false)
	if err != nil {
		return false, err
	}
	return b.Get(pubKey(pub)) != nil, nil
}

// Erase deletes pub's entry, if present.
func (s *Store) Erase(tx *bolt.Tx, pub crypto.PublicKey) error {
	b, err := s.bucket(tx, false)
	if err != nil {
		return err
	}
	return b.Delete(pubKey(pub))
}

// WorkGet returns the cached proof-of-work nonce for pub, and whether one
// is present (a stored zero counts as absent, per the data model).
func (s *Store) WorkGet(tx *bolt.Tx, pub crypto.PublicKey) (uint64, bool, error) {
	b, err := s.bucket(tx, false)
	if err != nil {
		return 0, false, err
	}
	raw := b.Get(pubKey(pub))
	if raw == nil {
		return 0, false, ErrAccountNotInWallet
	}
	e, ok := unmarshalEntry(raw)
	if !ok {
		return 0, false, ErrCorruptEntry
	}
	return e.Work, e.Work != 0, nil
}

// WorkPut updates pub's cached proof-of-work nonce.
func (s *Store) WorkPut(tx *bolt.Tx, pub crypto.PublicKey, work uint64) error {
	b, err := s.bucket(tx, false)
	if err != nil {
		return err
	}
	raw := b.Get(pubKey(pub))
	if raw == nil {
		return ErrAccountNotInWallet
	}
	e, ok := unmarshalEntry(raw)
	if !ok {
		return ErrCorruptEntry
	}
	e.Work = work
	return b.Put(pubKey(pub), e.marshal())
}

// Accounts returns every regular entry's public key, in ascending
// byte-order (accounts occupy identifiers >= 5, i.e. 32-byte keys, which
// sort after every 8-byte reserved identifier in bolt's byte-ordered
// iteration).
func (s *Store) Accounts(tx *bolt.Tx) ([]crypto.PublicKey, error) {
	b, err := s.bucket(tx, false)
	if err != nil {
		return nil, err
	}
	var accounts []crypto.PublicKey
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if len(k) != 32 {
			continue // reserved entry, 8-byte identifier
		}
		if _, ok := unmarshalEntry(v); !ok {
			continue
		}
		var pub crypto.PublicKey
		copy(pub[:], k)
		accounts = append(accounts, pub)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return string(accounts[i][:]) < string(accounts[j][:])
	})
	return accounts, nil
}

// Move fetches each of pubs from other and inserts it into s, erasing it
// from other only after a successful insert. Both stores must be unlocked.
// It iterates pubs (a caller-supplied, explicit snapshot of the keys to
// move) rather than any live iterator over either store, so it cannot
// confuse one store's end-of-range with another's.
func (s *Store) Move(tx *bolt.Tx, other *Store, pubs []crypto.PublicKey) error {
	if ok, err := s.ValidPassword(tx); err != nil {
		return err
	} else if !ok {
		return ErrInvalidPassword
	}
	if ok, err := other.ValidPassword(tx); err != nil {
		return err
	} else if !ok {
		return ErrInvalidPassword
	}
	for _, pub := range pubs {
		prv, err := other.Fetch(tx, pub)
		if err != nil {
			return ErrImportFailed
		}
		_, err = s.Insert(tx, prv)
		crypto.SecureWipe(prv[:])
		if err != nil {
			return ErrImportFailed
		}
		if err := other.Erase(tx, pub); err != nil {
			return ErrImportFailed
		}
	}
	return nil
}

// Import moves every account entry from other into s, resolving the
// original implementation's ambiguous end()-vs-end() iterator bug by
// snapshotting other's account list before moving any of them.
func (s *Store) Import(tx *bolt.Tx, other *Store) error {
	pubs, err := other.Accounts(tx)
	if err != nil {
		return ErrImportFailed
	}
	return s.Move(tx, other, pubs)
}

// SerializeJSON emits a hex-key -> hex-value mapping of every entry in the
// store, reserved and regular alike, for backup/export. Cached work is not
// included in the exported value, matching the wire format.
func (s *Store) SerializeJSON(tx *bolt.Tx) (map[string]string, error) {
	b, err := s.bucket(tx, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		e, ok := unmarshalEntry(v)
		if !ok {
			continue
		}
		key := encodeIdentifier(k)
		out[key] = hex.EncodeToString(e.Key[:])
	}
	return out, nil
}

func encodeIdentifier(k []byte) string {
	if len(k) == 8 {
		return hex.EncodeToString(append(make([]byte, 24), k...))
	}
	return hex.EncodeToString(k)
}

// ImportJSON creates a fresh store for id from a hex->hex mapping as
// produced by SerializeJSON. Presence of every reserved identifier is
// validated against a staged copy of the decoded map before a single write
// transaction populates the bucket, so a short JSON blob fails atomically
// instead of leaving a partially written, inconsistent store behind (the
// original implementation validated after writing).
func ImportJSON(tx *bolt.Tx, id WalletID, data map[string]string) (*Store, error) {
	type decodedEntry struct {
		key     []byte
		value   [32]byte
		reserve uint64 // valid only if isReserved
		isReserved bool
	}
	decoded := make([]decodedEntry, 0, len(data))
	reservedSeen := make(map[uint64]bool, 5)
	for k, v := range data {
		kb, err := hex.DecodeString(k)
		if err != nil || len(kb) != 32 {
			return nil, ErrStoreOpenFailed
		}
		vb, err := hex.DecodeString(v)
		if err != nil || len(vb) != 32 {
			return nil, ErrStoreOpenFailed
		}
		de := decodedEntry{key: kb, value: toArray32(vb)}
		if isReservedKeyBytes(kb) {
			de.isReserved = true
			de.reserve = binary.BigEndian.Uint64(kb[24:])
			reservedSeen[de.reserve] = true
		}
		decoded = append(decoded, de)
	}
	// Validate presence of every reserved entry before writing anything, so
	// an incomplete import fails atomically instead of leaving a partially
	// populated bucket behind.
	for _, required := range []uint64{idVersion, idSalt, idWMK, idCheck, idRepresentative} {
		if !reservedSeen[required] {
			return nil, ErrStoreOpenFailed
		}
	}

	name := id.hex()
	if tx.Bucket(name) != nil {
		return nil, errAlreadyExists
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return nil, err
	}
	for _, de := range decoded {
		key := de.key
		if de.isReserved {
			key = idKey(de.reserve)
		}
		if err := b.Put(key, entry{Key: de.value}.marshal()); err != nil {
			return nil, err
		}
	}
	return &Store{id: id}, nil
}

// isReservedKeyBytes reports whether a 32-byte decoded JSON key encodes one
// of the reserved 8-byte identifiers (top 24 bytes zero, low 8 bytes < 5).
func isReservedKeyBytes(k []byte) bool {
	if len(k) != 32 {
		return false
	}
	for _, b := range k[:24] {
		if b != 0 {
			return false
		}
	}
	id := binary.BigEndian.Uint64(k[24:])
	return id < firstAccountID
}

// Destroy drops the store's entire sub-namespace.
func (s *Store) Destroy(tx *bolt.Tx) error {
	return tx.DeleteBucket(s.id.hex())
}
