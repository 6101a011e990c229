// Package crypto provides the cryptographic primitives used by the wallet
// core: Ed25519 signing, BLAKE2b hashing, an Argon2 passphrase KDF, and a
// symmetric stream cipher used to wrap private keys at rest.
package crypto

import (
	"errors"

	"github.com/NebulousLabs/fastrand"
	"golang.org/x/crypto/ed25519"
)

const (
	// EntropySize is the size, in bytes, of an account's private scalar.
	EntropySize = 32

	// PublicKeySize is the size, in bytes, of an Ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize

	// SecretKeySize is the size, in bytes, of an Ed25519 expanded private
	// key (seed followed by public key) as golang.org/x/crypto/ed25519
	// represents it. SecretKey itself stores only the EntropySize-byte seed.
	SecretKeySize = ed25519.PrivateKeySize

	// SignatureSize is the size, in bytes, of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
)

// ErrInvalidSignature is returned when a signature does not match the data
// and public key it is checked against.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

type (
	// PublicKey is a 256-bit Ed25519 public key. It doubles as an account
	// address throughout the wallet.
	PublicKey [PublicKeySize]byte

	// SecretKey is a 256-bit Ed25519 scalar. It is never written to disk in
	// clear; every exit path that materializes one must call SecureWipe.
	SecretKey [EntropySize]byte

	// Signature is a detached Ed25519 signature over arbitrary data.
	Signature [SignatureSize]byte

	// Ciphertext is the output of Wrap: a value the same length as its
	// plaintext, produced by XORing it with a keystream.
	Ciphertext []byte
)

var nilPublicKey PublicKey

// IsNil reports whether pk is the all-zero public key.
func (pk PublicKey) IsNil() bool {
	return pk == nilPublicKey
}

// expand derives the 64-byte Ed25519 expanded key golang.org/x/crypto/ed25519
// operates on from the 32-byte scalar this package stores and persists.
func (sk SecretKey) expand() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(sk[:])
}

// PublicKey derives the Ed25519 public key corresponding to sk.
func (sk SecretKey) PublicKey() (pk PublicKey) {
	priv := sk.expand()
	copy(pk[:], priv[EntropySize:])
	return
}

// GenerateKeyPair creates a new random Ed25519 keypair using the process
// CSPRNG.
func GenerateKeyPair() (sk SecretKey, pk PublicKey) {
	fastrand.Read(sk[:])
	pk = sk.PublicKey()
	return
}

// GenerateSalt fills b with cryptographically random bytes from the
// process CSPRNG. It is used for wallet salts and wallet master keys,
// neither of which need to be deterministic.
func GenerateSalt(b []byte) {
	fastrand.Read(b)
}

// Sign signs data (for blocks, their SigningData bytes) with sk, returning a
// detached signature.
func Sign(data []byte, sk SecretKey) (sig Signature) {
	copy(sig[:], ed25519.Sign(sk.expand(), data))
	return
}

// Verify checks that sig is a valid signature over data under pk.
func Verify(data []byte, pk PublicKey, sig Signature) error {
	if !ed25519.Verify(ed25519.PublicKey(pk[:]), data, sig[:]) {
		return ErrInvalidSignature
	}
	return nil
}
