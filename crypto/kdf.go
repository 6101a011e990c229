package crypto

import "golang.org/x/crypto/argon2"

// WorkFactorKiB is the default Argon2 memory parameter (in KiB) used to
// derive a passphrase key. It must match across node versions that share a
// wallet file, since it is not itself persisted.
const WorkFactorKiB = 1 << 10 // 1024 KiB

const (
	argonTime    = 1
	argonThreads = 1
	argonKeyLen  = EntropySize
)

// DerivePDK derives a 256-bit passphrase-derived key from passphrase and
// salt using Argon2id with {t=1, p=1, m=workFactorKiB}.
func DerivePDK(passphrase []byte, salt [EntropySize]byte, workFactorKiB uint32) (pdk [EntropySize]byte) {
	key := argon2.IDKey(passphrase, salt[:], argonTime, workFactorKiB, argonThreads, argonKeyLen)
	copy(pdk[:], key)
	return
}
