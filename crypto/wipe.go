package crypto

// SecureWipe zeroes b in place. It is called on every exit path from a
// function that has materialized a private key or the wallet master key, so
// that secrets do not linger in memory longer than needed.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
