package crypto

import "golang.org/x/crypto/argon2"

const (
	// KeyBytes is the size of every symmetric key in this subsystem.
	KeyBytes = 32
	// SaltBytes is the size of KDF salts.
	SaltBytes = 16
)

// DeriveStorageKey derives the 32-byte store encryption key from a local
// passphrase with Argon2id. The salt is caller-held and must be stable for
// the life of the store.
func DeriveStorageKey(passphrase string, salt []byte) [32]byte {
	raw := argon2.IDKey([]byte(passphrase), salt, 1, 1<<16, 4, KeyBytes)
	var key [32]byte
	copy(key[:], raw)
	Wipe(raw)
	return key
}
