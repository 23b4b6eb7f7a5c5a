package recovery

import (
	"crypto/rand"
	"fmt"
	"strings"
	"unicode"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/argon2"

	"sable/internal/crypto"
	"sable/internal/domain"
)

// Argon2id parameters for backup-key derivation. Memory-hard on purpose:
// the recovery key is the only secret between an attacker and the backup.
const (
	argonMemoryKiB = 64 * 1024
	argonTime      = 3
	argonThreads   = 1
)

const displayGroupSize = 4

// RecoveryKey is 32 cryptographically random bytes, ephemeral in memory and
// never persisted in plaintext. Call Destroy when done with it.
type RecoveryKey struct {
	bytes [32]byte
}

// Generate returns a new random recovery key.
func Generate() (*RecoveryKey, error) {
	k := &RecoveryKey{}
	if _, err := rand.Read(k.bytes[:]); err != nil {
		return nil, err
	}
	return k, nil
}

// Parse decodes a display string back into a recovery key. All whitespace is
// ignored. A wrong alphabet and a wrong decoded length report the same
// ErrInvalidKey kind.
func Parse(s string) (*RecoveryKey, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	raw, err := base58.Decode(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	defer crypto.Wipe(raw)

	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: recovery key must be 32 bytes, got %d", domain.ErrInvalidKey, len(raw))
	}
	k := &RecoveryKey{}
	copy(k.bytes[:], raw)
	return k, nil
}

// String returns the display form: Base58, grouped into 4-character chunks
// separated by single spaces. Purely presentational and fully reversible.
func (k *RecoveryKey) String() string {
	return strings.Join(k.Chunks(), " ")
}

// Chunks returns the 4-character display groups; the last group may be
// shorter.
func (k *RecoveryKey) Chunks() []string {
	encoded := base58.Encode(k.bytes[:])
	chunks := make([]string, 0, len(encoded)/displayGroupSize+1)
	for len(encoded) > displayGroupSize {
		chunks = append(chunks, encoded[:displayGroupSize])
		encoded = encoded[displayGroupSize:]
	}
	return append(chunks, encoded)
}

// Display is the payload handed to the UI layer.
type Display struct {
	FullKey string   `json:"full_key"` // Base58, no whitespace
	Chunks  []string `json:"chunks"`
}

// Display returns the UI payload for this key.
func (k *RecoveryKey) Display() Display {
	return Display{FullKey: base58.Encode(k.bytes[:]), Chunks: k.Chunks()}
}

// Equal reports whether two recovery keys hold the same bytes.
func (k *RecoveryKey) Equal(other *RecoveryKey) bool {
	return k.bytes == other.bytes
}

// Destroy zeroes the key material. The key is unusable afterwards.
func (k *RecoveryKey) Destroy() { crypto.Wipe(k.bytes[:]) }

// BackupKey is the symmetric key derived from a recovery key and a salt.
// It lives for the duration of one encrypt or decrypt call; Destroy it
// immediately after use.
type BackupKey struct {
	bytes [32]byte
}

// DeriveBackupKey derives the backup encryption key with Argon2id
// (64 MiB memory, 3 iterations, parallelism 1, 32-byte output).
// Deterministic for fixed (key, salt): callers must use a fresh random salt
// per backup to avoid key reuse.
func (k *RecoveryKey) DeriveBackupKey(salt *[16]byte) *BackupKey {
	raw := argon2.IDKey(k.bytes[:], salt[:], argonTime, argonMemoryKiB, argonThreads, 32)
	bk := &BackupKey{}
	copy(bk.bytes[:], raw)
	crypto.Wipe(raw)
	return bk
}

// Bytes exposes the key for the AEAD call.
func (b *BackupKey) Bytes() []byte { return b.bytes[:] }

// Destroy zeroes the key material.
func (b *BackupKey) Destroy() { crypto.Wipe(b.bytes[:]) }
