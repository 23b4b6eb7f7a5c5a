package recovery

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"sable/internal/crypto"
	"sable/internal/domain"
)

// backupMagic is an AEAD-independent format sentinel prepended to the
// plaintext before sealing, checked again after the tag verifies.
var backupMagic = []byte("SABLE_KEYS_V1")

// backupVersion is the current container version.
const backupVersion = 1

// EncryptedBackup is the server-side backup container. It never contains the
// recovery key itself.
type EncryptedBackup struct {
	Salt       [16]byte
	Nonce      [12]byte
	Ciphertext []byte
	Version    uint32
}

// backupJSON is the upload payload consumed by the network layer: salt,
// nonce, and ciphertext travel base64-encoded.
type backupJSON struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Version    uint32 `json:"version"`
}

// MarshalJSON renders the wire form with base64 salt/nonce/ciphertext.
func (b EncryptedBackup) MarshalJSON() ([]byte, error) {
	return json.Marshal(backupJSON{
		Salt:       b.Salt[:],
		Nonce:      b.Nonce[:],
		Ciphertext: b.Ciphertext,
		Version:    b.Version,
	})
}

// UnmarshalJSON parses the wire form, rejecting wrong-length salt or nonce.
func (b *EncryptedBackup) UnmarshalJSON(data []byte) error {
	var w backupJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	if len(w.Salt) != len(b.Salt) || len(w.Nonce) != len(b.Nonce) {
		return fmt.Errorf("%w: bad salt or nonce length", domain.ErrSerialization)
	}
	copy(b.Salt[:], w.Salt)
	copy(b.Nonce[:], w.Nonce)
	b.Ciphertext = w.Ciphertext
	b.Version = w.Version
	return nil
}

// CreateBackup seals data under a key derived from the recovery key, with a
// fresh random salt and nonce per call. Two backups of identical data are
// never byte-equal.
func CreateBackup(key *RecoveryKey, data []byte) (*EncryptedBackup, error) {
	b := &EncryptedBackup{Version: backupVersion}
	if _, err := rand.Read(b.Salt[:]); err != nil {
		return nil, err
	}
	if _, err := rand.Read(b.Nonce[:]); err != nil {
		return nil, err
	}

	backupKey := key.DeriveBackupKey(&b.Salt)
	defer backupKey.Destroy()

	aead, err := newGCM(backupKey)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, 0, len(backupMagic)+len(data))
	plaintext = append(plaintext, backupMagic...)
	plaintext = append(plaintext, data...)

	b.Ciphertext = aead.Seal(nil, b.Nonce[:], plaintext, nil)
	crypto.Wipe(plaintext)
	return b, nil
}

// Decrypt re-derives the backup key from the stored salt and opens the
// container. A wrong recovery key and a bad format sentinel both report
// ErrDecryptionFailed; callers cannot tell which check failed.
func (b *EncryptedBackup) Decrypt(key *RecoveryKey) ([]byte, error) {
	backupKey := key.DeriveBackupKey(&b.Salt)
	defer backupKey.Destroy()

	aead, err := newGCM(backupKey)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, b.Nonce[:], b.Ciphertext, nil)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	if len(plaintext) < len(backupMagic) || !bytes.Equal(plaintext[:len(backupMagic)], backupMagic) {
		crypto.Wipe(plaintext)
		return nil, domain.ErrDecryptionFailed
	}
	out := append([]byte(nil), plaintext[len(backupMagic):]...)
	crypto.Wipe(plaintext)
	return out, nil
}

func newGCM(key *BackupKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
