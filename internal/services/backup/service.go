// Package backup snapshots the account's key material under a recovery key
// and restores it on a new device. The server round-trip is an opaque
// transport supplied by the network layer.
package backup

import (
	"context"

	"sable/internal/crypto"
	"sable/internal/e2ee"
	"sable/internal/recovery"
	"sable/internal/store"
)

// Transport carries backup containers to and from the server. Implemented by
// the network layer; the container never holds the recovery key.
type Transport interface {
	UploadBackup(ctx context.Context, b *recovery.EncryptedBackup) error
	DownloadBackup(ctx context.Context) (*recovery.EncryptedBackup, error)
}

// Service creates and restores encrypted key backups against the store.
type Service struct {
	store *store.Store
}

// New returns a backup service over the given store.
func New(s *store.Store) *Service { return &Service{store: s} }

// Create wraps a snapshot of the account's key material under the recovery
// key. The caller hands the container to the network layer for storage.
func (s *Service) Create(account *e2ee.Account, key *recovery.RecoveryKey) (*recovery.EncryptedBackup, error) {
	snapshot, err := account.Snapshot()
	if err != nil {
		return nil, err
	}
	b, err := recovery.CreateBackup(key, snapshot)
	crypto.Wipe(snapshot)
	return b, err
}

// CreateAndUpload creates a backup and pushes it through t.
func (s *Service) CreateAndUpload(ctx context.Context, t Transport, account *e2ee.Account, key *recovery.RecoveryKey) error {
	b, err := s.Create(account, key)
	if err != nil {
		return err
	}
	return t.UploadBackup(ctx, b)
}

// Restore decrypts a downloaded backup with the recovery key, rebuilds the
// account, and persists it as this store's account.
func (s *Service) Restore(b *recovery.EncryptedBackup, key *recovery.RecoveryKey) (*e2ee.Account, error) {
	snapshot, err := b.Decrypt(key)
	if err != nil {
		return nil, err
	}
	account, err := e2ee.RestoreAccount(snapshot)
	crypto.Wipe(snapshot)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}
