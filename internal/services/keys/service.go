// Package keys runs the one-time prekey publish cycle: generate a batch,
// offer the unpublished set for upload, and mark it published once the
// server confirms.
package keys

import (
	"context"

	"sable/internal/domain"
	"sable/internal/e2ee"
	"sable/internal/store"
)

// Publisher uploads one-time public keys to the server. Implemented by the
// network layer; the server must deduplicate by key ID so that re-offered
// keys after a crash are harmless.
type Publisher interface {
	PublishOneTimeKeys(ctx context.Context, identity domain.IdentityKeys, keys []domain.OneTimeKey) error
}

// Service manages the account's one-time key pool against the store.
type Service struct {
	store *store.Store
}

// New returns a keys service over the given store.
func New(s *store.Store) *Service { return &Service{store: s} }

// Generate appends n fresh prekeys to the account and persists it.
func (s *Service) Generate(account *e2ee.Account, n int) error {
	if err := account.GenerateOneTimeKeys(n); err != nil {
		return err
	}
	return s.store.SaveAccount(account)
}

// Unpublished returns the keys currently offered for upload.
func (s *Service) Unpublished(account *e2ee.Account) []domain.OneTimeKey {
	return account.OneTimeKeys()
}

// ConfirmPublished marks every offered key as published and persists the
// account. Call only after the server confirmed the upload. A crash between
// the mark and the persist loses the in-memory transition, so the keys are
// re-offered on restart; that is safe under server-side ID dedup.
func (s *Service) ConfirmPublished(account *e2ee.Account) error {
	account.MarkKeysAsPublished()
	return s.store.SaveAccount(account)
}

// Publish uploads the unpublished set through p, then confirms it. No-op
// when nothing is pending.
func (s *Service) Publish(ctx context.Context, p Publisher, account *e2ee.Account) error {
	pending := account.OneTimeKeys()
	if len(pending) == 0 {
		return nil
	}
	if err := p.PublishOneTimeKeys(ctx, account.IdentityKeys(), pending); err != nil {
		return err
	}
	return s.ConfirmPublished(account)
}
