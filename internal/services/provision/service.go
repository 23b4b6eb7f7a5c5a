// Package provision handles first-run setup of the local key store: creating
// the account exactly once and recording the store metadata.
package provision

import (
	"time"

	"github.com/google/uuid"

	"sable/internal/domain"
	"sable/internal/e2ee"
	"sable/internal/store"
)

// Service provisions and reopens the device's protocol identity.
type Service struct {
	store *store.Store
}

// New returns a provisioning service over the given store.
func New(s *store.Store) *Service { return &Service{store: s} }

// Initialize returns the device account, creating and persisting a fresh one
// on first run. Metadata is written once; later calls leave it untouched.
func (s *Service) Initialize(userID, deviceID uuid.UUID) (*e2ee.Account, error) {
	has, err := s.store.HasAccount()
	if err != nil {
		return nil, err
	}
	if has {
		return s.store.LoadAccount()
	}

	account, err := e2ee.NewAccount()
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveAccount(account); err != nil {
		return nil, err
	}

	if _, ok, err := s.store.LoadMetadata(); err != nil {
		return nil, err
	} else if !ok {
		meta := domain.Metadata{
			UserID:    userID,
			DeviceID:  deviceID,
			CreatedAt: time.Now().Unix(),
		}
		if err := s.store.SaveMetadata(meta); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// Metadata returns the store metadata written at provisioning.
func (s *Service) Metadata() (domain.Metadata, bool, error) {
	return s.store.LoadMetadata()
}
