// Package messaging ties sessions to the store: establishment persists the
// session (and, inbound, the mutated account) before the result is handed
// back, and every encrypt/decrypt persists the advanced ratchet state before
// the caller sees plaintext or ciphertext.
package messaging

import (
	"sable/internal/domain"
	"sable/internal/e2ee"
	"sable/internal/store"
)

// Service owns the session lifecycle against the store.
type Service struct {
	store *store.Store
}

// New returns a messaging service over the given store.
func New(s *store.Store) *Service { return &Service{store: s} }

// EstablishOutbound creates a session to a peer device from its fetched
// identity and one-time keys and persists it keyed by (peer user, device
// key). The session's first Encrypt yields a prekey message.
func (s *Service) EstablishOutbound(
	account *e2ee.Account,
	key domain.SessionKey,
	peerIK, peerOTK domain.X25519Public,
) (*e2ee.Session, error) {
	session, err := account.NewOutboundSession(peerIK, peerOTK)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSession(key, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EstablishInbound creates a session from the first message of a new peer.
// The one-time key consumption and the new session row are committed in one
// transaction: losing one without the other would either leak a reusable
// prekey or orphan a session the account can no longer decrypt.
func (s *Service) EstablishInbound(
	account *e2ee.Account,
	key domain.SessionKey,
	senderIK domain.X25519Public,
	msg e2ee.EncryptedMessage,
) (*e2ee.Session, string, error) {
	session, plaintext, err := account.NewInboundSession(senderIK, msg)
	if err != nil {
		return nil, "", err
	}
	if err := s.store.SaveAccountAndSession(account, key, session); err != nil {
		return nil, "", err
	}
	return session, plaintext, nil
}

// Session loads the stored session for a peer device.
func (s *Service) Session(key domain.SessionKey) (*e2ee.Session, bool, error) {
	return s.store.LoadSession(key)
}

// Encrypt encrypts plaintext on the session and persists the advanced
// ratchet state before returning the ciphertext.
func (s *Service) Encrypt(key domain.SessionKey, session *e2ee.Session, plaintext string) (e2ee.EncryptedMessage, error) {
	msg, err := session.Encrypt(plaintext)
	if err != nil {
		return e2ee.EncryptedMessage{}, err
	}
	if err := s.store.SaveSession(key, session); err != nil {
		return e2ee.EncryptedMessage{}, err
	}
	return msg, nil
}

// Decrypt opens a message on the session and persists the advanced ratchet
// state before returning the plaintext. On decrypt failure nothing is
// persisted: the state only advances on success.
func (s *Service) Decrypt(key domain.SessionKey, session *e2ee.Session, msg e2ee.EncryptedMessage) (string, error) {
	plaintext, err := session.Decrypt(msg)
	if err != nil {
		return "", err
	}
	if err := s.store.SaveSession(key, session); err != nil {
		return "", err
	}
	return plaintext, nil
}

// Delete removes the stored session for a peer device. Deletion is caller
// policy (for example device revocation); nothing here deletes sessions
// automatically.
func (s *Service) Delete(key domain.SessionKey) error {
	return s.store.DeleteSession(key)
}
