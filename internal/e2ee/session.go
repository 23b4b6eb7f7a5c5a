package e2ee

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"sable/internal/crypto"
	"sable/internal/domain"
	"sable/internal/protocol/ratchet"
)

// Session is one Double Ratchet conversation with exactly one peer device.
// Encrypt and Decrypt advance the ratchet as a side effect; the caller must
// persist the session immediately afterwards. A Session is not safe for
// concurrent use: the ratchet index is sequential state, so concurrent
// callers must serialize per SessionKey.
type Session struct {
	id    string
	state ratchet.State

	// pending holds the handshake material attached to the first Encrypt of
	// a fresh outbound session. Nil once established (or for inbound
	// sessions, which are established on creation).
	pending *pendingHandshake
}

type pendingHandshake struct {
	SenderIK   domain.X25519Public `json:"sender_ik"`
	Ephemeral  domain.X25519Public `json:"ephemeral"`
	OneTimeKey domain.X25519Public `json:"one_time_key"`
}

// ID returns the stable session identifier derived at establishment. Both
// ends derive the same value. Not secret; used for tracking and dedup.
func (s *Session) ID() string { return s.id }

// Encrypt encrypts plaintext and advances the sending chain. The very first
// call on a fresh outbound session yields a MessageTypePreKey message; every
// later call, and every call on an inbound session, yields MessageTypeNormal.
func (s *Session) Encrypt(plaintext string) (EncryptedMessage, error) {
	header, ct, err := ratchet.Encrypt(&s.state, nil, []byte(plaintext))
	if err != nil {
		return EncryptedMessage{}, err
	}
	inner := innerMessage{Header: header, Ciphertext: ct}

	if s.pending != nil {
		payload := preKeyPayload{
			SenderIK:   s.pending.SenderIK.Base64(),
			Ephemeral:  s.pending.Ephemeral.Base64(),
			OneTimeKey: s.pending.OneTimeKey.Base64(),
			Message:    inner,
		}
		s.pending = nil
		raw, err := json.Marshal(payload)
		if err != nil {
			return EncryptedMessage{}, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
		}
		return EncryptedMessage{
			Type:       MessageTypePreKey,
			Ciphertext: base64.StdEncoding.EncodeToString(raw),
		}, nil
	}

	raw, err := json.Marshal(inner)
	if err != nil {
		return EncryptedMessage{}, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	return EncryptedMessage{
		Type:       MessageTypeNormal,
		Ciphertext: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// Decrypt opens a message and advances the receiving chain on success only.
// AEAD failure (wrong session, replay outside the skip window, corruption)
// reports ErrAuthenticationFailed; non-text plaintext reports ErrInvalidUTF8.
func (s *Session) Decrypt(msg EncryptedMessage) (string, error) {
	var inner innerMessage
	switch msg.Type {
	case MessageTypePreKey:
		payload, err := decodePreKeyPayload(msg.Ciphertext)
		if err != nil {
			return "", err
		}
		inner = payload.Message
	case MessageTypeNormal:
		raw, err := base64.StdEncoding.DecodeString(msg.Ciphertext)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
		}
		if err := json.Unmarshal(raw, &inner); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
		}
	default:
		return "", fmt.Errorf("%w: unknown message type %d", domain.ErrInvalidMessage, msg.Type)
	}

	plaintext, err := ratchet.Decrypt(&s.state, nil, inner.Header, inner.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	if !utf8.Valid(plaintext) {
		return "", domain.ErrInvalidUTF8
	}
	return string(plaintext), nil
}

// sessionState is the serialized form of a Session.
type sessionState struct {
	ID      string            `json:"id"`
	State   ratchet.State     `json:"state"`
	Pending *pendingHandshake `json:"pending,omitempty"`
}

// Pickle serializes the session into an encrypted blob under key.
func (s *Session) Pickle(key *[32]byte) (string, error) {
	raw, err := json.Marshal(sessionState{ID: s.id, State: s.state, Pending: s.pending})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	blob, err := crypto.Pickle(key, raw)
	crypto.Wipe(raw)
	return blob, err
}

// UnpickleSession restores a session from an encrypted blob. A wrong key
// fails with ErrDecryptionFailed.
func UnpickleSession(blob string, key *[32]byte) (*Session, error) {
	raw, err := crypto.Unpickle(key, blob)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(raw)

	var st sessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	return &Session{id: st.ID, state: st.State, pending: st.Pending}, nil
}

func decodePreKeyPayload(ciphertext string) (preKeyPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return preKeyPayload{}, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	var payload preKeyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return preKeyPayload{}, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	return payload, nil
}

// deriveSessionID hashes the handshake publics so both ends compute the same
// identifier at establishment.
func deriveSessionID(senderIK, ephemeral, oneTimeKey domain.X25519Public) string {
	h := sha256.New()
	h.Write([]byte("sable-session-v1"))
	h.Write(senderIK[:])
	h.Write(ephemeral[:])
	h.Write(oneTimeKey[:])
	return base64.RawStdEncoding.EncodeToString(h.Sum(nil))
}
