package e2ee

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"

	"sable/internal/crypto"
	"sable/internal/domain"
	"sable/internal/protocol/ratchet"
	"sable/internal/protocol/x3dh"
)

// Account is this device's protocol identity: a Curve25519 encryption key
// pair, an Ed25519 signing key pair, and the pool of one-time prekeys.
// Exactly one Account exists per installation; it is created once and
// mutated in place for the life of the store.
type Account struct {
	ikPriv domain.X25519Private
	ikPub  domain.X25519Public
	edPriv domain.Ed25519Private
	edPub  domain.Ed25519Public

	// oneTimeKeys is keyed by key ID. Entries stay resident after publishing
	// and are removed only when consumed by an inbound session.
	oneTimeKeys map[string]oneTimeKeyPair
}

type oneTimeKeyPair struct {
	Priv      domain.X25519Private `json:"priv"`
	Pub       domain.X25519Public  `json:"pub"`
	Published bool                 `json:"published"`
}

// NewAccount creates a fresh account with new identity keys and no one-time
// keys. Randomness exhaustion is treated as fatal by callers.
func NewAccount() (*Account, error) {
	ikPriv, ikPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}
	return &Account{
		ikPriv:      ikPriv,
		ikPub:       ikPub,
		edPriv:      edPriv,
		edPub:       edPub,
		oneTimeKeys: make(map[string]oneTimeKeyPair),
	}, nil
}

// IdentityKeys returns the public identity keys, base64-encoded.
func (a *Account) IdentityKeys() domain.IdentityKeys {
	return domain.IdentityKeys{
		Ed25519:    a.edPub.Base64(),
		Curve25519: a.ikPub.Base64(),
	}
}

// Curve25519Key returns the encryption public key used for session creation.
func (a *Account) Curve25519Key() domain.X25519Public { return a.ikPub }

// Sign signs msg with the account's Ed25519 key. Used by callers to
// authenticate key uploads.
func (a *Account) Sign(msg []byte) []byte {
	return crypto.SignEd25519(a.edPriv, msg)
}

// GenerateOneTimeKeys appends n fresh prekeys to the unpublished set.
func (a *Account) GenerateOneTimeKeys(n int) error {
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return err
		}
		a.oneTimeKeys[uuid.NewString()] = oneTimeKeyPair{Priv: priv, Pub: pub}
	}
	return nil
}

// OneTimeKeys returns the unpublished prekeys, sorted by ID for a stable
// upload order.
func (a *Account) OneTimeKeys() []domain.OneTimeKey {
	out := make([]domain.OneTimeKey, 0, len(a.oneTimeKeys))
	for id, pair := range a.oneTimeKeys {
		if pair.Published {
			continue
		}
		out = append(out, domain.OneTimeKey{ID: id, Key: pair.Pub.Base64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkKeysAsPublished moves every currently unpublished key out of the
// unpublished set. Call after the server confirms the upload, then persist
// the account; if the process crashes before the persist, the keys are
// re-offered on restart, which is harmless when the server dedups by key ID.
func (a *Account) MarkKeysAsPublished() {
	for id, pair := range a.oneTimeKeys {
		if !pair.Published {
			pair.Published = true
			a.oneTimeKeys[id] = pair
		}
	}
}

// NewOutboundSession establishes a session to a peer device from its
// published identity key and one of its one-time keys. The session is in a
// fresh state: its first Encrypt produces a MessageTypePreKey message.
// The account's own one-time keys are untouched.
func (a *Account) NewOutboundSession(peerIK, peerOTK domain.X25519Public) (*Session, error) {
	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	root, err := x3dh.InitiatorRoot(a.ikPriv, ephPriv, peerIK, peerOTK)
	if err != nil {
		return nil, err
	}
	st, err := ratchet.InitAsInitiator(root, peerIK)
	crypto.Wipe(root)
	crypto.Wipe(ephPriv[:])
	if err != nil {
		return nil, err
	}
	return &Session{
		id:    deriveSessionID(a.ikPub, ephPub, peerOTK),
		state: st,
		pending: &pendingHandshake{
			SenderIK:   a.ikPub,
			Ephemeral:  ephPub,
			OneTimeKey: peerOTK,
		},
	}, nil
}

// NewInboundSession establishes a session from the first message of a new
// peer and returns it together with that message's plaintext. On success the
// consumed one-time key is permanently removed from the account; the caller
// must persist the mutated account and the new session together.
//
// Do not call Session.Decrypt again on the same message: the embedded
// payload is already decrypted here.
func (a *Account) NewInboundSession(senderIK domain.X25519Public, msg EncryptedMessage) (*Session, string, error) {
	if !msg.IsPreKey() {
		return nil, "", fmt.Errorf("%w: not a prekey message", domain.ErrInvalidMessage)
	}
	payload, err := decodePreKeyPayload(msg.Ciphertext)
	if err != nil {
		return nil, "", err
	}

	embeddedIK, err := domain.ParseX25519Public(payload.SenderIK)
	if err != nil {
		return nil, "", fmt.Errorf("%w: bad sender identity key", domain.ErrInvalidMessage)
	}
	if embeddedIK != senderIK {
		return nil, "", fmt.Errorf("%w: sender identity key mismatch", domain.ErrInvalidMessage)
	}
	eph, err := domain.ParseX25519Public(payload.Ephemeral)
	if err != nil {
		return nil, "", fmt.Errorf("%w: bad ephemeral key", domain.ErrInvalidMessage)
	}
	if len(payload.Message.Header.DHPub) != 32 {
		return nil, "", fmt.Errorf("%w: bad ratchet header", domain.ErrInvalidMessage)
	}

	// Locate the one-time key the initiator consumed. Absent, already
	// consumed, and corrupted references are indistinguishable by design.
	otkID, otk, ok := a.findOneTimeKey(payload.OneTimeKey)
	if !ok {
		return nil, "", domain.ErrUnknownOneTimeKey
	}

	root, err := x3dh.ResponderRoot(a.ikPriv, otk.Priv, senderIK, eph)
	if err != nil {
		return nil, "", err
	}
	var senderRatchetPub domain.X25519Public
	copy(senderRatchetPub[:], payload.Message.Header.DHPub)

	st, err := ratchet.InitAsResponder(root, a.ikPriv, senderRatchetPub)
	crypto.Wipe(root)
	if err != nil {
		return nil, "", err
	}

	plaintext, err := ratchet.Decrypt(&st, nil, payload.Message.Header, payload.Message.Ciphertext)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	if !utf8.Valid(plaintext) {
		return nil, "", domain.ErrInvalidUTF8
	}

	// Consume the one-time key only after the handshake decrypted cleanly.
	delete(a.oneTimeKeys, otkID)

	sess := &Session{
		id:    deriveSessionID(senderIK, eph, otk.Pub),
		state: st,
	}
	return sess, string(plaintext), nil
}

func (a *Account) findOneTimeKey(pubB64 string) (string, oneTimeKeyPair, bool) {
	raw, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil || len(raw) != 32 {
		return "", oneTimeKeyPair{}, false
	}
	var pub domain.X25519Public
	copy(pub[:], raw)
	for id, pair := range a.oneTimeKeys {
		if pair.Pub == pub {
			return id, pair, true
		}
	}
	return "", oneTimeKeyPair{}, false
}

// accountState is the serialized form of an Account.
type accountState struct {
	IKPriv      domain.X25519Private      `json:"ik_priv"`
	IKPub       domain.X25519Public       `json:"ik_pub"`
	EdPriv      domain.Ed25519Private     `json:"ed_priv"`
	EdPub       domain.Ed25519Public      `json:"ed_pub"`
	OneTimeKeys map[string]oneTimeKeyPair `json:"one_time_keys"`
}

// Pickle serializes the account into an encrypted blob under key.
func (a *Account) Pickle(key *[32]byte) (string, error) {
	raw, err := a.Snapshot()
	if err != nil {
		return "", err
	}
	blob, err := crypto.Pickle(key, raw)
	crypto.Wipe(raw)
	return blob, err
}

// UnpickleAccount restores an account from an encrypted blob. A wrong key
// fails with ErrDecryptionFailed and reveals no partial structure.
func UnpickleAccount(blob string, key *[32]byte) (*Account, error) {
	raw, err := crypto.Unpickle(key, blob)
	if err != nil {
		return nil, err
	}
	acct, err := RestoreAccount(raw)
	crypto.Wipe(raw)
	return acct, err
}

// Snapshot returns the account's plain serialized state. Used by the backup
// layer, which applies its own encryption; callers must wipe the result.
func (a *Account) Snapshot() ([]byte, error) {
	return json.Marshal(accountState{
		IKPriv:      a.ikPriv,
		IKPub:       a.ikPub,
		EdPriv:      a.edPriv,
		EdPub:       a.edPub,
		OneTimeKeys: a.oneTimeKeys,
	})
}

// RestoreAccount rebuilds an account from a plain state snapshot.
func RestoreAccount(raw []byte) (*Account, error) {
	var st accountState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	if st.OneTimeKeys == nil {
		st.OneTimeKeys = make(map[string]oneTimeKeyPair)
	}
	return &Account{
		ikPriv:      st.IKPriv,
		ikPub:       st.IKPub,
		edPriv:      st.EdPriv,
		edPub:       st.EdPub,
		oneTimeKeys: st.OneTimeKeys,
	}, nil
}
