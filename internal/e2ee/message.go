package e2ee

import "sable/internal/protocol/ratchet"

// MessageType discriminates the two wire variants. The tag must survive
// transport: decryption needs to know which variant to parse.
type MessageType uint8

const (
	// MessageTypePreKey is the first message of a fresh outbound session.
	// It carries the handshake payload alongside the first ciphertext.
	MessageTypePreKey MessageType = 0
	// MessageTypeNormal is every message after the handshake completes.
	MessageTypeNormal MessageType = 1
)

// EncryptedMessage is the transport-ready form of one encrypted payload.
type EncryptedMessage struct {
	Type       MessageType `json:"type"`
	Ciphertext string      `json:"ciphertext"` // base64-encoded message body
}

// IsPreKey reports whether this message carries a session handshake.
func (m EncryptedMessage) IsPreKey() bool { return m.Type == MessageTypePreKey }

// innerMessage is the ratchet output common to both variants.
type innerMessage struct {
	Header     ratchet.Header `json:"header"`
	Ciphertext []byte         `json:"ciphertext"`
}

// preKeyPayload is the body of a MessageTypePreKey message. It names the
// sender and the one-time key it consumed so the receiver can run the
// responder side of the handshake.
type preKeyPayload struct {
	SenderIK   string       `json:"sender_ik"`    // initiator identity key, base64
	Ephemeral  string       `json:"ephemeral"`    // initiator ephemeral key, base64
	OneTimeKey string       `json:"one_time_key"` // consumed one-time public key, base64
	Message    innerMessage `json:"message"`
}
