package domain

import "github.com/google/uuid"

// IdentityKeys is the public half of an account's identity, as shown to
// servers and peers. Both keys are base64-encoded.
type IdentityKeys struct {
	Ed25519    string `json:"ed25519"`
	Curve25519 string `json:"curve25519"`
}

// OneTimeKey is the public view of a single-use prekey offered for upload.
type OneTimeKey struct {
	ID  string `json:"id"`
	Key string `json:"key"` // base64 Curve25519 public key
}

// SessionKey identifies one session per peer device. It is the primary key
// of the sessions table and is not secret.
type SessionKey struct {
	UserID    uuid.UUID `json:"user_id"`
	DeviceKey string    `json:"device_key"` // peer device Curve25519 public key, base64
}

// Metadata describes the local key store. Written once at provisioning.
type Metadata struct {
	UserID    uuid.UUID `json:"user_id"`
	DeviceID  uuid.UUID `json:"device_id"`
	CreatedAt int64     `json:"created_at"`
}
