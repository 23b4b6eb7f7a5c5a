package domain

import "errors"

var (
	// ErrDatabase indicates a persistence backend failure. Fatal for the
	// operation, not for the process; retry policy belongs to the caller.
	ErrDatabase = errors.New("database error")

	// ErrNotFound indicates a required row (the account) is absent.
	ErrNotFound = errors.New("not found")

	// ErrSerialization indicates malformed stored JSON or an undecodable blob.
	ErrSerialization = errors.New("serialization error")

	// ErrDecryptionFailed covers every storage-key or recovery-key mismatch.
	// Wrong key and corrupted ciphertext are deliberately indistinguishable.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKey indicates a malformed or wrong-length recovery key input.
	// Locally recoverable: the caller re-prompts the user.
	ErrInvalidKey = errors.New("invalid key")

	// ErrUnknownOneTimeKey is returned when a prekey message references a
	// one-time key this account does not hold. Already consumed, never
	// existed, and corrupted reference all report as this one kind.
	ErrUnknownOneTimeKey = errors.New("unknown one-time key")

	// ErrAuthenticationFailed indicates an AEAD tag mismatch on a session
	// message: wrong session, replay outside the skip window, or corruption.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidUTF8 indicates a successfully decrypted payload that is not
	// valid text.
	ErrInvalidUTF8 = errors.New("plaintext is not valid UTF-8")

	// ErrInvalidMessage indicates a malformed envelope or a message of the
	// wrong type for the operation, detected before any key material is
	// touched. Distinct from ErrAuthenticationFailed: it does not imply a
	// compromised secret.
	ErrInvalidMessage = errors.New("invalid message")
)
