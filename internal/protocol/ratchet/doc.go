// Package ratchet implements the Double Ratchet message layer: HKDF root and
// chain key derivation, per-message AEAD sealing, DH ratchet steps on new
// remote keys, and a bounded window of skipped message keys for out-of-order
// delivery. State is plain data so the layer above can snapshot it.
package ratchet
