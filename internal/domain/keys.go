package domain

import (
	"encoding/base64"
	"fmt"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// Base64 returns the standard base64 form used on the wire and in storage keys.
func (p X25519Public) Base64() string { return base64.StdEncoding.EncodeToString(p[:]) }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Base64 returns the standard base64 form.
func (p Ed25519Public) Base64() string { return base64.StdEncoding.EncodeToString(p[:]) }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// ParseX25519Public decodes a base64-encoded Curve25519 public key.
func ParseX25519Public(s string) (X25519Public, error) {
	var pub X25519Public
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return pub, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != len(pub) {
		return pub, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, len(pub), len(raw))
	}
	copy(pub[:], raw)
	return pub, nil
}
