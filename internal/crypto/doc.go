// Package crypto provides the low-level primitives shared by the protocol
// and storage layers: key generation, Diffie-Hellman, signing, fingerprints,
// the encrypted pickle envelope, and best-effort zeroing of key material.
package crypto
