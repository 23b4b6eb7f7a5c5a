// Package x3dh derives the shared root key for a new pairwise session from a
// triple Diffie-Hellman over identity, ephemeral, and one-time keys. The
// initiator and responder variants compute the same 32-byte root.
package x3dh
