// Package recovery implements the key-backup codec: a 32-byte recovery key
// presented to the user as grouped Base58, a memory-hard derivation to the
// backup encryption key, and the authenticated backup container uploaded to
// the server by the network layer.
package recovery
