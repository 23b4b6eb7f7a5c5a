// Package e2ee wraps the pairwise Double Ratchet protocol into the two
// objects the rest of the client works with: an Account holding the device's
// identity and one-time keys, and Sessions holding per-peer ratchet state.
//
// Every Encrypt, Decrypt, and inbound establishment mutates protocol state.
// The caller must persist the mutated object before acting on the result; a
// crash between mutation and persist is recovered by discarding the in-memory
// result, never by resuming from it.
package e2ee
