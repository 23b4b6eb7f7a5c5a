// Package store is the encrypted-at-rest persistence layer: one SQLite
// database holding exactly one account blob, one session blob per peer
// device, and the store metadata. Account and session state is pickled under
// the storage key before it touches the database; the database itself never
// sees plaintext key material.
package store
