// Package domain holds the shared types and error kinds used across the
// key-management subsystem: fixed-length key types, session and store
// identifiers, and the error taxonomy surfaced at the package boundaries.
package domain
