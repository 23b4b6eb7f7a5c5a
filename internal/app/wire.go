// Package app assembles the store and services into one dependency graph
// for the CLI and for embedding callers.
package app

import (
	"sable/internal/services/backup"
	"sable/internal/services/keys"
	"sable/internal/services/messaging"
	"sable/internal/services/provision"
	"sable/internal/store"
)

// Wire bundles the store and all services.
type Wire struct {
	Store     *store.Store
	Provision *provision.Service
	Keys      *keys.Service
	Messaging *messaging.Service
	Backup    *backup.Service
}

// NewWire opens the store and constructs the service graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	st, err := store.Open(cfg.DBPath, cfg.StorageKey)
	if err != nil {
		return nil, err
	}
	return &Wire{
		Store:     st,
		Provision: provision.New(st),
		Keys:      keys.New(st),
		Messaging: messaging.New(st),
		Backup:    backup.New(st),
	}, nil
}

// Close releases the store, wiping the held storage key.
func (w *Wire) Close() error { return w.Store.Close() }
