package app

// Config holds runtime wiring options for building the app.
type Config struct {
	DBPath     string    // key store path, e.g. $HOME/.sable/keys.db
	StorageKey *[32]byte // storage key held by the caller
}
