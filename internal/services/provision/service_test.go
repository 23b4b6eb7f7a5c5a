package provision_test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"sable/internal/services/provision"
	"sable/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	key := [32]byte{}
	s, err := store.Open(filepath.Join(t.TempDir(), "keys.db"), &key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitialize_CreatesAccountOnce(t *testing.T) {
	s := openStore(t)
	svc := provision.New(s)
	userID, deviceID := uuid.New(), uuid.New()

	first, err := svc.Initialize(userID, deviceID)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	second, err := svc.Initialize(userID, deviceID)
	if err != nil {
		t.Fatalf("Initialize again: %v", err)
	}
	if first.IdentityKeys() != second.IdentityKeys() {
		t.Fatal("second Initialize must return the same identity")
	}
}

func TestInitialize_WritesMetadataOnce(t *testing.T) {
	s := openStore(t)
	svc := provision.New(s)
	userID, deviceID := uuid.New(), uuid.New()

	if _, err := svc.Initialize(userID, deviceID); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	meta, ok, err := svc.Metadata()
	if err != nil || !ok {
		t.Fatalf("Metadata: ok=%v err=%v", ok, err)
	}
	if meta.UserID != userID || meta.DeviceID != deviceID {
		t.Fatalf("metadata = %+v, want user %s device %s", meta, userID, deviceID)
	}

	// A later call with different IDs must not rewrite the record.
	if _, err := svc.Initialize(uuid.New(), uuid.New()); err != nil {
		t.Fatalf("Initialize again: %v", err)
	}
	again, ok, err := svc.Metadata()
	if err != nil || !ok {
		t.Fatalf("Metadata: ok=%v err=%v", ok, err)
	}
	if again != meta {
		t.Fatalf("metadata changed: %+v, want %+v", again, meta)
	}
}
