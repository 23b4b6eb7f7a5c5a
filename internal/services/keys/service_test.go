package keys_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"sable/internal/domain"
	"sable/internal/e2ee"
	"sable/internal/services/keys"
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

func newAccount(t *testing.T) *e2ee.Account {
	t.Helper()
	a, err := e2ee.NewAccount()
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	return a
}

// recordingPublisher captures the uploaded batch, optionally failing.
type recordingPublisher struct {
	identity domain.IdentityKeys
	keys     []domain.OneTimeKey
	err      error
}

func (p *recordingPublisher) PublishOneTimeKeys(_ context.Context, identity domain.IdentityKeys, ks []domain.OneTimeKey) error {
	if p.err != nil {
		return p.err
	}
	p.identity = identity
	p.keys = ks
	return nil
}

func TestGenerate_PersistsAccount(t *testing.T) {
	s := openStore(t)
	svc := keys.New(s)
	account := newAccount(t)

	if err := svc.Generate(account, 5); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := len(svc.Unpublished(account)); got != 5 {
		t.Fatalf("unpublished = %d, want 5", got)
	}

	loaded, err := s.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if got := len(loaded.OneTimeKeys()); got != 5 {
		t.Fatalf("persisted unpublished = %d, want 5", got)
	}
}

func TestPublish_ConfirmsBatch(t *testing.T) {
	s := openStore(t)
	svc := keys.New(s)
	account := newAccount(t)
	if err := svc.Generate(account, 3); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	pub := &recordingPublisher{}
	if err := svc.Publish(context.Background(), pub, account); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(pub.keys) != 3 {
		t.Fatalf("uploaded = %d keys, want 3", len(pub.keys))
	}
	if pub.identity != account.IdentityKeys() {
		t.Fatal("upload must carry the account's identity keys")
	}
	if got := len(svc.Unpublished(account)); got != 0 {
		t.Fatalf("unpublished after publish = %d, want 0", got)
	}

	// Confirmation is persisted.
	loaded, err := s.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if got := len(loaded.OneTimeKeys()); got != 0 {
		t.Fatalf("persisted unpublished = %d, want 0", got)
	}
}

func TestPublish_UploadFailureKeepsKeysPending(t *testing.T) {
	s := openStore(t)
	svc := keys.New(s)
	account := newAccount(t)
	if err := svc.Generate(account, 2); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	wantErr := errors.New("server unavailable")
	pub := &recordingPublisher{err: wantErr}
	if err := svc.Publish(context.Background(), pub, account); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if got := len(svc.Unpublished(account)); got != 2 {
		t.Fatalf("unpublished after failed upload = %d, want 2", got)
	}
}

func TestPublish_NoopWhenNothingPending(t *testing.T) {
	s := openStore(t)
	svc := keys.New(s)
	account := newAccount(t)

	pub := &recordingPublisher{err: errors.New("must not be called")}
	if err := svc.Publish(context.Background(), pub, account); err != nil {
		t.Fatalf("Publish with empty pool: %v", err)
	}
}
