package messaging_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"sable/internal/domain"
	"sable/internal/e2ee"
	"sable/internal/services/messaging"
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

func claimOneTimeKey(t *testing.T, a *e2ee.Account) domain.X25519Public {
	t.Helper()
	if err := a.GenerateOneTimeKeys(1); err != nil {
		t.Fatalf("GenerateOneTimeKeys: %v", err)
	}
	offered := a.OneTimeKeys()
	pub, err := domain.ParseX25519Public(offered[0].Key)
	if err != nil {
		t.Fatalf("ParseX25519Public: %v", err)
	}
	a.MarkKeysAsPublished()
	return pub
}

func sessionKey(peer *e2ee.Account) domain.SessionKey {
	return domain.SessionKey{UserID: uuid.New(), DeviceKey: peer.Curve25519Key().Base64()}
}

func TestEstablishOutbound_PersistsSession(t *testing.T) {
	s := openStore(t)
	svc := messaging.New(s)
	alice, bob := newAccount(t), newAccount(t)
	key := sessionKey(bob)

	session, err := svc.EstablishOutbound(alice, key, bob.Curve25519Key(), claimOneTimeKey(t, bob))
	if err != nil {
		t.Fatalf("EstablishOutbound: %v", err)
	}

	loaded, ok, err := svc.Session(key)
	if err != nil || !ok {
		t.Fatalf("Session: ok=%v err=%v", ok, err)
	}
	if loaded.ID() != session.ID() {
		t.Fatal("persisted session differs from the returned one")
	}
}

func TestEstablishInbound_CommitsAccountAndSessionTogether(t *testing.T) {
	aliceStore, bobStore := openStore(t), openStore(t)
	aliceSvc, bobSvc := messaging.New(aliceStore), messaging.New(bobStore)
	alice, bob := newAccount(t), newAccount(t)
	if err := bobStore.SaveAccount(bob); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	aliceKey := sessionKey(bob)
	aliceSession, err := aliceSvc.EstablishOutbound(alice, aliceKey, bob.Curve25519Key(), claimOneTimeKey(t, bob))
	if err != nil {
		t.Fatalf("EstablishOutbound: %v", err)
	}
	first, err := aliceSvc.Encrypt(aliceKey, aliceSession, "Hello, Bob!")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	bobKey := sessionKey(alice)
	bobSession, plaintext, err := bobSvc.EstablishInbound(bob, bobKey, alice.Curve25519Key(), first)
	if err != nil {
		t.Fatalf("EstablishInbound: %v", err)
	}
	if plaintext != "Hello, Bob!" {
		t.Fatalf("plaintext = %q, want %q", plaintext, "Hello, Bob!")
	}
	if bobSession.ID() != aliceSession.ID() {
		t.Fatal("both ends must derive the same session ID")
	}

	// The one-time key consumption landed in the same commit as the session:
	// the reloaded account refuses a handshake replay.
	reloaded, err := bobStore.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if _, _, err := reloaded.NewInboundSession(alice.Curve25519Key(), first); !errors.Is(err, domain.ErrUnknownOneTimeKey) {
		t.Fatalf("err = %v, want ErrUnknownOneTimeKey", err)
	}
	if _, ok, err := bobSvc.Session(bobKey); err != nil || !ok {
		t.Fatalf("session not persisted: ok=%v err=%v", ok, err)
	}
}

func TestEncryptDecrypt_PersistAdvancedState(t *testing.T) {
	aliceStore, bobStore := openStore(t), openStore(t)
	aliceSvc, bobSvc := messaging.New(aliceStore), messaging.New(bobStore)
	alice, bob := newAccount(t), newAccount(t)
	if err := bobStore.SaveAccount(bob); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	aliceKey, bobKey := sessionKey(bob), sessionKey(alice)
	aliceSession, err := aliceSvc.EstablishOutbound(alice, aliceKey, bob.Curve25519Key(), claimOneTimeKey(t, bob))
	if err != nil {
		t.Fatalf("EstablishOutbound: %v", err)
	}
	first, err := aliceSvc.Encrypt(aliceKey, aliceSession, "one")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, _, err := bobSvc.EstablishInbound(bob, bobKey, alice.Curve25519Key(), first); err != nil {
		t.Fatalf("EstablishInbound: %v", err)
	}

	// Continue the conversation through reloaded sessions only: the persisted
	// state must carry every ratchet advance.
	second, err := aliceSvc.Encrypt(aliceKey, mustLoad(t, aliceSvc, aliceKey), "two")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := bobSvc.Decrypt(bobKey, mustLoad(t, bobSvc, bobKey), second)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "two" {
		t.Fatalf("got %q, want %q", got, "two")
	}

	reply, err := bobSvc.Encrypt(bobKey, mustLoad(t, bobSvc, bobKey), "three")
	if err != nil {
		t.Fatalf("Encrypt reply: %v", err)
	}
	got, err = aliceSvc.Decrypt(aliceKey, mustLoad(t, aliceSvc, aliceKey), reply)
	if err != nil {
		t.Fatalf("Decrypt reply: %v", err)
	}
	if got != "three" {
		t.Fatalf("got %q, want %q", got, "three")
	}
}

func TestDelete_RemovesSession(t *testing.T) {
	s := openStore(t)
	svc := messaging.New(s)
	alice, bob := newAccount(t), newAccount(t)
	key := sessionKey(bob)

	if _, err := svc.EstablishOutbound(alice, key, bob.Curve25519Key(), claimOneTimeKey(t, bob)); err != nil {
		t.Fatalf("EstablishOutbound: %v", err)
	}
	if err := svc.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := svc.Session(key); err != nil || ok {
		t.Fatalf("session still present: ok=%v err=%v", ok, err)
	}
}

func mustLoad(t *testing.T, svc *messaging.Service, key domain.SessionKey) *e2ee.Session {
	t.Helper()
	session, ok, err := svc.Session(key)
	if err != nil || !ok {
		t.Fatalf("Session: ok=%v err=%v", ok, err)
	}
	return session
}
