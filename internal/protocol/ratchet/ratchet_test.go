package ratchet_test

import (
	"bytes"
	"testing"

	"sable/internal/crypto"
	"sable/internal/domain"
	"sable/internal/protocol/ratchet"
)

// makeIdentity returns a fresh X25519 identity pair.
func makeIdentity(t *testing.T) (priv domain.X25519Private, pub domain.X25519Public) {
	t.Helper()
	p, P, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	return p, P
}

// pair returns initiator and responder states seeded from a shared root.
func pair(t *testing.T) (a, b ratchet.State) {
	t.Helper()
	rk := bytes.Repeat([]byte{0x42}, 32)
	bPriv, bPub := makeIdentity(t)

	a, err := ratchet.InitAsInitiator(rk, bPub)
	if err != nil {
		t.Fatalf("InitAsInitiator: %v", err)
	}
	b, err = ratchet.InitAsResponder(rk, bPriv, a.DHPub)
	if err != nil {
		t.Fatalf("InitAsResponder: %v", err)
	}
	return a, b
}

func TestDoubleRatchet_OneRoundTrip(t *testing.T) {
	a, b := pair(t)

	header, ct, err := ratchet.Encrypt(&a, nil, []byte("hi"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := ratchet.Decrypt(&b, nil, header, ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(pt) != "hi" {
		t.Fatalf("got %q, want %q", pt, "hi")
	}
}

func TestDoubleRatchet_BackAndForth(t *testing.T) {
	a, b := pair(t)

	turns := []struct {
		from *ratchet.State
		to   *ratchet.State
		msg  string
	}{
		{&a, &b, "hello bob"},
		{&b, &a, "hello alice"},
		{&a, &b, "how are you"},
		{&a, &b, "still there?"},
		{&b, &a, "yes"},
	}
	for i, turn := range turns {
		header, ct, err := ratchet.Encrypt(turn.from, nil, []byte(turn.msg))
		if err != nil {
			t.Fatalf("turn %d: Encrypt: %v", i, err)
		}
		pt, err := ratchet.Decrypt(turn.to, nil, header, ct)
		if err != nil {
			t.Fatalf("turn %d: Decrypt: %v", i, err)
		}
		if string(pt) != turn.msg {
			t.Fatalf("turn %d: got %q, want %q", i, pt, turn.msg)
		}
	}
}

func TestDoubleRatchet_OutOfOrderDelivery(t *testing.T) {
	a, b := pair(t)

	h1, ct1, err := ratchet.Encrypt(&a, nil, []byte("first"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	h2, ct2, err := ratchet.Encrypt(&a, nil, []byte("second"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Deliver the second message first; the first lands via a skipped key.
	pt2, err := ratchet.Decrypt(&b, nil, h2, ct2)
	if err != nil {
		t.Fatalf("Decrypt second: %v", err)
	}
	if string(pt2) != "second" {
		t.Fatalf("got %q, want %q", pt2, "second")
	}
	pt1, err := ratchet.Decrypt(&b, nil, h1, ct1)
	if err != nil {
		t.Fatalf("Decrypt first: %v", err)
	}
	if string(pt1) != "first" {
		t.Fatalf("got %q, want %q", pt1, "first")
	}

	// The chain continues cleanly after the out-of-order consumption.
	h3, ct3, err := ratchet.Encrypt(&a, nil, []byte("third"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt3, err := ratchet.Decrypt(&b, nil, h3, ct3)
	if err != nil {
		t.Fatalf("Decrypt third: %v", err)
	}
	if string(pt3) != "third" {
		t.Fatalf("got %q, want %q", pt3, "third")
	}
}

func TestDoubleRatchet_TamperedCiphertextFails(t *testing.T) {
	a, b := pair(t)

	header, ct, err := ratchet.Encrypt(&a, nil, []byte("hi"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[0] ^= 0xff
	if _, err := ratchet.Decrypt(&b, nil, header, ct); err == nil {
		t.Fatal("expected error for tampered ciphertext")
	}
}

func TestDoubleRatchet_StateSurvivesRejectedForgery(t *testing.T) {
	a, b := pair(t)

	header, ct, err := ratchet.Encrypt(&a, nil, []byte("genuine"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// A forgery reusing the real header must be rejected without consuming
	// any receive-chain state.
	forged := append([]byte(nil), ct...)
	forged[0] ^= 0xff
	if _, err := ratchet.Decrypt(&b, nil, header, forged); err == nil {
		t.Fatal("expected error for forged ciphertext")
	}

	pt, err := ratchet.Decrypt(&b, nil, header, ct)
	if err != nil {
		t.Fatalf("genuine message failed after a rejected forgery: %v", err)
	}
	if string(pt) != "genuine" {
		t.Fatalf("got %q, want %q", pt, "genuine")
	}
}

func TestDoubleRatchet_RejectedDHStepLeavesChainsIntact(t *testing.T) {
	a, b := pair(t)

	// A forged header carrying an unknown ratchet pub drives the DH-step
	// branch, which replaces the root key and both chains. Rejection must
	// discard all of it.
	_, fakePub := makeIdentity(t)
	forgedHeader := ratchet.Header{DHPub: fakePub.Slice(), PN: 0, N: 0}
	if _, err := ratchet.Decrypt(&b, nil, forgedHeader, []byte("garbage")); err == nil {
		t.Fatal("expected error for forged DH-step message")
	}

	header, ct, err := ratchet.Encrypt(&a, nil, []byte("still in sync"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := ratchet.Decrypt(&b, nil, header, ct)
	if err != nil {
		t.Fatalf("Decrypt after rejected DH step: %v", err)
	}
	if string(pt) != "still in sync" {
		t.Fatalf("got %q, want %q", pt, "still in sync")
	}
}
