package ratchet

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"sable/internal/crypto"
	"sable/internal/domain"
)

const (
	aeadKeySize = 32
	nonceSize   = chacha20poly1305.NonceSize
	maxSkipped  = 1000
)

var errChainUninitialised = errors.New("ratchet chain key is uninitialised")

// InitAsInitiator seeds the sending chain from root using a fresh ratchet key
// and the peer's identity public key.
func InitAsInitiator(root []byte, peerIdentity domain.X25519Public) (State, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return State{}, err
	}
	dh, err := crypto.DH(priv, peerIdentity)
	if err != nil {
		return State{}, err
	}
	newRK, sendCK := kdfRK(root, dh[:])
	crypto.Wipe(dh[:])

	return State{
		RootKey:   newRK,
		DHPriv:    priv,
		DHPub:     pub,
		PeerDHPub: peerIdentity, // placeholder until the first remote ratchet pub arrives
		SendCK:    sendCK,
		Skipped:   make(map[string][]byte),
	}, nil
}

// InitAsResponder seeds the receiving chain from root using our identity
// private key and the sender's ratchet public key from the first header.
func InitAsResponder(root []byte, ourIDPriv domain.X25519Private, senderRatchetPub domain.X25519Public) (State, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return State{}, err
	}
	dh, err := crypto.DH(ourIDPriv, senderRatchetPub)
	if err != nil {
		return State{}, err
	}
	newRK, recvCK := kdfRK(root, dh[:])
	crypto.Wipe(dh[:])

	return State{
		RootKey:   newRK,
		DHPriv:    priv,
		DHPub:     pub,
		PeerDHPub: senderRatchetPub,
		RecvCK:    recvCK,
		Skipped:   make(map[string][]byte),
	}, nil
}

// Encrypt produces a header and ciphertext, auto-stepping the DH ratchet on
// the first send after responding.
func Encrypt(st *State, ad, plaintext []byte) (Header, []byte, error) {
	// SendCK not yet initialised means this is the responder's first send:
	// perform a DH ratchet step before deriving a message key.
	if len(st.SendCK) == 0 {
		st.PN = st.Ns
		st.Ns = 0

		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return Header{}, nil, err
		}
		dh, err := crypto.DH(newPriv, st.PeerDHPub)
		if err != nil {
			return Header{}, nil, err
		}
		rk2, sendCK := kdfRK(st.RootKey, dh[:])
		crypto.Wipe(dh[:])

		st.RootKey = rk2
		st.DHPriv, st.DHPub = newPriv, newPub
		st.SendCK = sendCK
	}

	mk, err := kdfCKSend(st)
	if err != nil {
		return Header{}, nil, err
	}
	h := Header{DHPub: st.DHPub.Slice(), PN: st.PN, N: st.Ns}

	ct, err := seal(mk, h, ad, plaintext)
	crypto.Wipe(mk)
	if err != nil {
		return Header{}, nil, err
	}
	st.Ns++
	return h, ct, nil
}

// Decrypt handles skipped keys, performs a DH ratchet step on new remote
// pubs, then opens the message. All chain and root mutation is staged on a
// copy and committed only once the AEAD accepts the ciphertext, so a rejected
// forgery leaves the caller's state exactly as it was.
func Decrypt(st *State, ad []byte, header Header, ciphertext []byte) ([]byte, error) {
	work := st.clone()

	if equal32(work.PeerDHPub[:], header.DHPub) {
		skipUntil(&work, header.N)
		keyID := skippedKeyID(work.PeerDHPub, header.N)
		if mk, ok := work.Skipped[keyID]; ok {
			delete(work.Skipped, keyID)
			pt, err := open(mk, header, ad, ciphertext)
			crypto.Wipe(mk)
			if err != nil {
				return nil, err
			}
			// Nr already advanced past this message when the key was skipped.
			*st = work
			return pt, nil
		}
	}

	if !equal32(work.PeerDHPub[:], header.DHPub) {
		skipUntil(&work, header.PN)

		var newPeer domain.X25519Public
		copy(newPeer[:], header.DHPub)

		dh, err := crypto.DH(work.DHPriv, newPeer)
		if err != nil {
			return nil, err
		}
		rk2, recvCK := kdfRK(work.RootKey, dh[:])
		crypto.Wipe(dh[:])

		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, err
		}
		dh2, err := crypto.DH(newPriv, newPeer)
		if err != nil {
			return nil, err
		}
		rk3, sendCK := kdfRK(rk2, dh2[:])
		crypto.Wipe(dh2[:])

		work.PN = work.Ns
		work.Ns, work.Nr = 0, 0
		work.RootKey = rk3
		work.DHPriv, work.DHPub = newPriv, newPub
		work.PeerDHPub = newPeer
		work.SendCK, work.RecvCK = sendCK, recvCK
	}

	mk, err := kdfCKRecv(&work)
	if err != nil {
		return nil, err
	}
	pt, err := open(mk, header, ad, ciphertext)
	crypto.Wipe(mk)
	if err != nil {
		return nil, err
	}
	work.Nr++
	*st = work
	return pt, nil
}

// --- helpers ---

func seal(mk []byte, header Header, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.N)
	return aead.Seal(nil, nonce, plaintext, append(ad, headerBytes(header)...)), nil
}

func open(mk []byte, header Header, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.N)
	return aead.Open(nil, nonce, ciphertext, append(ad, headerBytes(header)...))
}

func headerBytes(h Header) []byte {
	out := make([]byte, 0, len(h.DHPub)+8)
	out = append(out, h.DHPub...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PN)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.N)
	out = append(out, b[:]...)
	return out
}

// HKDF-based KDFs with labels.
func kdfRK(rk, dh []byte) (newRK, ck []byte) {
	r := hkdf.New(sha256.New, dh, rk, []byte("DR|rk"))
	newRK = make([]byte, 32)
	ck = make([]byte, 32)
	_, _ = io.ReadFull(r, newRK)
	_, _ = io.ReadFull(r, ck)
	return
}

func kdfCK(ck []byte) (nextCK, mk []byte) {
	r := hkdf.New(sha256.New, ck, nil, []byte("DR|ck"))
	nextCK = make([]byte, 32)
	mk = make([]byte, 32)
	_, _ = io.ReadFull(r, nextCK)
	_, _ = io.ReadFull(r, mk)
	return
}

func kdfCKSend(st *State) ([]byte, error) {
	if len(st.SendCK) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfCK(st.SendCK)
	st.SendCK = nextCK
	return mk, nil
}

func kdfCKRecv(st *State) ([]byte, error) {
	if len(st.RecvCK) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfCK(st.RecvCK)
	st.RecvCK = nextCK
	return mk, nil
}

func skippedKeyID(peer domain.X25519Public, n uint32) string {
	b := make([]byte, 32+4)
	copy(b, peer[:])
	binary.BigEndian.PutUint32(b[32:], n)
	return base64.StdEncoding.EncodeToString(b)
}

// skipUntil derives and stores message keys up to pn with a hard cap.
func skipUntil(st *State, pn uint32) {
	if len(st.RecvCK) == 0 {
		return
	}
	if st.Skipped == nil {
		st.Skipped = make(map[string][]byte)
	}
	for st.Nr < pn {
		mk, _ := kdfCKRecv(st)
		if len(st.Skipped) >= maxSkipped {
			for k := range st.Skipped {
				delete(st.Skipped, k)
				break
			}
		}
		st.Skipped[skippedKeyID(st.PeerDHPub, st.Nr)] = mk
		st.Nr++
	}
}

func equal32(a, b []byte) bool {
	if len(a) != 32 || len(b) != 32 {
		return false
	}
	var v byte
	for i := 0; i < 32; i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
