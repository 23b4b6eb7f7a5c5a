package x3dh

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"sable/internal/crypto"
	"sable/internal/domain"
)

var hkdfInfo = []byte("sable-x3dh-v1")

// InitiatorRoot derives the root key on the initiating side.
//
// The initiator contributes its identity key and a fresh ephemeral key; the
// responder is addressed by its identity key and one of its one-time keys:
//
//	DH1 = DH(IK_A, OTK_B)
//	DH2 = DH(EK_A, IK_B)
//	DH3 = DH(EK_A, OTK_B)
func InitiatorRoot(
	ourIKPriv domain.X25519Private,
	ourEphPriv domain.X25519Private,
	peerIK domain.X25519Public,
	peerOTK domain.X25519Public,
) ([]byte, error) {
	dh1, err := crypto.DH(ourIKPriv, peerOTK)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(ourEphPriv, peerIK)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(ourEphPriv, peerOTK)
	if err != nil {
		return nil, err
	}
	return rootFrom(dh1, dh2, dh3), nil
}

// ResponderRoot derives the same root key on the receiving side, using the
// one-time private key referenced by the initiator's prekey message.
func ResponderRoot(
	ourIKPriv domain.X25519Private,
	otkPriv domain.X25519Private,
	senderIK domain.X25519Public,
	senderEph domain.X25519Public,
) ([]byte, error) {
	dh1, err := crypto.DH(otkPriv, senderIK)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(ourIKPriv, senderEph)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(otkPriv, senderEph)
	if err != nil {
		return nil, err
	}
	return rootFrom(dh1, dh2, dh3), nil
}

func rootFrom(parts ...[32]byte) []byte {
	ikm := make([]byte, 0, 32*len(parts))
	for _, p := range parts {
		ikm = append(ikm, p[:]...)
	}
	r := hkdf.New(sha256.New, ikm, nil, hkdfInfo)
	root := make([]byte, 32)
	_, _ = io.ReadFull(r, root)
	crypto.Wipe(ikm)
	return root
}
