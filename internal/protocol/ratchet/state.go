package ratchet

import "sable/internal/domain"

// Header accompanies every ciphertext and is authenticated along with it.
type Header struct {
	DHPub []byte `json:"dh_pub"` // sender's current ratchet public key
	PN    uint32 `json:"pn"`     // messages in the previous sending chain
	N     uint32 `json:"n"`      // message number in the current chain
}

// State is one side of a Double Ratchet conversation. Every Encrypt and
// Decrypt call mutates it; the caller owns persistence.
type State struct {
	RootKey   []byte               `json:"root_key"`
	DHPriv    domain.X25519Private `json:"dh_priv"`
	DHPub     domain.X25519Public  `json:"dh_pub"`
	PeerDHPub domain.X25519Public  `json:"peer_dh_pub"`
	SendCK    []byte               `json:"send_ck,omitempty"`
	RecvCK    []byte               `json:"recv_ck,omitempty"`
	Ns        uint32               `json:"ns"`
	Nr        uint32               `json:"nr"`
	PN        uint32               `json:"pn"`
	// Skipped maps base64(peer ratchet pub || message number) to the stored
	// message key, capped at maxSkipped entries.
	Skipped map[string][]byte `json:"skipped,omitempty"`
}

// clone returns a deep copy sharing no key material with the receiver.
func (s *State) clone() State {
	c := *s
	c.RootKey = append([]byte(nil), s.RootKey...)
	c.SendCK = append([]byte(nil), s.SendCK...)
	c.RecvCK = append([]byte(nil), s.RecvCK...)
	if s.Skipped != nil {
		c.Skipped = make(map[string][]byte, len(s.Skipped))
		for k, v := range s.Skipped {
			c.Skipped[k] = append([]byte(nil), v...)
		}
	}
	return c
}
