package crypto

import (
	"sync"

	"github.com/pkg/errors"
)

// SecureChannel is a bidirectional authenticated-encryption context built
// from static keys only. Both peers derive it independently from their own
// seed and the other's public key; nothing is exchanged on the wire.
type SecureChannel struct {
	mu     sync.Mutex
	server bool
	local  X25519KeyPair
	remote [32]byte
	send   *AEAD
	recv   *AEAD
}

// NewSecureChannel derives the session from a local seed and the peer's
// static public key. server selects which directional key seals and which
// opens; the two peers must use opposite roles.
func NewSecureChannel(server bool, seed, remoteKey []byte) (*SecureChannel, error) {
	if len(seed) != KeySize || len(remoteKey) != KeySize {
		return nil, errors.Wrapf(ErrKeyLength, "seed has %d bytes, remote key has %d bytes", len(seed), len(remoteKey))
	}
	local, err := X25519FromSeed(seed)
	if err != nil {
		return nil, err
	}
	remote, err := ParsePublicKey(remoteKey)
	if err != nil {
		return nil, err
	}

	shared, err := ECDH(local.PrivateKey, remote)
	if err != nil {
		return nil, err
	}

	var clientPub, serverPub [32]byte
	if server {
		clientPub = remote
		serverPub = local.PublicKey
	} else {
		clientPub = local.PublicKey
		serverPub = remote
	}

	c2s, s2c, err := DeriveSessionKeys(shared, clientPub, serverPub)
	if err != nil {
		return nil, err
	}

	// Client sends with c2s, receives with s2c
	// Server sends with s2c, receives with c2s
	sendKey, recvKey := c2s, s2c
	if server {
		sendKey, recvKey = s2c, c2s
	}

	sc := &SecureChannel{server: server, local: local, remote: remote}
	if sc.send, err = NewAEAD(sendKey); err != nil {
		return nil, err
	}
	if sc.recv, err = NewAEAD(recvKey); err != nil {
		return nil, err
	}
	return sc, nil
}

// IsServer reports the role the channel was derived for.
func (sc *SecureChannel) IsServer() bool { return sc.server }

// LocalPublic returns the static public key derived from the local seed.
func (sc *SecureChannel) LocalPublic() [32]byte { return sc.local.PublicKey }

// RemotePublic returns the configured peer public key.
func (sc *SecureChannel) RemotePublic() [32]byte { return sc.remote }

// Encrypt seals one record for the peer.
func (sc *SecureChannel) Encrypt(plaintext, ad []byte) []byte {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.send.Seal(plaintext, ad)
}

// Decrypt opens one record from the peer.
func (sc *SecureChannel) Decrypt(sealed, ad []byte) ([]byte, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.recv.Open(sealed, ad)
}

// Mark snapshots the receive replay window so a batch of Decrypt calls can
// be undone with Rewind.
func (sc *SecureChannel) Mark() ReceiveState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.recv.Mark()
}

// Rewind restores a snapshot returned by Mark.
func (sc *SecureChannel) Rewind(st ReceiveState) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.recv.Rewind(st)
}

// SendCounter returns the number of records sealed so far.
func (sc *SecureChannel) SendCounter() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.send.Sealed()
}
