package crypto

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the size of a seed, a private scalar and a public key.
const KeySize = 32

var (
	ErrKeyLength        = errors.New("crypto: key material must be 32 bytes")
	ErrInvalidPublicKey = errors.New("crypto: invalid X25519 public key")
)

// X25519KeyPair represents a static ECDH keypair.
type X25519KeyPair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// GenerateX25519 generates a keypair from a fresh random seed.
func GenerateX25519() (X25519KeyPair, error) {
	var seed [KeySize]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return X25519KeyPair{}, err
	}
	return X25519FromSeed(seed[:])
}

// X25519FromSeed deterministically derives a keypair from a 32-byte seed.
// The seed is used as the private scalar, clamped per RFC 7748, so the same
// seed always yields the same keypair.
func X25519FromSeed(seed []byte) (X25519KeyPair, error) {
	if len(seed) != KeySize {
		return X25519KeyPair{}, errors.Wrapf(ErrKeyLength, "seed has %d bytes", len(seed))
	}
	var kp X25519KeyPair
	copy(kp.PrivateKey[:], seed)
	kp.PrivateKey[0] &= 248
	kp.PrivateKey[31] &= 127
	kp.PrivateKey[31] |= 64

	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return X25519KeyPair{}, err
	}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// PublicKeyFromSeed returns the public key a peer must be configured with
// in order to talk to the holder of seed.
func PublicKeyFromSeed(seed []byte) ([32]byte, error) {
	kp, err := X25519FromSeed(seed)
	if err != nil {
		return [32]byte{}, err
	}
	return kp.PublicKey, nil
}

// ParsePublicKey copies a 32-byte remote public key into an array.
func ParsePublicKey(b []byte) ([32]byte, error) {
	var pub [32]byte
	if len(b) != KeySize {
		return pub, errors.Wrapf(ErrKeyLength, "public key has %d bytes", len(b))
	}
	copy(pub[:], b)
	return pub, nil
}

// ECDH computes the shared secret using X25519.
// Returns 32 bytes of raw shared secret (should be passed to HKDF).
func ECDH(privateKey, peerPublicKey [32]byte) ([]byte, error) {
	var zero [32]byte
	if peerPublicKey == zero {
		return nil, ErrInvalidPublicKey
	}
	shared, err := curve25519.X25519(privateKey[:], peerPublicKey[:])
	if err != nil {
		// low-order point, the shared secret would be all zeros
		return nil, errors.Wrap(ErrInvalidPublicKey, err.Error())
	}
	return shared, nil
}
