package identity

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/TheusHen/mage/mage/crypto"
)

// PublicKey is an X25519 public key as configured on the remote peer.
type PublicKey [crypto.KeySize]byte

// ParsePublicKey decodes a hex-encoded 32-byte public key.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return PublicKey{}, errors.Wrap(err, "identity: public key")
	}
	pub, err := crypto.ParsePublicKey(b)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey(pub), nil
}

func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

// Bytes returns the key as a slice, as mux.New expects it.
func (k PublicKey) Bytes() []byte { return k[:] }

// Fingerprint returns the SHA-256 fingerprint of the key.
func (k PublicKey) Fingerprint() Fingerprint { return FingerprintOf(k) }

// Identity is a local seed and the public key derived from it.
type Identity struct {
	Seed      [crypto.KeySize]byte
	PublicKey PublicKey
}

// Generate draws a fresh random seed.
func Generate() (Identity, error) {
	var seed [crypto.KeySize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return Identity{}, errors.Wrap(err, "identity: generate seed")
	}
	return FromSeed(seed[:])
}

// FromSeed derives the identity for a 32-byte seed.
func FromSeed(seed []byte) (Identity, error) {
	pub, err := crypto.PublicKeyFromSeed(seed)
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	copy(id.Seed[:], seed)
	id.PublicKey = PublicKey(pub)
	return id, nil
}

// ParseSeed decodes a hex-encoded seed.
func ParseSeed(s string) (Identity, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Identity{}, errors.Wrap(err, "identity: seed")
	}
	return FromSeed(b)
}

// LoadSeedFile reads a seed written by WriteSeedFile.
func LoadSeedFile(path string) (Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Identity{}, errors.Wrap(err, "identity: read seed file")
	}
	id, err := ParseSeed(string(data))
	if err != nil {
		return Identity{}, errors.WithMessagef(err, "seed file %s", path)
	}
	return id, nil
}

// WriteSeedFile stores the seed as hex, readable by the owner only.
func WriteSeedFile(path string, id Identity) error {
	data := hex.EncodeToString(id.Seed[:]) + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return errors.Wrap(err, "identity: write seed file")
	}
	return nil
}
