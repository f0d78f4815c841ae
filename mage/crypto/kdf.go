package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const sessionInfo = "mage-session-v1"

// DeriveKey derives a key of the specified length using HKDF-SHA256.
// salt can be nil (uses zero salt), info provides context binding.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	hk := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSessionKeys derives the directional keys from the static shared secret.
// Both peers order the public keys client first, so they agree on the
// result regardless of which side computes it.
// Returns: (clientToServer, serverToClient, each 32 bytes)
func DeriveSessionKeys(sharedSecret []byte, clientPub, serverPub [32]byte) ([]byte, []byte, error) {
	info := make([]byte, 0, len(sessionInfo)+64)
	info = append(info, sessionInfo...)
	info = append(info, clientPub[:]...)
	info = append(info, serverPub[:]...)

	keyMaterial, err := DeriveKey(sharedSecret, nil, info, 64)
	if err != nil {
		return nil, nil, err
	}
	return keyMaterial[:32], keyMaterial[32:64], nil
}
