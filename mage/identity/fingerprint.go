package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Fingerprint is a stable name for a peer key, for logs and for comparing
// keys out of band: Fingerprint = SHA-256(PublicKey).
type Fingerprint [32]byte

func FingerprintOf(pub PublicKey) Fingerprint {
	return Fingerprint(sha256.Sum256(pub[:]))
}

func ParseFingerprint(s string) (Fingerprint, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, errors.Wrap(err, "identity: fingerprint")
	}
	if len(b) != len(Fingerprint{}) {
		return Fingerprint{}, errors.Errorf("identity: fingerprint of %d bytes", len(b))
	}
	var f Fingerprint
	copy(f[:], b)
	return f, nil
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short is the first 8 bytes in hex.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:8])
}
