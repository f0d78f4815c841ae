package crypto

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
	ErrDecryptionFailed   = errors.New("crypto: decryption failed")
	ErrReplay             = errors.New("crypto: record counter out of sequence")
)

const (
	// NonceSize is the XChaCha20-Poly1305 nonce carried in front of each record.
	NonceSize = chacha20poly1305.NonceSizeX
	// TagSize is the Poly1305 authentication tag.
	TagSize = chacha20poly1305.Overhead
	// Overhead is the number of bytes Seal adds to a plaintext.
	Overhead = NonceSize + TagSize

	prefixSize = NonceSize - 8
)

// ReceiveState is the replay window of an AEAD: the sender prefix seen on
// the first record and the counter of the last record opened.
type ReceiveState struct {
	prefix [prefixSize]byte
	known  bool
	seq    uint64
}

// AEAD wraps XChaCha20-Poly1305 with automatic nonce management.
// It uses a 128-bit random prefix + 64-bit counter for the 192-bit nonce.
// The random prefix keeps nonces unique across sessions that reuse the
// same static keys; the counter orders records within one session.
type AEAD struct {
	aead   cipher.AEAD
	prefix [prefixSize]byte
	seq    atomic.Uint64
	recv   ReceiveState
}

// NewAEAD creates a new AEAD cipher from a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Wrapf(ErrKeyLength, "aead key has %d bytes", len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	a := &AEAD{aead: aead}
	if _, err := io.ReadFull(rand.Reader, a.prefix[:]); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AEAD) nextNonce() []byte {
	seq := a.seq.Add(1)
	nonce := make([]byte, NonceSize)
	copy(nonce[:prefixSize], a.prefix[:])
	binary.BigEndian.PutUint64(nonce[prefixSize:], seq)
	return nonce
}

// Seal encrypts and authenticates plaintext.
// Returns: nonce (24 bytes) || ciphertext || tag (16 bytes)
func (a *AEAD) Seal(plaintext, additionalData []byte) []byte {
	nonce := a.nextNonce()
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	copy(out, nonce)
	return a.aead.Seal(out, nonce, plaintext, additionalData)
}

// Open decrypts and verifies a record produced by the peer's Seal.
// Counters must strictly increase and records must carry the same prefix as
// the first one; anything else is ErrReplay. Gaps are allowed, so a record
// the peer sealed but this side rejected does not stall the ones after it.
// The replay window only moves when Open succeeds.
func (a *AEAD) Open(sealed, additionalData []byte) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, ErrCiphertextTooShort
	}
	nonce := sealed[:NonceSize]
	plaintext, err := a.aead.Open(nil, nonce, sealed[NonceSize:], additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	seq := binary.BigEndian.Uint64(nonce[prefixSize:])
	if a.recv.known && !bytes.Equal(nonce[:prefixSize], a.recv.prefix[:]) {
		return nil, errors.Wrap(ErrReplay, "nonce prefix changed")
	}
	if seq <= a.recv.seq {
		return nil, errors.Wrapf(ErrReplay, "got record %d, already past %d", seq, a.recv.seq)
	}
	if !a.recv.known {
		copy(a.recv.prefix[:], nonce[:prefixSize])
		a.recv.known = true
	}
	a.recv.seq = seq
	return plaintext, nil
}

// Mark returns the current replay window.
func (a *AEAD) Mark() ReceiveState { return a.recv }

// Rewind restores a replay window returned by Mark, undoing every Open
// performed since.
func (a *AEAD) Rewind(st ReceiveState) { a.recv = st }

// Sealed returns the number of records sealed so far.
func (a *AEAD) Sealed() uint64 { return a.seq.Load() }

// Opened returns the counter of the last record opened.
func (a *AEAD) Opened() uint64 { return a.recv.seq }
