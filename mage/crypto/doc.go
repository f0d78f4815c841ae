// Package crypto provides the cryptographic primitives behind a mage Stream.
//
// Design goals:
//   - No handshake on the wire: both peers hold a 32-byte seed and the
//     peer's static X25519 public key, configured out of band
//   - Static X25519 key agreement with the seed as the RFC 7748 scalar
//   - Key derivation via HKDF-SHA256, one key per direction
//   - AEAD encryption via XChaCha20-Poly1305 with strictly increasing
//     counter nonces, rejecting replayed or reordered records
package crypto
