// Package stream is the mage cryptographic codec.
//
// A Stream turns application bytes into sealed wire frames (Chunk) and
// sealed wire frames back into per-channel packets (Dechunk). Keys come from
// a local seed and the peer's static public key; see package crypto.
//
// Frame body layout, after the 6-byte cleartext header:
//
//	nonce (24) || XChaCha20-Poly1305( flags (1) || segment ) || tag (16)
//
// Bit 0 of flags marks an lz4-compressed segment.
package stream
