// Package identity manages the static keys of a mage peer: the 32-byte seed
// kept in a local file and the X25519 public key that is handed to the
// remote side out of band.
package identity
