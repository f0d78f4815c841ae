// Package mage provides an encrypted, multiplexed transport: many logical
// channels carried over one duplex byte stream between two peers that know
// each other's static public key in advance.
//
// The building blocks live in subpackages: crypto (key agreement and
// sealing), protocol (wire frames), stream (chunking and dechunking), mux
// (connections and channels), transport (TCP and QUIC byte streams),
// identity (seeds and public keys) and registry (live connections). This
// package ties them together for applications that dial or listen.
package mage
