// Package tss implements the cryptographic core of a threshold-signature
// wallet: Shamir secret sharing over prime fields, verifiable key
// generation and share refresh, a phase-barrier threshold signing
// ceremony, deterministic ECDSA signing, and transaction construction
// plus address encoding for Bitcoin and Ethereum.
//
// Shares never leave the engine unencrypted: distribution wraps them with
// ECIES (secp256k1 ECDH, HKDF-SHA256, ChaCha20-Poly1305) and storage
// zeroizes on delete. All randomness flows through a SecureRandomSource so
// tests can substitute deterministic entropy.
package tss
