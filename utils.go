package tss

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// DoubleSHA256 returns SHA256(SHA256(data)), the Bitcoin message digest.
func DoubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// RIPEMD160 returns the RIPEMD-160 digest of data.
func RIPEMD160(data []byte) []byte {
	hasher := ripemd160.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// Hash160 returns RIPEMD160(SHA256(data)), used for Bitcoin public-key and
// script hashes.
func Hash160(data []byte) []byte {
	first := sha256.Sum256(data)
	return RIPEMD160(first[:])
}

// Keccak256 returns the legacy Keccak-256 digest used by Ethereum (not the
// finalized SHA3-256).
func Keccak256(chunks ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	for _, chunk := range chunks {
		hasher.Write(chunk)
	}
	return hasher.Sum(nil)
}
