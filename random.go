package tss

import (
	"crypto/rand"
	"io"
)

// SecureRandomSource supplies cryptographically secure random bytes. The
// engine never falls back to a non-cryptographic generator: a failing source
// surfaces as ErrRandomnessUnavailable and aborts the enclosing operation.
type SecureRandomSource interface {
	GenerateRandomBytes(count int) ([]byte, error)
}

// CryptoRandSource is the default SecureRandomSource backed by crypto/rand.
type CryptoRandSource struct{}

// NewCryptoRandSource returns a SecureRandomSource reading from the
// operating system CSPRNG.
func NewCryptoRandSource() *CryptoRandSource {
	return &CryptoRandSource{}
}

func (s *CryptoRandSource) GenerateRandomBytes(count int) ([]byte, error) {
	buf := make([]byte, count)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, ErrRandomnessUnavailable.WithCause(err)
	}
	return buf, nil
}

// zeroize overwrites a byte buffer in place. Callers use it on every exit
// path of an operation that held secret material.
func zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
