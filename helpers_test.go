package tss

import (
	"crypto/sha256"
	"encoding/binary"
)

// deterministicRandSource yields a reproducible byte stream so failures
// replay exactly. Not for production use.
type deterministicRandSource struct {
	seed    []byte
	counter uint64
}

func newDeterministicRand(seed string) *deterministicRandSource {
	return &deterministicRandSource{seed: []byte(seed)}
}

func (s *deterministicRandSource) GenerateRandomBytes(count int) ([]byte, error) {
	out := make([]byte, 0, count)
	for len(out) < count {
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], s.counter)
		s.counter++
		block := sha256.Sum256(append(append([]byte{}, s.seed...), ctr[:]...))
		out = append(out, block[:]...)
	}
	return out[:count], nil
}

// failingRandSource simulates entropy exhaustion.
type failingRandSource struct{}

func (failingRandSource) GenerateRandomBytes(count int) ([]byte, error) {
	return nil, ErrRandomnessUnavailable
}

// limitedRandSource serves a fixed number of draws before failing, so
// error paths in the middle of multi-draw operations get exercised.
type limitedRandSource struct {
	inner *deterministicRandSource
	draws int
}

func (s *limitedRandSource) GenerateRandomBytes(count int) ([]byte, error) {
	if s.draws <= 0 {
		return nil, ErrRandomnessUnavailable
	}
	s.draws--
	return s.inner.GenerateRandomBytes(count)
}
