package tss

import (
	"errors"
	"testing"
)

// ceremonyFixture deals a 2-of-3 key and derives the per-signer public
// shares a real deployment would publish alongside the commitments.
func ceremonyFixture(t *testing.T, curveType CurveType, seed string) (*TSSKeyPair, map[uint32][]byte) {
	t.Helper()
	engine := NewEngine(newDeterministicRand(seed))
	keyPair, err := engine.GenerateKeyPair(curveType, 2, 3)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	curve, err := NewCurve(curveType)
	if err != nil {
		t.Fatalf("NewCurve failed: %v", err)
	}
	publicShares := make(map[uint32][]byte, len(keyPair.Shares))
	for _, share := range keyPair.Shares {
		scalar, err := scalarFromFieldElement(curve, share.Value)
		if err != nil {
			t.Fatalf("Share %d does not convert to a scalar: %v", share.Index, err)
		}
		publicShares[share.Index] = curve.BasePoint().Mul(scalar).CompressedBytes()
	}
	return keyPair, publicShares
}

func runCeremony(t *testing.T, keyPair *TSSKeyPair, publicShares map[uint32][]byte, signerIdx []int, message []byte) *ThresholdSignature {
	t.Helper()
	roster := make([]uint32, len(signerIdx))
	for i, idx := range signerIdx {
		roster[i] = keyPair.Shares[idx].Index
	}

	ceremonies := make([]*SigningCeremony, len(signerIdx))
	for i, idx := range signerIdx {
		c, err := NewSigningCeremony(
			newDeterministicRand("nonce-"+string(rune('a'+i))),
			keyPair.Shares[idx], message, roster, publicShares)
		if err != nil {
			t.Fatalf("NewSigningCeremony failed for signer %d: %v", roster[i], err)
		}
		ceremonies[i] = c
	}

	commitments := make([]*NonceCommitment, len(ceremonies))
	for i, c := range ceremonies {
		msg, err := c.Commit()
		if err != nil {
			t.Fatalf("Commit failed for signer %d: %v", roster[i], err)
		}
		commitments[i] = msg
	}
	for i, c := range ceremonies {
		var others []*NonceCommitment
		for j, msg := range commitments {
			if j != i {
				others = append(others, msg)
			}
		}
		if err := c.ProcessCommitments(others); err != nil {
			t.Fatalf("ProcessCommitments failed for signer %d: %v", roster[i], err)
		}
	}

	reveals := make([]*NonceReveal, len(ceremonies))
	for i, c := range ceremonies {
		msg, err := c.Reveal()
		if err != nil {
			t.Fatalf("Reveal failed for signer %d: %v", roster[i], err)
		}
		reveals[i] = msg
	}
	for i, c := range ceremonies {
		var others []*NonceReveal
		for j, msg := range reveals {
			if j != i {
				others = append(others, msg)
			}
		}
		if err := c.ProcessReveals(others); err != nil {
			t.Fatalf("ProcessReveals failed for signer %d: %v", roster[i], err)
		}
	}

	partials := make([]*PartialSignature, len(ceremonies))
	for i, c := range ceremonies {
		msg, err := c.PartialSign()
		if err != nil {
			t.Fatalf("PartialSign failed for signer %d: %v", roster[i], err)
		}
		partials[i] = msg
	}

	var result *ThresholdSignature
	for i, c := range ceremonies {
		var others []*PartialSignature
		for j, msg := range partials {
			if j != i {
				others = append(others, msg)
			}
		}
		sig, err := c.Aggregate(partials[i], others)
		if err != nil {
			t.Fatalf("Aggregate failed for signer %d: %v", roster[i], err)
		}
		if result == nil {
			result = sig
		} else if !result.R.Equal(sig.R) || !result.S.Equal(sig.S) {
			t.Fatal("Participants aggregated different signatures")
		}
	}
	return result
}

func TestSigningCeremony(t *testing.T) {
	for _, curveType := range []CurveType{CurveSecp256k1, CurveEd25519} {
		t.Run(string(curveType), func(t *testing.T) {
			keyPair, publicShares := ceremonyFixture(t, curveType, "ceremony-"+string(curveType))
			message := []byte("transfer 1000 units to treasury")

			sig := runCeremony(t, keyPair, publicShares, []int{0, 1}, message)

			curve, _ := NewCurve(curveType)
			groupKey, err := curve.PointFromBytes(keyPair.PublicKey)
			if err != nil {
				t.Fatalf("Group key does not decode: %v", err)
			}
			if !VerifyThresholdSignature(curve, sig, message, groupKey) {
				t.Fatal("Aggregated signature does not verify")
			}
			if VerifyThresholdSignature(curve, sig, []byte("another message"), groupKey) {
				t.Fatal("Signature verified for a different message")
			}

			// Any quorum signs for the same group key.
			other := runCeremony(t, keyPair, publicShares, []int{1, 2}, message)
			if !VerifyThresholdSignature(curve, other, message, groupKey) {
				t.Fatal("Second quorum's signature does not verify")
			}
		})
	}
}

func TestCeremonyPhaseOrder(t *testing.T) {
	keyPair, publicShares := ceremonyFixture(t, CurveSecp256k1, "phase-order")
	roster := []uint32{1, 2}

	c, err := NewSigningCeremony(
		newDeterministicRand("phase-nonce"), keyPair.Shares[0], []byte("m"), roster, publicShares)
	if err != nil {
		t.Fatalf("NewSigningCeremony failed: %v", err)
	}

	if _, err := c.Reveal(); !errors.Is(err, ErrCeremonyPhaseOrder) {
		t.Fatalf("Reveal before commitments should fail, got %v", err)
	}
	if _, err := c.PartialSign(); !errors.Is(err, ErrCeremonyPhaseOrder) {
		t.Fatalf("PartialSign before reveals should fail, got %v", err)
	}
	if _, err := c.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := c.Commit(); !errors.Is(err, ErrCeremonyPhaseOrder) {
		t.Fatalf("Second Commit should fail, got %v", err)
	}
}

func TestCeremonyRosterValidation(t *testing.T) {
	keyPair, publicShares := ceremonyFixture(t, CurveSecp256k1, "roster")

	// Roster below threshold.
	if _, err := NewSigningCeremony(
		newDeterministicRand("r1"), keyPair.Shares[0], []byte("m"), []uint32{1}, publicShares); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("Expected ErrInsufficientShares, got %v", err)
	}
	// Roster without the local signer.
	if _, err := NewSigningCeremony(
		newDeterministicRand("r2"), keyPair.Shares[0], []byte("m"), []uint32{2, 3}, publicShares); !errors.Is(err, ErrInvalidShareData) {
		t.Fatalf("Expected ErrInvalidShareData, got %v", err)
	}
	// Duplicate roster entry.
	if _, err := NewSigningCeremony(
		newDeterministicRand("r3"), keyPair.Shares[0], []byte("m"), []uint32{1, 1}, publicShares); !errors.Is(err, ErrDuplicateShareIndex) {
		t.Fatalf("Expected ErrDuplicateShareIndex, got %v", err)
	}
	// Missing public share.
	if _, err := NewSigningCeremony(
		newDeterministicRand("r4"), keyPair.Shares[0], []byte("m"), []uint32{1, 2},
		map[uint32][]byte{1: publicShares[1]}); !errors.Is(err, ErrInvalidShareData) {
		t.Fatalf("Expected ErrInvalidShareData, got %v", err)
	}
}

func TestCeremonyAbortsOnBadReveal(t *testing.T) {
	keyPair, publicShares := ceremonyFixture(t, CurveSecp256k1, "bad-reveal")
	roster := []uint32{1, 2}

	honest, err := NewSigningCeremony(
		newDeterministicRand("honest"), keyPair.Shares[0], []byte("m"), roster, publicShares)
	if err != nil {
		t.Fatalf("NewSigningCeremony failed: %v", err)
	}
	cheat, err := NewSigningCeremony(
		newDeterministicRand("cheat"), keyPair.Shares[1], []byte("m"), roster, publicShares)
	if err != nil {
		t.Fatalf("NewSigningCeremony failed: %v", err)
	}

	honestCommit, err := honest.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	cheatCommit, err := cheat.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := honest.ProcessCommitments([]*NonceCommitment{cheatCommit}); err != nil {
		t.Fatalf("ProcessCommitments failed: %v", err)
	}
	if err := cheat.ProcessCommitments([]*NonceCommitment{honestCommit}); err != nil {
		t.Fatalf("ProcessCommitments failed: %v", err)
	}

	if _, err := honest.Reveal(); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	cheatReveal, err := cheat.Reveal()
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	// Substitute a different point for the committed one.
	curve, _ := NewCurve(CurveSecp256k1)
	forged := curve.BasePoint().Mul(curve.ScalarOne()).CompressedBytes()
	tampered := &NonceReveal{Index: cheatReveal.Index, Point: forged}

	if err := honest.ProcessReveals([]*NonceReveal{tampered}); !errors.Is(err, ErrCeremonyAborted) {
		t.Fatalf("Expected ErrCeremonyAborted, got %v", err)
	}
	// An aborted ceremony refuses further phases.
	if _, err := honest.PartialSign(); !errors.Is(err, ErrCeremonyPhaseOrder) {
		t.Fatalf("Expected ErrCeremonyPhaseOrder after abort, got %v", err)
	}
}

func TestCeremonyAbortsOnBadPartial(t *testing.T) {
	keyPair, publicShares := ceremonyFixture(t, CurveSecp256k1, "bad-partial")
	roster := []uint32{1, 2}

	a, err := NewSigningCeremony(
		newDeterministicRand("pa"), keyPair.Shares[0], []byte("m"), roster, publicShares)
	if err != nil {
		t.Fatalf("NewSigningCeremony failed: %v", err)
	}
	b, err := NewSigningCeremony(
		newDeterministicRand("pb"), keyPair.Shares[1], []byte("m"), roster, publicShares)
	if err != nil {
		t.Fatalf("NewSigningCeremony failed: %v", err)
	}

	ca, _ := a.Commit()
	cb, _ := b.Commit()
	if err := a.ProcessCommitments([]*NonceCommitment{cb}); err != nil {
		t.Fatalf("ProcessCommitments failed: %v", err)
	}
	if err := b.ProcessCommitments([]*NonceCommitment{ca}); err != nil {
		t.Fatalf("ProcessCommitments failed: %v", err)
	}
	ra, _ := a.Reveal()
	rb, _ := b.Reveal()
	if err := a.ProcessReveals([]*NonceReveal{rb}); err != nil {
		t.Fatalf("ProcessReveals failed: %v", err)
	}
	if err := b.ProcessReveals([]*NonceReveal{ra}); err != nil {
		t.Fatalf("ProcessReveals failed: %v", err)
	}

	pa, err := a.PartialSign()
	if err != nil {
		t.Fatalf("PartialSign failed: %v", err)
	}
	pb, err := b.PartialSign()
	if err != nil {
		t.Fatalf("PartialSign failed: %v", err)
	}

	curve, _ := NewCurve(CurveSecp256k1)
	forged := &PartialSignature{Index: pb.Index, Response: curve.ScalarOne().Bytes()}
	if _, err := a.Aggregate(pa, []*PartialSignature{forged}); !errors.Is(err, ErrCeremonyAborted) {
		t.Fatalf("Expected ErrCeremonyAborted for forged partial, got %v", err)
	}
}
