package tss

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	for _, curveType := range []CurveType{CurveSecp256k1, CurveEd25519, CurveSecp256r1} {
		t.Run(string(curveType), func(t *testing.T) {
			engine := NewEngine(newDeterministicRand("keygen-" + string(curveType)))
			keyPair, err := engine.GenerateKeyPair(curveType, 3, 5)
			if err != nil {
				t.Fatalf("GenerateKeyPair failed: %v", err)
			}

			if len(keyPair.Shares) != 5 {
				t.Fatalf("Expected 5 shares, got %d", len(keyPair.Shares))
			}
			if len(keyPair.Commitments) != 3 {
				t.Fatalf("Expected 3 commitment points, got %d", len(keyPair.Commitments))
			}
			if !bytes.Equal(keyPair.Commitments[0], keyPair.PublicKey) {
				t.Fatal("Constant-term commitment must equal the public key")
			}

			seen := make(map[uint32]bool)
			for _, share := range keyPair.Shares {
				if share.Index == 0 || share.Index > 5 {
					t.Fatalf("Share index %d out of range", share.Index)
				}
				if seen[share.Index] {
					t.Fatalf("Duplicate share index %d", share.Index)
				}
				seen[share.Index] = true
				if !bytes.Equal(share.PublicKey, keyPair.PublicKey) {
					t.Fatalf("Share %d carries a different public key", share.Index)
				}
				if share.Metadata.KeyID == "" {
					t.Fatalf("Share %d has no key ID", share.Index)
				}
			}
		})
	}
}

func TestGenerateKeyPairParameterErrors(t *testing.T) {
	engine := NewEngine(newDeterministicRand("params"))

	if _, err := engine.GenerateKeyPair(CurveSecp256k1, 0, 3); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("Expected ErrInvalidThreshold, got %v", err)
	}
	if _, err := engine.GenerateKeyPair(CurveSecp256k1, 4, 3); !errors.Is(err, ErrInvalidShareCount) {
		t.Fatalf("Expected ErrInvalidShareCount, got %v", err)
	}
	if _, err := engine.GenerateKeyPair(CurveType("unknown"), 2, 3); err == nil {
		t.Fatal("Unknown curve should be rejected")
	}

	failing := NewEngine(failingRandSource{})
	if _, err := failing.GenerateKeyPair(CurveSecp256k1, 2, 3); !errors.Is(err, ErrRandomnessUnavailable) {
		t.Fatalf("Expected ErrRandomnessUnavailable, got %v", err)
	}
}

func TestRandomnessExhaustedMidCoefficientDraw(t *testing.T) {
	// Entropy that runs dry after the master secret and first coefficient,
	// so the failure lands inside the coefficient loop.
	engine := NewEngine(&limitedRandSource{inner: newDeterministicRand("exhaust"), draws: 2})
	if _, err := engine.GenerateKeyPair(CurveSecp256k1, 4, 5); !errors.Is(err, ErrRandomnessUnavailable) {
		t.Fatalf("Expected ErrRandomnessUnavailable, got %v", err)
	}

	full := NewEngine(newDeterministicRand("exhaust-refresh"))
	keyPair, err := full.GenerateKeyPair(CurveSecp256k1, 3, 5)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	limited := NewEngine(&limitedRandSource{inner: newDeterministicRand("exhaust-refresh-2"), draws: 1})
	if _, err := limited.RefreshShares(keyPair.Shares); !errors.Is(err, ErrRandomnessUnavailable) {
		t.Fatalf("Expected ErrRandomnessUnavailable from refresh, got %v", err)
	}
}

func TestSharesSatisfyCommitments(t *testing.T) {
	engine := NewEngine(newDeterministicRand("vss"))
	keyPair, err := engine.GenerateKeyPair(CurveSecp256k1, 2, 4)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	curve, err := NewCurve(keyPair.Curve)
	if err != nil {
		t.Fatalf("NewCurve failed: %v", err)
	}
	points := make([]Point, len(keyPair.Commitments))
	for i, raw := range keyPair.Commitments {
		points[i], err = curve.PointFromBytes(raw)
		if err != nil {
			t.Fatalf("Commitment %d does not decode: %v", i, err)
		}
	}
	commitment := &VSSCommitment{curve: curve, points: points}

	for _, share := range keyPair.Shares {
		pt := &SharePoint{Index: share.Index, Value: share.Value}
		if err := commitment.VerifyShare(pt); err != nil {
			t.Fatalf("Share %d fails commitment check: %v", share.Index, err)
		}
	}

	// A corrupted share must fail.
	field, err := ScalarField(curve)
	if err != nil {
		t.Fatalf("ScalarField failed: %v", err)
	}
	bad := &SharePoint{Index: 1, Value: keyPair.Shares[0].Value.Add(field.One())}
	if err := commitment.VerifyShare(bad); err == nil {
		t.Fatal("Corrupted share passed the commitment check")
	}
}

func TestReconstructKeyFromSubsets(t *testing.T) {
	for _, curveType := range []CurveType{CurveSecp256k1, CurveEd25519} {
		t.Run(string(curveType), func(t *testing.T) {
			engine := NewEngine(newDeterministicRand("reconstruct-" + string(curveType)))
			keyPair, err := engine.GenerateKeyPair(curveType, 2, 4)
			if err != nil {
				t.Fatalf("GenerateKeyPair failed: %v", err)
			}

			subsets := [][]int{{0, 1}, {1, 3}, {0, 2, 3}}
			var reference []byte
			for _, subset := range subsets {
				shares := make([]*KeyShare, len(subset))
				for i, idx := range subset {
					shares[i] = keyPair.Shares[idx]
				}
				key, err := engine.ReconstructKey(shares)
				if err != nil {
					t.Fatalf("ReconstructKey failed for subset %v: %v", subset, err)
				}
				if reference == nil {
					reference = key
				} else if !bytes.Equal(reference, key) {
					t.Fatalf("Subset %v reconstructed a different key", subset)
				}
			}

			derived, err := DerivePublicKey(reference, curveType)
			if err != nil {
				t.Fatalf("DerivePublicKey failed: %v", err)
			}
			if !bytes.Equal(derived, keyPair.PublicKey) {
				t.Fatal("Reconstructed key does not derive the group public key")
			}
		})
	}
}

func TestReconstructKeyErrors(t *testing.T) {
	engine := NewEngine(newDeterministicRand("reconstruct-errors"))
	keyPair, err := engine.GenerateKeyPair(CurveSecp256k1, 3, 5)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	if _, err := engine.ReconstructKey(keyPair.Shares[:2]); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("Expected ErrInsufficientShares, got %v", err)
	}

	dup := []*KeyShare{keyPair.Shares[0], keyPair.Shares[0], keyPair.Shares[1]}
	if _, err := engine.ReconstructKey(dup); !errors.Is(err, ErrDuplicateShareIndex) {
		t.Fatalf("Expected ErrDuplicateShareIndex, got %v", err)
	}

	// A tampered share makes the derived public key disagree.
	curve, _ := NewCurve(CurveSecp256k1)
	field, _ := ScalarField(curve)
	tampered := &KeyShare{
		Index:       keyPair.Shares[0].Index,
		Value:       keyPair.Shares[0].Value.Add(field.One()),
		PublicKey:   keyPair.Shares[0].PublicKey,
		Threshold:   keyPair.Shares[0].Threshold,
		TotalShares: keyPair.Shares[0].TotalShares,
		Curve:       keyPair.Shares[0].Curve,
		Metadata:    keyPair.Shares[0].Metadata,
	}
	bad := []*KeyShare{tampered, keyPair.Shares[1], keyPair.Shares[2]}
	if _, err := engine.ReconstructKey(bad); !errors.Is(err, ErrShareReconstructionFailed) {
		t.Fatalf("Expected ErrShareReconstructionFailed, got %v", err)
	}

	// Shares from different generations must not mix.
	other, err := engine.GenerateKeyPair(CurveSecp256k1, 3, 5)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	mixed := []*KeyShare{other.Shares[0], keyPair.Shares[1], keyPair.Shares[2]}
	if _, err := engine.ReconstructKey(mixed); !errors.Is(err, ErrInvalidShareData) {
		t.Fatalf("Expected ErrInvalidShareData for mixed share sets, got %v", err)
	}
}

func TestRefreshShares(t *testing.T) {
	engine := NewEngine(newDeterministicRand("refresh"))
	keyPair, err := engine.GenerateKeyPair(CurveSecp256k1, 2, 4)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	refreshed, err := engine.RefreshShares(keyPair.Shares[:2])
	if err != nil {
		t.Fatalf("RefreshShares failed: %v", err)
	}
	if len(refreshed) != 4 {
		t.Fatalf("Expected 4 refreshed shares, got %d", len(refreshed))
	}

	changed := false
	for i, share := range refreshed {
		if !bytes.Equal(share.PublicKey, keyPair.PublicKey) {
			t.Fatalf("Refreshed share %d changed the public key", share.Index)
		}
		if share.Metadata.KeyID != keyPair.Shares[0].Metadata.KeyID {
			t.Fatalf("Refreshed share %d changed the key ID", share.Index)
		}
		if !share.Value.Equal(keyPair.Shares[i].Value) {
			changed = true
		}
	}
	if !changed {
		t.Fatal("Refresh produced identical share values")
	}

	// Old and new shares reconstruct the same key; mixing generations does not.
	oldKey, err := engine.ReconstructKey(keyPair.Shares[2:4])
	if err != nil {
		t.Fatalf("Reconstruction from old shares failed: %v", err)
	}
	newKey, err := engine.ReconstructKey(refreshed[:2])
	if err != nil {
		t.Fatalf("Reconstruction from refreshed shares failed: %v", err)
	}
	if !bytes.Equal(oldKey, newKey) {
		t.Fatal("Refresh changed the underlying key")
	}

	mixed := []*KeyShare{keyPair.Shares[0], refreshed[1]}
	if _, err := engine.ReconstructKey(mixed); err == nil {
		t.Fatal("Mixing share generations should fail reconstruction")
	}
}
