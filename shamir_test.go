package tss

import (
	"errors"
	"math/big"
	"testing"
)

func testField(t *testing.T) *Field {
	t.Helper()
	// 2^61 - 1, a Mersenne prime large enough for multi-share tests
	modulus := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))
	field, err := NewField(modulus)
	if err != nil {
		t.Fatalf("Failed to create field: %v", err)
	}
	return field
}

func TestShamirSplitAndReconstruct(t *testing.T) {
	field := testField(t)
	sss := NewShamirSecretSharing(field)

	secret := field.ElementFromUint64(999)
	coefficients := []*FieldElement{field.ElementFromUint64(123456789)}

	shares, err := sss.GenerateShares(secret, 2, 3, coefficients)
	if err != nil {
		t.Fatalf("GenerateShares failed: %v", err)
	}
	if len(shares) != 3 {
		t.Fatalf("Expected 3 shares, got %d", len(shares))
	}

	// Every 2-of-3 pair must reconstruct the same secret.
	pairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
	for _, pair := range pairs {
		subset := []*SharePoint{shares[pair[0]], shares[pair[1]]}
		recovered, err := sss.LagrangeInterpolate(subset)
		if err != nil {
			t.Fatalf("Interpolation failed for pair %v: %v", pair, err)
		}
		if !recovered.Equal(secret) {
			t.Fatalf("Pair %v reconstructed %v, want %v", pair, recovered.BigInt(), secret.BigInt())
		}
	}
}

func TestShamirShareValues(t *testing.T) {
	field := testField(t)
	sss := NewShamirSecretSharing(field)

	// P(x) = 10 + 3x: shares must be 13, 16, 19.
	secret := field.ElementFromUint64(10)
	coefficients := []*FieldElement{field.ElementFromUint64(3)}

	shares, err := sss.GenerateShares(secret, 2, 3, coefficients)
	if err != nil {
		t.Fatalf("GenerateShares failed: %v", err)
	}
	expected := []int64{13, 16, 19}
	for i, share := range shares {
		if got := share.Value.BigInt().Int64(); got != expected[i] {
			t.Fatalf("Share %d = %d, want %d", share.Index, got, expected[i])
		}
	}
}

func TestPolynomialEvaluateAtZero(t *testing.T) {
	field := testField(t)

	// P(0) must equal the constant term for any degree.
	coefficients := []*FieldElement{
		field.ElementFromUint64(999),
		field.ElementFromUint64(123456789),
		field.ElementFromUint64(42),
	}
	polynomial, err := NewPolynomial(field, coefficients)
	if err != nil {
		t.Fatalf("NewPolynomial failed: %v", err)
	}
	at0 := polynomial.Evaluate(field.Zero())
	if !at0.Equal(coefficients[0]) {
		t.Fatalf("P(0) = %v, want constant term %v", at0.BigInt(), coefficients[0].BigInt())
	}

	// Degenerate constant polynomial.
	constant, err := NewPolynomial(field, coefficients[:1])
	if err != nil {
		t.Fatalf("NewPolynomial failed: %v", err)
	}
	if !constant.Evaluate(field.Zero()).Equal(coefficients[0]) {
		t.Fatal("Constant polynomial did not return its constant term at 0")
	}
}

func TestShamirParameterValidation(t *testing.T) {
	field := testField(t)
	sss := NewShamirSecretSharing(field)
	secret := field.ElementFromUint64(1)

	if _, err := sss.GenerateShares(secret, 0, 3, nil); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("Expected ErrInvalidThreshold, got %v", err)
	}
	if _, err := sss.GenerateShares(secret, 5, 3, make([]*FieldElement, 4)); !errors.Is(err, ErrInvalidShareCount) {
		t.Fatalf("Expected ErrInvalidShareCount, got %v", err)
	}
	tooMany := MaxTotalShares + 1
	if _, err := sss.GenerateShares(secret, 2, tooMany, []*FieldElement{field.One()}); !errors.Is(err, ErrInvalidShareCount) {
		t.Fatalf("Expected ErrInvalidShareCount for %d shares, got %v", tooMany, err)
	}
	// threshold-1 coefficients are mandatory
	if _, err := sss.GenerateShares(secret, 3, 5, []*FieldElement{field.One()}); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("Expected coefficient count error, got %v", err)
	}
}

func TestShamirDegenerateThreshold(t *testing.T) {
	field := testField(t)
	sss := NewShamirSecretSharing(field)

	secret := field.ElementFromUint64(42)
	shares, err := sss.GenerateShares(secret, 1, 3, nil)
	if err != nil {
		t.Fatalf("GenerateShares failed: %v", err)
	}
	for _, share := range shares {
		if !share.Value.Equal(secret) {
			t.Fatalf("Threshold 1 share %d differs from the secret", share.Index)
		}
	}

	recovered, err := sss.LagrangeInterpolate(shares[:1])
	if err != nil {
		t.Fatalf("Single-point interpolation failed: %v", err)
	}
	if !recovered.Equal(secret) {
		t.Fatal("Single-point interpolation did not return the secret")
	}
}

func TestShamirRejectsBadPoints(t *testing.T) {
	field := testField(t)
	sss := NewShamirSecretSharing(field)

	if _, err := sss.LagrangeInterpolate(nil); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("Expected ErrInsufficientShares, got %v", err)
	}

	dup := []*SharePoint{
		{Index: 1, Value: field.ElementFromUint64(5)},
		{Index: 1, Value: field.ElementFromUint64(6)},
	}
	if _, err := sss.LagrangeInterpolate(dup); !errors.Is(err, ErrDuplicateShareIndex) {
		t.Fatalf("Expected ErrDuplicateShareIndex, got %v", err)
	}

	zero := []*SharePoint{{Index: 0, Value: field.ElementFromUint64(5)}}
	if _, err := sss.LagrangeInterpolate(zero); !errors.Is(err, ErrInvalidShareData) {
		t.Fatalf("Expected ErrInvalidShareData for index 0, got %v", err)
	}
}

func TestShamirVerifySharesDetectsCorruption(t *testing.T) {
	field := testField(t)
	sss := NewShamirSecretSharing(field)

	secret := field.ElementFromUint64(999)
	coefficients := []*FieldElement{field.ElementFromUint64(777)}
	shares, err := sss.GenerateShares(secret, 2, 4, coefficients)
	if err != nil {
		t.Fatalf("GenerateShares failed: %v", err)
	}

	if err := sss.VerifyShares(shares, 2); err != nil {
		t.Fatalf("Honest shares failed verification: %v", err)
	}

	shares[2].Value = shares[2].Value.Add(field.One())
	if err := sss.VerifyShares(shares, 2); !errors.Is(err, ErrInvalidShareData) {
		t.Fatalf("Expected corruption to be detected, got %v", err)
	}
}
