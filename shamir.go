package tss

// MaxTotalShares bounds the share count accepted by share generation and
// key generation.
const MaxTotalShares = 100

// SharePoint is a single Shamir evaluation point (x, y) in a field.
type SharePoint struct {
	Index uint32 // x-coordinate, 1-based
	Value *FieldElement
}

// ShamirSecretSharing splits and reconstructs secrets over a field.
type ShamirSecretSharing struct {
	field *Field
}

// NewShamirSecretSharing creates a sharing scheme over the given field.
func NewShamirSecretSharing(field *Field) *ShamirSecretSharing {
	return &ShamirSecretSharing{field: field}
}

func validateThresholdParams(threshold, totalShares int) error {
	if threshold < 1 {
		return ErrInvalidThreshold.WithDetails("threshold %d must be >= 1", threshold)
	}
	if totalShares < threshold {
		return ErrInvalidShareCount.WithDetails(
			"total shares %d below threshold %d", totalShares, threshold)
	}
	if totalShares > MaxTotalShares {
		return ErrInvalidShareCount.WithDetails(
			"total shares %d exceeds maximum %d", totalShares, MaxTotalShares)
	}
	return nil
}

// GenerateShares builds the degree-(threshold-1) polynomial
// [secret, randomCoefficients...] and evaluates it at x = 1..totalShares.
// Exactly threshold-1 random coefficients must be supplied, each drawn from
// a cryptographically secure source by the caller. threshold = 1 is the
// valid degenerate case where every share equals the secret.
func (sss *ShamirSecretSharing) GenerateShares(
	secret *FieldElement,
	threshold, totalShares int,
	randomCoefficients []*FieldElement,
) ([]*SharePoint, error) {
	if err := validateThresholdParams(threshold, totalShares); err != nil {
		return nil, err
	}
	if len(randomCoefficients) != threshold-1 {
		return nil, ErrInvalidThreshold.WithDetails(
			"need exactly %d random coefficients, got %d", threshold-1, len(randomCoefficients))
	}

	coefficients := make([]*FieldElement, 0, threshold)
	coefficients = append(coefficients, secret)
	coefficients = append(coefficients, randomCoefficients...)

	polynomial, err := NewPolynomial(sss.field, coefficients)
	if err != nil {
		return nil, err
	}

	shares := make([]*SharePoint, totalShares)
	for i := 0; i < totalShares; i++ {
		x := sss.field.ElementFromUint64(uint64(i + 1))
		shares[i] = &SharePoint{Index: uint32(i + 1), Value: polynomial.Evaluate(x)}
	}
	return shares, nil
}

// LagrangeInterpolate reconstructs P(0) from the given points:
// for each point i the basis l_i(0) = prod_{j!=i} (0 - x_j) / (x_i - x_j)
// is computed with a modular inverse for the division, and the secret is
// sum y_i * l_i(0). Duplicate indices are rejected; a single point is its
// own secret (threshold = 1).
func (sss *ShamirSecretSharing) LagrangeInterpolate(points []*SharePoint) (*FieldElement, error) {
	if len(points) == 0 {
		return nil, ErrInsufficientShares.WithDetails("no points supplied")
	}

	seen := make(map[uint32]bool, len(points))
	for _, pt := range points {
		if pt.Index == 0 {
			return nil, ErrInvalidShareData.WithDetails("share index 0 is not allowed")
		}
		if seen[pt.Index] {
			return nil, ErrDuplicateShareIndex.WithDetails("index %d", pt.Index)
		}
		seen[pt.Index] = true
	}

	if len(points) == 1 {
		return points[0].Value.Clone(), nil
	}

	secret := sss.field.Zero()
	for i, pt := range points {
		numerator := sss.field.One()
		denominator := sss.field.One()

		xi := sss.field.ElementFromUint64(uint64(pt.Index))
		for j, other := range points {
			if i == j {
				continue
			}
			xj := sss.field.ElementFromUint64(uint64(other.Index))
			numerator = numerator.Mul(xj.Negate())
			denominator = denominator.Mul(xi.Sub(xj))
		}

		denomInv, err := denominator.Inverse()
		if err != nil {
			return nil, ErrCryptographic.WithDetails("lagrange denominator has no inverse").WithCause(err)
		}
		secret = secret.Add(pt.Value.Mul(numerator.Mul(denomInv)))
	}
	return secret, nil
}

// VerifyShares reconstructs the secret from two different threshold-sized
// subsets and reports disagreement, which signals a corrupted or
// inconsistent share set. With exactly threshold shares there is only one
// subset and nothing to cross-check.
func (sss *ShamirSecretSharing) VerifyShares(points []*SharePoint, threshold int) error {
	if threshold < 1 {
		return ErrInvalidThreshold.WithDetails("threshold %d must be >= 1", threshold)
	}
	if len(points) < threshold {
		return ErrInsufficientShares.WithDetails(
			"need %d shares for verification, got %d", threshold, len(points))
	}
	if len(points) == threshold {
		return nil
	}

	first, err := sss.LagrangeInterpolate(points[:threshold])
	if err != nil {
		return err
	}
	defer first.Zeroize()

	alt := make([]*SharePoint, threshold)
	copy(alt[:threshold-1], points[:threshold-1])
	alt[threshold-1] = points[threshold]

	second, err := sss.LagrangeInterpolate(alt)
	if err != nil {
		return err
	}
	defer second.Zeroize()

	if !first.Equal(second) {
		return ErrInvalidShareData.WithDetails("threshold subsets reconstruct different secrets")
	}
	return nil
}
