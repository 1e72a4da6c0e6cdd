package tss

// VSSCommitment is a Feldman commitment to a sharing polynomial: one curve
// point g^{a_k} per coefficient. It lets a share holder verify its share
// against the dealer's polynomial without learning the polynomial.
type VSSCommitment struct {
	curve  Curve
	points []Point
}

// NewVSSCommitment commits to every coefficient of the polynomial. The
// polynomial's field must be the curve's scalar field.
func NewVSSCommitment(curve Curve, polynomial *Polynomial) (*VSSCommitment, error) {
	points := make([]Point, len(polynomial.coefficients))
	for k, coeff := range polynomial.coefficients {
		scalar, err := scalarFromFieldElement(curve, coeff)
		if err != nil {
			return nil, ErrCryptographic.WithDetails("coefficient is not a curve scalar").WithCause(err)
		}
		points[k] = curve.BasePoint().Mul(scalar)
		scalar.Zeroize()
	}
	return &VSSCommitment{curve: curve, points: points}, nil
}

// Points returns the commitment vector, constant term first.
func (c *VSSCommitment) Points() []Point {
	return c.points
}

// PublicKey returns the commitment to the constant term, which is the
// group public key of the shared secret.
func (c *VSSCommitment) PublicKey() Point {
	return c.points[0]
}

// VerifyShare checks g^value == prod_k C_k^(index^k), the Feldman share
// validity equation.
func (c *VSSCommitment) VerifyShare(share *SharePoint) error {
	if share == nil || share.Value == nil {
		return ErrInvalidShareData.WithDetails("missing share value")
	}
	value, err := scalarFromFieldElement(c.curve, share.Value)
	if err != nil {
		return ErrInvalidShareData.WithCause(err)
	}
	defer value.Zeroize()
	left := c.curve.BasePoint().Mul(value)

	index := indexScalar(c.curve, share.Index)
	right := c.curve.PointIdentity()
	power := c.curve.ScalarOne()
	for _, point := range c.points {
		right = right.Add(point.Mul(power))
		power = power.Mul(index)
	}

	if !left.Equal(right) {
		return ErrInvalidShareData.WithDetails("share %d fails the commitment check", share.Index)
	}
	return nil
}

// scalarFromFieldElement converts a group-order field element to a curve
// scalar, reversing to little-endian for Ed25519.
func scalarFromFieldElement(curve Curve, fe *FieldElement) (Scalar, error) {
	buf := fe.Bytes()
	if curve.Name() == string(CurveEd25519) {
		buf = reverseBytes(buf)
	}
	defer zeroize(buf)
	return curve.ScalarFromBytes(buf)
}

// fieldElementFromScalar is the inverse conversion.
func fieldElementFromScalar(field *Field, curve Curve, s Scalar) *FieldElement {
	buf := s.Bytes()
	if curve.Name() == string(CurveEd25519) {
		buf = reverseBytes(buf)
	}
	defer zeroize(buf)
	return field.ElementFromBytes(buf)
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// indexScalar lifts a 1-based share index into the curve's scalar field.
func indexScalar(curve Curve, index uint32) Scalar {
	buf := make([]byte, curve.ScalarSize())
	if curve.Name() == string(CurveEd25519) {
		// little-endian encoding
		buf[0] = byte(index)
		buf[1] = byte(index >> 8)
		buf[2] = byte(index >> 16)
		buf[3] = byte(index >> 24)
	} else {
		n := len(buf)
		buf[n-1] = byte(index)
		buf[n-2] = byte(index >> 8)
		buf[n-3] = byte(index >> 16)
		buf[n-4] = byte(index >> 24)
	}
	scalar, _ := curve.ScalarFromBytes(buf)
	return scalar
}
