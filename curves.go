package tss

import (
	"errors"
	"fmt"
	"math/big"
)

// Curve defines the interface for elliptic curve operations
type Curve interface {
	// Metadata
	Name() string
	ScalarSize() int
	PointSize() int
	Order() *big.Int

	// Scalar operations
	ScalarFromBytes([]byte) (Scalar, error)
	ScalarFromUniformBytes([]byte) (Scalar, error)
	ScalarZero() Scalar
	ScalarOne() Scalar

	// Point operations
	PointFromBytes([]byte) (Point, error)
	BasePoint() Point
	PointIdentity() Point

	// Validation
	ValidateScalar([]byte) error
	ValidatePoint([]byte) error
}

// Scalar represents a scalar value in the curve's group order field
type Scalar interface {
	// Serialization
	Bytes() []byte
	String() string

	// Arithmetic operations
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Mul(Scalar) Scalar
	Negate() Scalar
	Invert() (Scalar, error)

	// Comparison
	Equal(Scalar) bool
	IsZero() bool

	// Security
	Zeroize()
}

// Point represents a point on the elliptic curve
type Point interface {
	// Serialization
	Bytes() []byte
	CompressedBytes() []byte
	String() string

	// Arithmetic operations
	Add(Point) Point
	Sub(Point) Point
	Mul(Scalar) Point
	Negate() Point

	// Comparison
	Equal(Point) bool
	IsIdentity() bool
}

// CurveType names a supported curve.
type CurveType string

const (
	CurveSecp256k1 CurveType = "secp256k1"
	CurveSecp256r1 CurveType = "secp256r1"
	CurveEd25519   CurveType = "ed25519"
)

// NewCurve creates a new curve instance
func NewCurve(curveType CurveType) (Curve, error) {
	switch curveType {
	case CurveSecp256k1:
		return NewSecp256k1Curve(), nil
	case CurveSecp256r1:
		return NewP256Curve(), nil
	case CurveEd25519:
		return NewEd25519Curve(), nil
	default:
		return nil, fmt.Errorf("unsupported curve type: %s", curveType)
	}
}

// Common errors
var (
	ErrInvalidScalarLength = errors.New("invalid scalar length")
	ErrInvalidPointLength  = errors.New("invalid point length")
	ErrInvalidScalar       = errors.New("invalid scalar value")
	ErrInvalidPoint        = errors.New("invalid point")
	ErrScalarZero          = errors.New("scalar is zero")
)

// ScalarField returns the prime field of the curve's group order. Shamir
// share arithmetic happens in this field so that reconstructed secrets are
// valid private scalars.
func ScalarField(c Curve) (*Field, error) {
	return NewField(c.Order())
}

// DerivePublicKey performs scalar multiplication of the curve generator by
// the private scalar and returns the canonical public key encoding
// (compressed SEC1 for the short Weierstrass curves, 32 bytes for Ed25519).
// A zero scalar or one at or above the group order is rejected.
func DerivePublicKey(privateKey []byte, curveType CurveType) ([]byte, error) {
	curve, err := NewCurve(curveType)
	if err != nil {
		return nil, err
	}
	if err := curve.ValidateScalar(privateKey); err != nil {
		return nil, ErrInvalidPrivateKey.WithCause(err)
	}
	scalar, err := curve.ScalarFromBytes(privateKey)
	if err != nil {
		return nil, ErrInvalidPrivateKey.WithCause(err)
	}
	defer scalar.Zeroize()
	if scalar.IsZero() {
		return nil, ErrInvalidPrivateKey.WithDetails("zero scalar")
	}
	pub := curve.BasePoint().Mul(scalar)
	return pub.CompressedBytes(), nil
}
