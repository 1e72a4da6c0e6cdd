package tss

import (
	"crypto/elliptic"
	"encoding/hex"
	"math/big"
)

// P256Curve implements the Curve interface for secp256r1 (NIST P-256).
// Scalars live in the group-order field; points are backed by the standard
// library curve, whose base-point multiplication is constant time.
type P256Curve struct {
	curve elliptic.Curve
	field *Field
}

// NewP256Curve creates a new secp256r1 curve instance
func NewP256Curve() *P256Curve {
	curve := elliptic.P256()
	field, err := NewField(curve.Params().N)
	if err != nil {
		// The P-256 group order is a fixed odd prime.
		panic(err)
	}
	return &P256Curve{curve: curve, field: field}
}

func (c *P256Curve) Name() string    { return string(CurveSecp256r1) }
func (c *P256Curve) ScalarSize() int { return 32 }
func (c *P256Curve) PointSize() int  { return 33 }

func (c *P256Curve) Order() *big.Int {
	return new(big.Int).Set(c.curve.Params().N)
}

// ScalarFromBytes reduces the 32-byte value modulo the group order.
func (c *P256Curve) ScalarFromBytes(data []byte) (Scalar, error) {
	if len(data) != 32 {
		return nil, ErrInvalidScalarLength
	}
	return &P256Scalar{curve: c, elem: c.field.ElementFromBytes(data)}, nil
}

func (c *P256Curve) ScalarFromUniformBytes(data []byte) (Scalar, error) {
	if len(data) < 32 {
		return nil, ErrInvalidScalarLength
	}
	return &P256Scalar{curve: c, elem: c.field.ElementFromBytes(data)}, nil
}

func (c *P256Curve) ScalarZero() Scalar {
	return &P256Scalar{curve: c, elem: c.field.Zero()}
}

func (c *P256Curve) ScalarOne() Scalar {
	return &P256Scalar{curve: c, elem: c.field.One()}
}

func (c *P256Curve) PointFromBytes(data []byte) (Point, error) {
	switch len(data) {
	case 33:
		x, y := elliptic.UnmarshalCompressed(c.curve, data)
		if x == nil {
			return nil, ErrInvalidPoint
		}
		return &P256Point{curve: c, x: x, y: y}, nil
	case 65:
		x, y := elliptic.Unmarshal(c.curve, data)
		if x == nil {
			return nil, ErrInvalidPoint
		}
		return &P256Point{curve: c, x: x, y: y}, nil
	default:
		return nil, ErrInvalidPointLength
	}
}

func (c *P256Curve) BasePoint() Point {
	params := c.curve.Params()
	return &P256Point{curve: c, x: new(big.Int).Set(params.Gx), y: new(big.Int).Set(params.Gy)}
}

func (c *P256Curve) PointIdentity() Point {
	return &P256Point{curve: c}
}

func (c *P256Curve) ValidateScalar(data []byte) error {
	if len(data) != 32 {
		return ErrInvalidScalarLength
	}
	v := new(big.Int).SetBytes(data)
	if v.Sign() == 0 {
		return ErrScalarZero
	}
	if v.Cmp(c.curve.Params().N) >= 0 {
		return ErrInvalidScalar
	}
	return nil
}

func (c *P256Curve) ValidatePoint(data []byte) error {
	_, err := c.PointFromBytes(data)
	return err
}

// P256Scalar implements the Scalar interface over the group-order field.
type P256Scalar struct {
	curve *P256Curve
	elem  *FieldElement
}

func (s *P256Scalar) Bytes() []byte {
	return s.elem.BigInt().FillBytes(make([]byte, 32))
}

func (s *P256Scalar) String() string {
	return hex.EncodeToString(s.Bytes())
}

func (s *P256Scalar) Add(other Scalar) Scalar {
	return &P256Scalar{curve: s.curve, elem: s.elem.Add(other.(*P256Scalar).elem)}
}

func (s *P256Scalar) Sub(other Scalar) Scalar {
	return &P256Scalar{curve: s.curve, elem: s.elem.Sub(other.(*P256Scalar).elem)}
}

func (s *P256Scalar) Mul(other Scalar) Scalar {
	return &P256Scalar{curve: s.curve, elem: s.elem.Mul(other.(*P256Scalar).elem)}
}

func (s *P256Scalar) Negate() Scalar {
	return &P256Scalar{curve: s.curve, elem: s.elem.Negate()}
}

func (s *P256Scalar) Invert() (Scalar, error) {
	inv, err := s.elem.Inverse()
	if err != nil {
		return nil, ErrScalarZero
	}
	return &P256Scalar{curve: s.curve, elem: inv}, nil
}

func (s *P256Scalar) Equal(other Scalar) bool {
	return s.elem.Equal(other.(*P256Scalar).elem)
}

func (s *P256Scalar) IsZero() bool {
	return s.elem.IsZero()
}

func (s *P256Scalar) Zeroize() {
	s.elem.Zeroize()
}

// P256Point implements the Point interface. A nil x marks the identity.
type P256Point struct {
	curve *P256Curve
	x, y  *big.Int
}

func (p *P256Point) Bytes() []byte {
	if p.x == nil {
		return make([]byte, 65)
	}
	return elliptic.Marshal(p.curve.curve, p.x, p.y)
}

func (p *P256Point) CompressedBytes() []byte {
	if p.x == nil {
		return make([]byte, 33)
	}
	return elliptic.MarshalCompressed(p.curve.curve, p.x, p.y)
}

func (p *P256Point) String() string {
	return hex.EncodeToString(p.CompressedBytes())
}

func (p *P256Point) Add(other Point) Point {
	o := other.(*P256Point)
	if p.x == nil {
		return o
	}
	if o.x == nil {
		return p
	}
	x, y := p.curve.curve.Add(p.x, p.y, o.x, o.y)
	if x.Sign() == 0 && y.Sign() == 0 {
		return &P256Point{curve: p.curve}
	}
	return &P256Point{curve: p.curve, x: x, y: y}
}

func (p *P256Point) Sub(other Point) Point {
	return p.Add(other.Negate())
}

func (p *P256Point) Mul(scalar Scalar) Point {
	if p.x == nil {
		return p
	}
	x, y := p.curve.curve.ScalarMult(p.x, p.y, scalar.Bytes())
	if x.Sign() == 0 && y.Sign() == 0 {
		return &P256Point{curve: p.curve}
	}
	return &P256Point{curve: p.curve, x: x, y: y}
}

func (p *P256Point) Negate() Point {
	if p.x == nil {
		return p
	}
	negY := new(big.Int).Sub(p.curve.curve.Params().P, p.y)
	return &P256Point{curve: p.curve, x: new(big.Int).Set(p.x), y: negY}
}

func (p *P256Point) Equal(other Point) bool {
	o := other.(*P256Point)
	if p.x == nil && o.x == nil {
		return true
	}
	if p.x == nil || o.x == nil {
		return false
	}
	return p.x.Cmp(o.x) == 0 && p.y.Cmp(o.y) == 0
}

func (p *P256Point) IsIdentity() bool {
	return p.x == nil
}
