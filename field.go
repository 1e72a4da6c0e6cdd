package tss

import (
	"math/big"

	"github.com/cronokirby/saferith"
)

// Field performs modular arithmetic over a fixed modulus, typically a curve
// group order or a prime field. Values are kept reduced into [0, modulus) at
// all times; no result ever leaves an operation >= modulus.
//
// The arithmetic is built on saferith, whose operations run in time
// determined by the announced bit length of the operands rather than their
// values, which keeps secret-dependent timing out of the share and
// reconstruction paths.
type Field struct {
	modulus *saferith.Modulus
	bits    int
}

// NewField creates a field with the given modulus. The modulus must be an
// odd number >= 3 (curve orders and prime field moduli always are; oddness
// is required by the constant-time modular inverse).
func NewField(modulus *big.Int) (*Field, error) {
	if modulus == nil || modulus.Sign() <= 0 || modulus.Cmp(big.NewInt(3)) < 0 {
		return nil, ErrCryptographic.WithDetails("field modulus must be >= 3")
	}
	if modulus.Bit(0) == 0 {
		return nil, ErrCryptographic.WithDetails("field modulus must be odd")
	}
	bits := modulus.BitLen()
	m := saferith.ModulusFromNat(new(saferith.Nat).SetBig(modulus, bits))
	return &Field{modulus: m, bits: bits}, nil
}

// Modulus returns a copy of the field modulus.
func (f *Field) Modulus() *big.Int {
	return f.modulus.Big()
}

// FieldElement is an unsigned integer reduced modulo its field's modulus.
type FieldElement struct {
	field *Field
	nat   *saferith.Nat
}

// NewElement reduces v into the field. Negative inputs are mapped to their
// positive residue.
func (f *Field) NewElement(v *big.Int) *FieldElement {
	reduced := new(big.Int).Mod(v, f.Modulus())
	nat := new(saferith.Nat).SetBig(reduced, f.bits)
	return &FieldElement{field: f, nat: nat}
}

// ElementFromBytes interprets b as a big-endian unsigned integer and reduces
// it into the field.
func (f *Field) ElementFromBytes(b []byte) *FieldElement {
	nat := new(saferith.Nat).SetBytes(b)
	nat.Mod(nat, f.modulus)
	return &FieldElement{field: f, nat: nat}
}

// Zero returns the additive identity.
func (f *Field) Zero() *FieldElement {
	return &FieldElement{field: f, nat: new(saferith.Nat).SetUint64(0).Resize(f.bits)}
}

// One returns the multiplicative identity.
func (f *Field) One() *FieldElement {
	return &FieldElement{field: f, nat: new(saferith.Nat).SetUint64(1).Resize(f.bits)}
}

// ElementFromUint64 lifts a small unsigned integer into the field.
func (f *Field) ElementFromUint64(v uint64) *FieldElement {
	nat := new(saferith.Nat).SetUint64(v).Resize(f.bits)
	nat.Mod(nat, f.modulus)
	return &FieldElement{field: f, nat: nat}
}

// Add returns a + b mod m.
func (a *FieldElement) Add(b *FieldElement) *FieldElement {
	res := new(saferith.Nat).ModAdd(a.nat, b.nat, a.field.modulus)
	return &FieldElement{field: a.field, nat: res}
}

// Sub returns a - b mod m.
func (a *FieldElement) Sub(b *FieldElement) *FieldElement {
	res := new(saferith.Nat).ModSub(a.nat, b.nat, a.field.modulus)
	return &FieldElement{field: a.field, nat: res}
}

// Mul returns a * b mod m.
func (a *FieldElement) Mul(b *FieldElement) *FieldElement {
	res := new(saferith.Nat).ModMul(a.nat, b.nat, a.field.modulus)
	return &FieldElement{field: a.field, nat: res}
}

// Pow returns a^e mod m by square-and-multiply.
func (a *FieldElement) Pow(e *FieldElement) *FieldElement {
	res := new(saferith.Nat).Exp(a.nat, e.nat, a.field.modulus)
	return &FieldElement{field: a.field, nat: res}
}

// Negate returns -a mod m.
func (a *FieldElement) Negate() *FieldElement {
	res := new(saferith.Nat).ModNeg(a.nat, a.field.modulus)
	return &FieldElement{field: a.field, nat: res}
}

// Inverse returns a^-1 mod m. Zero has no inverse; callers must treat that
// as fatal to the enclosing operation rather than substituting a default.
func (a *FieldElement) Inverse() (*FieldElement, error) {
	if a.IsZero() {
		return nil, ErrCryptographic.WithDetails("no modular inverse exists for zero")
	}
	res := new(saferith.Nat).ModInverse(a.nat, a.field.modulus)
	return &FieldElement{field: a.field, nat: res}, nil
}

// Equal reports whether two elements have the same residue.
func (a *FieldElement) Equal(b *FieldElement) bool {
	return a.nat.Eq(b.nat) == 1
}

// IsZero reports whether the element is the additive identity.
func (a *FieldElement) IsZero() bool {
	return a.nat.Eq(new(saferith.Nat).SetUint64(0)) == 1
}

// BigInt returns the element as a big.Int copy.
func (a *FieldElement) BigInt() *big.Int {
	return a.nat.Big()
}

// Bytes returns the element as a fixed-width big-endian byte slice sized to
// the field modulus.
func (a *FieldElement) Bytes() []byte {
	width := (a.field.bits + 7) / 8
	return a.BigInt().FillBytes(make([]byte, width))
}

// Clone returns an independent copy of the element.
func (a *FieldElement) Clone() *FieldElement {
	return &FieldElement{field: a.field, nat: new(saferith.Nat).SetNat(a.nat)}
}

// Zeroize clears the element's limbs. The element must not be used after.
func (a *FieldElement) Zeroize() {
	if a.nat != nil {
		a.nat.SetUint64(0)
	}
}
