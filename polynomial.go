package tss

// Polynomial is an ordered list of field elements [a0, a1, ..., a(t-1)]
// where a0 is the shared secret and the degree is threshold-1.
type Polynomial struct {
	field        *Field
	coefficients []*FieldElement
}

// NewPolynomial builds a polynomial from its coefficient list. The
// coefficients are used as-is; callers that need secrecy must Zeroize the
// polynomial when done.
func NewPolynomial(field *Field, coefficients []*FieldElement) (*Polynomial, error) {
	if len(coefficients) == 0 {
		return nil, ErrCryptographic.WithDetails("polynomial needs at least one coefficient")
	}
	return &Polynomial{field: field, coefficients: coefficients}, nil
}

// Degree returns the degree of the polynomial
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Evaluate computes P(x) by Horner's method, every intermediate product and
// sum reduced into the field.
func (p *Polynomial) Evaluate(x *FieldElement) *FieldElement {
	result := p.coefficients[len(p.coefficients)-1].Clone()
	for i := len(p.coefficients) - 2; i >= 0; i-- {
		result = result.Mul(x).Add(p.coefficients[i])
	}
	return result
}

// ConstantTerm returns a0, the shared secret.
func (p *Polynomial) ConstantTerm() *FieldElement {
	return p.coefficients[0]
}

// Zeroize clears all coefficients. The polynomial must not be used after.
func (p *Polynomial) Zeroize() {
	for _, coeff := range p.coefficients {
		if coeff != nil {
			coeff.Zeroize()
		}
	}
	for i := range p.coefficients {
		p.coefficients[i] = nil
	}
	p.coefficients = nil
}
